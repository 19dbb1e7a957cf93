package deploy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lolmeida/kstack/internal/manifest"
)

// SecretsDecryptor decrypts values overlays that are layered over the
// generated document before it is handed to helm.
type SecretsDecryptor interface {
	// DecryptFiles decrypts files and deep-merges them in order; later
	// files override earlier ones.
	DecryptFiles(ctx context.Context, files []string) (map[string]any, error)
}

// SOPSOps decrypts SOPS files through the sops CLI.
type SOPSOps struct {
	Bin    string
	Runner CommandRunner
}

// NewSOPSOps creates a decryptor using the sops binary on PATH.
func NewSOPSOps(runner CommandRunner) *SOPSOps {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &SOPSOps{Bin: "sops", Runner: runner}
}

// Decrypt decrypts a SOPS-encrypted YAML file and returns JSON plaintext.
func (s *SOPSOps) Decrypt(ctx context.Context, file string) ([]byte, error) {
	res, err := s.Runner.Run(ctx, Command{
		Name: s.Bin,
		Args: []string{"--input-type", "yaml", "--output-type", "json", "-d", file},
	})
	if err != nil {
		return nil, fmt.Errorf("sops decrypt failed for %s: %w", file, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("sops decrypt failed for %s: %w", file, &ToolError{
			Tool: s.Bin, ExitCode: res.ExitCode, Output: trimOutput(res.Output),
		})
	}
	return res.Output, nil
}

// DecryptToMap decrypts a SOPS-encrypted file and returns the data as a map.
func (s *SOPSOps) DecryptToMap(ctx context.Context, file string) (map[string]any, error) {
	data, err := s.Decrypt(ctx, file)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted JSON from %s: %w", file, err)
	}
	return result, nil
}

// DecryptFiles decrypts multiple SOPS files and merges them into one map.
func (s *SOPSOps) DecryptFiles(ctx context.Context, files []string) (map[string]any, error) {
	merged := make(map[string]any)

	for _, file := range files {
		data, err := s.DecryptToMap(ctx, file)
		if err != nil {
			return nil, err
		}
		merged = manifest.DeepMerge(merged, data)
	}

	return merged, nil
}

var _ SecretsDecryptor = (*SOPSOps)(nil)
