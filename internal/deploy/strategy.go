package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/lolmeida/kstack/internal/manifest"
	"github.com/lolmeida/kstack/internal/model"
)

// MockDeploymentID identifies simulated deployments.
const MockDeploymentID = "MOCK_DEPLOYMENT"

// Target is a validated deploy request.
type Target struct {
	Environment model.Environment
	Stack       model.Stack
}

// ReleaseName is the helm release of the target, "<env>-<stack>".
func (t Target) ReleaseName() string {
	return strings.ToLower(t.Environment.Name) + "-" + t.Stack.Name
}

// Outcome is what a strategy reports on success.
type Outcome struct {
	DeploymentID string
	Message      string
}

// Strategy performs one deployment. Errors wrapping model.ErrTimeout end
// in TIMED_OUT; any other error ends in FAILED.
type Strategy interface {
	Name() string
	Deploy(ctx context.Context, t Target) (Outcome, error)
}

// ValuesBuilder produces the values document of a stack.
type ValuesBuilder interface {
	BuildStackValues(ctx context.Context, environmentID int64, stackName string) (model.Document, error)
}

// SimulatedStrategy waits for Delay and reports success without running
// anything.
type SimulatedStrategy struct {
	Delay time.Duration
}

func (s SimulatedStrategy) Name() string { return "simulated" }

func (s SimulatedStrategy) Deploy(ctx context.Context, t Target) (Outcome, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Outcome{}, fmt.Errorf("simulated deployment interrupted: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return Outcome{
		DeploymentID: MockDeploymentID,
		Message:      fmt.Sprintf("Simulated deployment of %s to %s", t.Stack.Name, t.Environment.Name),
	}, nil
}

// HelmStrategy runs helm upgrade --install with the generated values.
type HelmStrategy struct {
	Bin             string
	ProjectRoot     string
	ChartsDir       string
	KubeContext     string
	Namespace       string
	CreateNamespace bool
	Atomic          bool
	Timeout         time.Duration

	// TempDir holds the per-deploy values file; empty means os.TempDir.
	TempDir string

	Builder      ValuesBuilder
	Runner       CommandRunner
	Secrets      SecretsDecryptor
	SecretsFiles []string

	// NewID generates deployment ids; defaults to uuid.NewString.
	NewID func() string
}

func (h *HelmStrategy) Name() string { return "helm" }

// Args returns the helm arguments for a release.
func (h *HelmStrategy) Args(t Target, valuesFile string) []string {
	chartsDir := h.ChartsDir
	if chartsDir == "" {
		chartsDir = "charts"
	}
	args := []string{
		"upgrade", "--install", t.ReleaseName(),
		"./" + filepath.ToSlash(filepath.Join(chartsDir, t.Stack.Name)),
		"--values", valuesFile,
		"--kube-context", h.KubeContext,
	}
	if h.Namespace != "" {
		args = append(args, "--namespace", h.Namespace)
		if h.CreateNamespace {
			args = append(args, "--create-namespace")
		}
	}
	args = append(args, "--timeout", h.Timeout.String(), "--wait")
	if h.Atomic {
		args = append(args, "--atomic")
	}
	return args
}

func (h *HelmStrategy) Deploy(ctx context.Context, t Target) (out Outcome, err error) {
	release := t.ReleaseName()
	if errs := validation.IsDNS1123Label(release); len(errs) > 0 {
		return Outcome{}, fmt.Errorf("%w: invalid release name %q: %s", model.ErrBadRequest, release, strings.Join(errs, "; "))
	}

	doc, err := h.Builder.BuildStackValues(ctx, t.Environment.ID, t.Stack.Name)
	if err != nil {
		return Outcome{}, fmt.Errorf("build values: %w", err)
	}
	if h.Secrets != nil && len(h.SecretsFiles) > 0 {
		secrets, err := h.Secrets.DecryptFiles(ctx, h.SecretsFiles)
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: decrypt secrets: %w", model.ErrExternalTool, err)
		}
		doc = manifest.DeepMerge(doc, secrets)
	}

	valuesFile, err := h.writeValues(t, doc)
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		if rmErr := os.Remove(valuesFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, fmt.Errorf("%w: remove values file: %w", model.ErrExternalTool, rmErr))
			out = Outcome{}
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	cmd := Command{Name: h.Bin, Args: h.Args(t, valuesFile), Dir: h.ProjectRoot}
	res, runErr := h.Runner.Run(runCtx, cmd)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return Outcome{}, fmt.Errorf("%w: helm upgrade of %s timed out after %s", model.ErrTimeout, release, h.Timeout)
	}
	if runErr != nil {
		return Outcome{}, fmt.Errorf("%w: run %s: %w", model.ErrExternalTool, h.Bin, runErr)
	}
	if res.ExitCode != 0 {
		return Outcome{}, &ToolError{Tool: h.Bin, ExitCode: res.ExitCode, Output: trimOutput(res.Output)}
	}

	newID := h.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	msg := fmt.Sprintf("Deployed release %s with context %s", release, h.KubeContext)
	if h.Namespace != "" {
		msg += " into namespace " + h.Namespace
	}
	return Outcome{DeploymentID: newID(), Message: msg}, nil
}

// writeValues writes doc to a fresh <env>-<stack>-values-*.yaml file that
// only the current user can read.
func (h *HelmStrategy) writeValues(t Target, doc model.Document) (string, error) {
	data, err := manifest.EncodeYAML(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrExternalTool, err)
	}

	pattern := fmt.Sprintf("%s-%s-values-*.yaml", strings.ToLower(t.Environment.Name), t.Stack.Name)
	f, err := os.CreateTemp(h.TempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("%w: create values file: %w", model.ErrExternalTool, err)
	}
	path := f.Name()

	if err := f.Chmod(0o600); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: set values file permissions: %w", model.ErrExternalTool, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: write values file: %w", model.ErrExternalTool, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: close values file: %w", model.ErrExternalTool, err)
	}
	return path, nil
}
