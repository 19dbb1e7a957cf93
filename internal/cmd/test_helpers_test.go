package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
environments:
  - {id: 1, name: dev, isActive: true}
  - {id: 2, name: staging, isActive: true}
  - {id: 3, name: prod, isActive: true}
stacks:
  - {id: 1, environmentId: 1, name: web, enabled: true, description: Web tier}
  - {id: 2, environmentId: 1, name: data, enabled: false}
  - {id: 3, environmentId: 2, name: web, enabled: true}
  - {id: 4, environmentId: 3, name: web, enabled: true}
apps:
  - {id: 1, stackId: 1, name: api, category: default, enabled: true, defaultImageRepository: ghcr.io/lolmeida/api, defaultImageTag: "1.0"}
  - {id: 2, stackId: 3, name: api, category: default, enabled: true, defaultImageRepository: ghcr.io/lolmeida/api, defaultImageTag: "1.0"}
  - {id: 3, stackId: 4, name: api, category: default, enabled: true, defaultImageRepository: ghcr.io/lolmeida/api, defaultImageTag: "1.0"}
categories:
  - {id: 1, name: default, isActive: true}
manifestDefaults:
  - {id: 1, categoryId: 1, manifestType: DEPLOYMENT, required: true, creationPriority: 10, isActive: true}
`

// setupCLI points the CLI at a fresh catalog and state directory.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	catalog := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(testCatalog), 0o644))

	t.Setenv("KSTACK_CATALOG", catalog)
	t.Setenv("KSTACK_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("KSTACK_DEV_DELAY", "0s")
	for _, key := range []string{"KSTACK_DB", "KSTACK_SECRETS_FILES", "KSTACK_WEBHOOK_URL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

// resetRootCmd resets the root command state for test isolation.
// Flags are bound to package variables, so every flag is set back to
// its default before the next execution.
func resetRootCmd(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetArgs([]string{})
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(nil)

	resetFlags(rootCmd)
	return buf
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	c.SetContext(context.TODO())
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCmd executes the root command with the given args and returns the output.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCmdWithInput(t, nil, args...)
}

func executeCmdWithInput(t *testing.T, in io.Reader, args ...string) (string, error) {
	t.Helper()
	buf := resetRootCmd(t)
	if in != nil {
		rootCmd.SetIn(in)
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}
