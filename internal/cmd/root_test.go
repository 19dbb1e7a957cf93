package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Execute(t *testing.T) {
	t.Run("root command shows help", func(t *testing.T) {
		output, err := executeCmd(t)
		require.NoError(t, err)
		assert.Contains(t, output, "kstack")
	})

	t.Run("help flag", func(t *testing.T) {
		output, err := executeCmd(t, "--help")
		require.NoError(t, err)
		assert.Contains(t, output, "values <env> <stack>")
		assert.Contains(t, output, "deploy <env> <stack>")
	})

	t.Run("version subcommand", func(t *testing.T) {
		output, err := executeCmd(t, "version")
		require.NoError(t, err)
		assert.Contains(t, output, "kstack "+version)
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := executeCmd(t, "frobnicate")
		assert.Error(t, err)
	})
}

func TestRootCmd_Structure(t *testing.T) {
	resetRootCmd(t)
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"values", "render", "envs", "stacks", "deploy", "serve", "seed", "doctor", "update", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	for _, name := range []string{"db", "catalog", "state-dir", "verbose"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestFilterPrefix(t *testing.T) {
	names := []string{"dev", "Staging", "prod"}

	assert.Equal(t, []string{"Staging"}, filterPrefix(names, "st"))
	assert.Equal(t, names, filterPrefix(names, ""))
	assert.Nil(t, filterPrefix(names, "qa"))
}

func TestCompleteEnvAndStack(t *testing.T) {
	setupCLI(t)
	resetRootCmd(t)

	envs, directive := completeEnvAndStack(valuesCmd, nil, "d")
	assert.Equal(t, []string{"dev"}, envs)
	assert.NotZero(t, directive)

	stacks, _ := completeEnvAndStack(valuesCmd, []string{"dev"}, "")
	assert.Equal(t, []string{"data", "web"}, stacks)

	none, _ := completeEnvAndStack(valuesCmd, []string{"dev", "web"}, "")
	assert.Empty(t, none)
}
