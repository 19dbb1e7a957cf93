package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

// captureOutput redirects Out and disables colors while fn runs.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	oldNoColor := color.NoColor
	oldOut := Out
	color.NoColor = true
	var buf bytes.Buffer
	Out = &buf
	defer func() {
		color.NoColor = oldNoColor
		Out = oldOut
	}()

	fn()
	return buf.String()
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
		want string
	}{
		{"success", func() { Success("deployed %s", "dev-web") }, "✓ deployed dev-web\n"},
		{"error", func() { Error("failed: %d", 2) }, "✗ failed: 2\n"},
		{"warning", func() { Warning("kube context %q missing", "prod") }, "⚠ kube context \"prod\" missing\n"},
		{"info", func() { Info("plain") }, "plain\n"},
		{"step", func() { Step(2, "render %s", "values") }, "[2] render values\n"},
		{"header", func() { Header("Doctor") }, "Doctor\n"},
		{"deploy", func() { Deploy("deploying %s", "web") }, "🚀 deploying web\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, captureOutput(t, tt.fn))
		})
	}
}

func TestState(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	for _, s := range []string{"SUCCEEDED", "FAILED", "TIMED_OUT", "RUNNING", "PENDING"} {
		assert.Equal(t, s, State(s))
	}
}
