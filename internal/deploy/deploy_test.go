package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolmeida/kstack/internal/manifest"
	"github.com/lolmeida/kstack/internal/model"
	"github.com/lolmeida/kstack/internal/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testCatalog() *store.Catalog {
	envs := []model.Environment{
		{ID: 1, Name: "dev", IsActive: true},
		{ID: 2, Name: "staging", IsActive: true},
		{ID: 3, Name: "prod", IsActive: true},
		{ID: 4, Name: "qa", IsActive: true},
	}
	c := &store.Catalog{
		Environments: envs,
		Categories: []model.ServiceCategory{
			{ID: 1, Name: "default", IsActive: true},
			{ID: 2, Name: "api", IsActive: true},
		},
		ManifestDefaults: []model.ManifestDefault{
			{ID: 1, CategoryID: 2, ManifestType: model.ManifestDeployment, Required: true, CreationPriority: 10, IsActive: true},
		},
	}
	for i, env := range envs {
		id := int64(i + 1)
		c.Stacks = append(c.Stacks,
			model.Stack{ID: id, EnvironmentID: env.ID, Name: "web", Enabled: true},
			model.Stack{ID: id + 100, EnvironmentID: env.ID, Name: "old", Enabled: false},
		)
		c.Apps = append(c.Apps, model.App{
			ID: id, StackID: id, Name: "api", Category: "api", Enabled: true, DeploymentPriority: 10,
			DefaultImageRepository: "myapi", DefaultImageTag: "1.0",
		})
	}
	return c
}

// fakeRunner records commands and replies with a scripted result.
type fakeRunner struct {
	mu       sync.Mutex
	commands []Command
	values   []string
	run      func(ctx context.Context, cmd Command) (CommandResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) (CommandResult, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	for i, arg := range cmd.Args {
		if arg == "--values" && i+1 < len(cmd.Args) {
			if data, err := os.ReadFile(cmd.Args[i+1]); err == nil {
				f.values = append(f.values, string(data))
			}
		}
	}
	f.mu.Unlock()
	if f.run != nil {
		return f.run(ctx, cmd)
	}
	return CommandResult{}, nil
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

type testEnv struct {
	orch    *Orchestrator
	runner  *fakeRunner
	tempDir string
}

func newTestEnv(t *testing.T, c *store.Catalog, mutate func(*Config)) *testEnv {
	t.Helper()
	s := store.NewMemoryStore(c)
	runner := &fakeRunner{}
	tempDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.ProjectRoot = "/srv/kstack"
	cfg.StagingContext = "k3d-staging"
	cfg.ProdContext = "k3s-prod"
	cfg.DevDelay = 0
	cfg.TempDir = tempDir
	if mutate != nil {
		mutate(&cfg)
	}

	strategies := DefaultStrategies(cfg, manifest.NewBuilder(s, nil), runner, nil)
	for _, st := range strategies {
		if h, ok := st.(*HelmStrategy); ok {
			h.NewID = func() string { return "deploy-1" }
		}
	}
	orch := NewOrchestrator(s, strategies, WithClock(func() time.Time { return fixedNow }))
	return &testEnv{orch: orch, runner: runner, tempDir: tempDir}
}

func leftoverFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestState_Transitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StatePending, StateRunning, true},
		{StatePending, StateFailed, true},
		{StatePending, StateSucceeded, false},
		{StatePending, StateTimedOut, false},
		{StateRunning, StateSucceeded, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateTimedOut, true},
		{StateRunning, StatePending, false},
		{StateSucceeded, StateFailed, false},
		{StateFailed, StateRunning, false},
		{StateTimedOut, StateSucceeded, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}

	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateTimedOut.Terminal())
	assert.False(t, StateRunning.Terminal())

	m := newMachine()
	require.NoError(t, m.transition(StateRunning))
	require.NoError(t, m.transition(StateSucceeded))
	assert.Error(t, m.transition(StateFailed))
	assert.Equal(t, []State{StatePending, StateRunning, StateSucceeded}, m.history)
}

func TestDeploy_DevSimulated(t *testing.T) {
	env := newTestEnv(t, testCatalog(), nil)

	res := env.orch.Deploy(context.Background(), 1, "web")
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, MockDeploymentID, res.DeploymentID)
	assert.Equal(t, fixedNow, res.DeployedAt)
	assert.Equal(t, []State{StatePending, StateRunning, StateSucceeded}, res.History)
	assert.Zero(t, env.runner.calls())
}

func TestDeploy_SimulatedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SimulatedStrategy{Delay: time.Hour}.Deploy(ctx, Target{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeploy_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		envID   int64
		stack   string
		wantErr error
	}{
		{"zero environment id", 0, "web", model.ErrBadRequest},
		{"empty stack name", 1, "", model.ErrBadRequest},
		{"missing environment", 99, "web", model.ErrNotFound},
		{"missing stack", 2, "nope", model.ErrNotFound},
		{"disabled stack", 3, "old", model.ErrBadRequest},
		{"unknown environment", 4, "web", model.ErrUnknownEnvironment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testCatalog(), nil)

			res := env.orch.Deploy(context.Background(), tt.envID, tt.stack)
			assert.False(t, res.Success)
			assert.Equal(t, StateFailed, res.State)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			assert.Equal(t, []State{StatePending, StateFailed}, res.History)
			assert.NotEmpty(t, res.Message)
			assert.Zero(t, env.runner.calls())
			assert.Empty(t, leftoverFiles(t, env.tempDir))
		})
	}
}

func TestDeploy_StagingHelm(t *testing.T) {
	env := newTestEnv(t, testCatalog(), nil)

	res := env.orch.Deploy(context.Background(), 2, "web")
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, "deploy-1", res.DeploymentID)

	require.Equal(t, 1, env.runner.calls())
	cmd := env.runner.commands[0]
	assert.Equal(t, "helm", cmd.Name)
	assert.Equal(t, "/srv/kstack", cmd.Dir)

	valuesFile := cmd.Args[5]
	assert.True(t, strings.HasPrefix(filepath.Base(valuesFile), "staging-web-values-"))
	assert.Equal(t, []string{
		"upgrade", "--install", "staging-web", "./charts/web",
		"--values", valuesFile,
		"--kube-context", "k3d-staging",
		"--timeout", "5m0s", "--wait",
	}, cmd.Args)

	require.Len(t, env.runner.values, 1)
	assert.Contains(t, env.runner.values[0], "namespace: staging")
	assert.Contains(t, env.runner.values[0], "repository: myapi")
	assert.Empty(t, leftoverFiles(t, env.tempDir))
}

func TestDeploy_ProdArgs(t *testing.T) {
	env := newTestEnv(t, testCatalog(), nil)

	res := env.orch.Deploy(context.Background(), 3, "web")
	require.NoError(t, res.Err)

	args := env.runner.commands[0].Args
	assert.Equal(t, []string{"upgrade", "--install", "prod-web", "./charts/web"}, args[:4])
	assert.Equal(t, []string{
		"--kube-context", "k3s-prod",
		"--namespace", "lolmeida", "--create-namespace",
		"--timeout", "10m0s", "--wait", "--atomic",
	}, args[6:])
	assert.Contains(t, res.Message, "lolmeida")
	assert.Contains(t, env.runner.values[0], "namespace: lolmeida")
}

func TestDeploy_NonZeroExit(t *testing.T) {
	env := newTestEnv(t, testCatalog(), nil)
	env.runner.run = func(context.Context, Command) (CommandResult, error) {
		return CommandResult{ExitCode: 1, Output: []byte("Error: UPGRADE FAILED: chart not found\n")}, nil
	}

	res := env.orch.Deploy(context.Background(), 2, "web")
	assert.False(t, res.Success)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 1, res.ExitCode)
	assert.ErrorIs(t, res.Err, model.ErrExternalTool)
	assert.Contains(t, res.Message, "chart not found")
	assert.Empty(t, res.DeploymentID)
	assert.Empty(t, leftoverFiles(t, env.tempDir))
}

func TestDeploy_Timeout(t *testing.T) {
	env := newTestEnv(t, testCatalog(), func(c *Config) {
		c.StagingTimeout = 50 * time.Millisecond
	})
	env.runner.run = func(ctx context.Context, _ Command) (CommandResult, error) {
		<-ctx.Done()
		return CommandResult{}, ctx.Err()
	}

	res := env.orch.Deploy(context.Background(), 2, "web")
	assert.False(t, res.Success)
	assert.Equal(t, StateTimedOut, res.State)
	assert.ErrorIs(t, res.Err, model.ErrTimeout)
	assert.Contains(t, res.Message, "timed out after 50ms")
	assert.Equal(t, []State{StatePending, StateRunning, StateTimedOut}, res.History)
	assert.Empty(t, leftoverFiles(t, env.tempDir))
}

func TestDeploy_RunnerStartFailure(t *testing.T) {
	env := newTestEnv(t, testCatalog(), nil)
	env.runner.run = func(context.Context, Command) (CommandResult, error) {
		return CommandResult{}, errors.New("executable file not found in $PATH")
	}

	res := env.orch.Deploy(context.Background(), 2, "web")
	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, model.ErrExternalTool)
	assert.Zero(t, res.ExitCode)
}

type fakeSecrets struct {
	data map[string]any
	err  error
}

func (f fakeSecrets) DecryptFiles(context.Context, []string) (map[string]any, error) {
	return f.data, f.err
}

func TestHelmStrategy_SecretsOverlay(t *testing.T) {
	c := testCatalog()
	s := store.NewMemoryStore(c)
	runner := &fakeRunner{}
	h := &HelmStrategy{
		Bin: "helm", KubeContext: "k3d-staging", Timeout: time.Minute, TempDir: t.TempDir(),
		Builder: manifest.NewBuilder(s, nil), Runner: runner,
		Secrets:      fakeSecrets{data: map[string]any{"api": map[string]any{"secretKey": "s3cr3t"}}},
		SecretsFiles: []string{"secrets/staging.enc.yaml"},
	}
	target := Target{Environment: c.Environments[1], Stack: c.Stacks[2]}

	out, err := h.Deploy(context.Background(), target)
	require.NoError(t, err)
	assert.NotEmpty(t, out.DeploymentID)
	require.Len(t, runner.values, 1)
	assert.Contains(t, runner.values[0], "secretKey: s3cr3t")

	h.Secrets = fakeSecrets{err: errors.New("no key")}
	_, err = h.Deploy(context.Background(), target)
	assert.ErrorIs(t, err, model.ErrExternalTool)
}

func TestHelmStrategy_InvalidReleaseName(t *testing.T) {
	runner := &fakeRunner{}
	h := &HelmStrategy{Bin: "helm", Timeout: time.Minute, Runner: runner}
	target := Target{
		Environment: model.Environment{ID: 2, Name: "staging"},
		Stack:       model.Stack{ID: 2, Name: "Web_Stack"},
	}

	_, err := h.Deploy(context.Background(), target)
	assert.ErrorIs(t, err, model.ErrBadRequest)
	assert.Zero(t, runner.calls())
}

func TestSOPSOps_DecryptFiles(t *testing.T) {
	runner := &fakeRunner{run: func(_ context.Context, cmd Command) (CommandResult, error) {
		switch cmd.Args[len(cmd.Args)-1] {
		case "a.yaml":
			return CommandResult{Output: []byte(`{"db":{"user":"app","password":"one"}}`)}, nil
		case "b.yaml":
			return CommandResult{Output: []byte(`{"db":{"password":"two"}}`)}, nil
		default:
			return CommandResult{ExitCode: 128, Output: []byte("failed to get the data key")}, nil
		}
	}}
	s := NewSOPSOps(runner)

	merged, err := s.DecryptFiles(context.Background(), []string{"a.yaml", "b.yaml"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"db": map[string]any{"user": "app", "password": "two"}}, merged)
	assert.Equal(t, []string{"--input-type", "yaml", "--output-type", "json", "-d", "a.yaml"}, runner.commands[0].Args)

	_, err = s.DecryptFiles(context.Background(), []string{"missing.yaml"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 128, toolErr.ExitCode)
	assert.ErrorIs(t, err, model.ErrExternalTool)
}

func TestResult_JSON(t *testing.T) {
	res := Result{
		Success:      true,
		Message:      "Simulated deployment of web to dev",
		DeploymentID: MockDeploymentID,
		DeployedAt:   time.Date(2026, 3, 1, 13, 0, 0, 0, time.FixedZone("WET", 3600)),
		State:        StateSucceeded,
	}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": "SUCCESS",
		"message": "Simulated deployment of web to dev",
		"deploymentId": "MOCK_DEPLOYMENT",
		"deployedAt": "2026-03-01T12:00:00Z",
		"state": "SUCCEEDED"
	}`, string(data))

	failed := Result{Message: "helm exited with code 2", State: StateFailed, ExitCode: 2, DeployedAt: fixedNow}
	data, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"ERROR"`)
	assert.Contains(t, string(data), `"exitCode":2`)
}

func TestPrintRunner(t *testing.T) {
	var sb strings.Builder
	r := &PrintRunner{W: &sb}

	res, err := r.Run(context.Background(), Command{Name: "helm", Args: []string{"upgrade", "--install", "dev-web"}, Dir: "/srv"})
	require.NoError(t, err)
	assert.Zero(t, res.ExitCode)
	assert.Equal(t, "(cd /srv) helm upgrade --install dev-web\n", sb.String())
}

func TestExecRunner(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	r := ExecRunner{}

	res, err := r.Run(context.Background(), Command{Name: "/bin/sh", Args: []string{"-c", "echo hi; exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "hi\n", string(res.Output))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = r.Run(ctx, Command{Name: "/bin/sh", Args: []string{"-c", "sleep 5"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTrimOutput(t *testing.T) {
	t.Run("short output kept", func(t *testing.T) {
		assert.Equal(t, "Error: chart not found", trimOutput([]byte("  Error: chart not found\n")))
	})

	t.Run("long output keeps the tail on a rune boundary", func(t *testing.T) {
		out := strings.Repeat("é", 2999) + "x"
		got := trimOutput([]byte(out))

		assert.True(t, utf8.ValidString(got))
		assert.True(t, strings.HasPrefix(got, "..."))
		assert.True(t, strings.HasSuffix(got, "éx"))
		assert.LessOrEqual(t, len(got), maxOutput+len("..."))
	})
}
