package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// mockSink is a test sink that tracks sent events.
type mockSink struct {
	name       string
	configured bool
	shouldFail bool
	mu         sync.Mutex
	events     []*Event
}

func (m *mockSink) Name() string       { return m.name }
func (m *mockSink) IsConfigured() bool { return m.configured }

func (m *mockSink) Send(_ context.Context, e *Event) error {
	if m.shouldFail {
		return errors.New("mock send failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func TestManager_AddSink(t *testing.T) {
	m := NewManager()
	m.AddSink(&mockSink{name: "on", configured: true})
	m.AddSink(&mockSink{name: "off", configured: false})
	m.AddSink(nil)

	assert.Equal(t, []string{"on"}, m.SinkNames())
}

func TestManager_Emit(t *testing.T) {
	t.Run("no sinks", func(t *testing.T) {
		assert.NoError(t, NewManager().Emit(context.Background(), &Event{Type: ValuesBuilt}))
	})

	t.Run("fills defaults and fans out", func(t *testing.T) {
		m := NewManager()
		m.now = func() time.Time { return time.Unix(100, 0) }
		a := &mockSink{name: "a", configured: true}
		b := &mockSink{name: "b", configured: true}
		m.AddSink(a)
		m.AddSink(b)

		e := &Event{Type: DeploySucceeded, Title: "Deployment succeeded"}
		require.NoError(t, m.Emit(context.Background(), e))

		assert.Len(t, a.events, 1)
		assert.Len(t, b.events, 1)
		assert.Equal(t, SeverityInfo, e.Severity)
		assert.Equal(t, time.Unix(100, 0), e.Time)
	})

	t.Run("aggregates failures", func(t *testing.T) {
		m := NewManager()
		ok := &mockSink{name: "ok", configured: true}
		m.AddSink(&mockSink{name: "bad1", configured: true, shouldFail: true})
		m.AddSink(ok)
		m.AddSink(&mockSink{name: "bad2", configured: true, shouldFail: true})

		err := m.Emit(context.Background(), &Event{Type: DeployFailed})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad1")
		assert.Contains(t, err.Error(), "bad2")
		assert.Len(t, ok.events, 1)
	})
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSink(zap.New(core))
	assert.True(t, s.IsConfigured())
	assert.False(t, NewLogSink(nil).IsConfigured())

	require.NoError(t, s.Send(context.Background(), &Event{
		Type: DeployFailed, Message: "helm exited with code 1", Severity: SeverityError,
		Metadata: map[string]string{"stack": "web"},
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "helm exited with code 1", entries[0].Message)
	assert.Equal(t, "web", entries[0].ContextMap()["stack"])
	assert.Equal(t, "deploy.failed", entries[0].ContextMap()["event"])
}

func TestWebhookSink(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	var status atomic.Int32
	status.Store(http.StatusNoContent)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	lastBody := func() string {
		mu.Lock()
		defer mu.Unlock()
		return bodies[len(bodies)-1]
	}

	e := &Event{
		Type: DeploySucceeded, Title: "Deployment succeeded", Message: "dev-web deployed",
		Severity: SeverityInfo, Time: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Metadata: map[string]string{"stack": "web", "environment": "dev", "empty": ""},
	}

	t.Run("json", func(t *testing.T) {
		s := NewWebhookSink(srv.URL, "")
		require.NoError(t, s.Send(context.Background(), e))

		var got Event
		require.NoError(t, json.Unmarshal([]byte(lastBody()), &got))
		assert.Equal(t, DeploySucceeded, got.Type)
		assert.Equal(t, "web", got.Metadata["stack"])
	})

	t.Run("discord", func(t *testing.T) {
		s := NewWebhookSink(srv.URL, FormatDiscord)
		require.NoError(t, s.Send(context.Background(), e))

		var got discordPayload
		require.NoError(t, json.Unmarshal([]byte(lastBody()), &got))
		require.Len(t, got.Embeds, 1)
		assert.Equal(t, colorInfo, got.Embeds[0].Color)
		assert.Equal(t, "kstack/deploy.succeeded", got.Embeds[0].Footer.Text)
		require.Len(t, got.Embeds[0].Fields, 2)
		assert.Equal(t, "environment", got.Embeds[0].Fields[0].Name)
	})

	t.Run("non 2xx", func(t *testing.T) {
		status.Store(http.StatusBadGateway)
		defer status.Store(http.StatusNoContent)

		err := NewWebhookSink(srv.URL, FormatJSON).Send(context.Background(), e)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("unconfigured", func(t *testing.T) {
		s := NewWebhookSink("", "")
		assert.False(t, s.IsConfigured())
		assert.NoError(t, s.Send(context.Background(), e))
	})
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	long := strings.Repeat("x", 20)
	assert.Equal(t, "xxxxxxx...", truncateString(long, 10))
}
