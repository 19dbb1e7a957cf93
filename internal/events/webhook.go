package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Webhook payload formats.
const (
	FormatJSON    = "json"
	FormatDiscord = "discord"
)

// Discord embed colors (decimal format).
const (
	colorInfo    = 0x2ecc71
	colorWarning = 0xf39c12
	colorError   = 0xe74c3c
)

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Footer      *discordFooter      `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// WebhookSink POSTs events as JSON to a URL.
type WebhookSink struct {
	url    string
	format string
	client *http.Client
}

// NewWebhookSink creates a sink for url. An empty format means FormatJSON.
func NewWebhookSink(url, format string) *WebhookSink {
	if format == "" {
		format = FormatJSON
	}
	return &WebhookSink{
		url:    url,
		format: format,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

// IsConfigured returns true if the webhook URL is set.
func (w *WebhookSink) IsConfigured() bool { return w.url != "" }

// Send posts e and expects a 2xx reply.
func (w *WebhookSink) Send(ctx context.Context, e *Event) error {
	if !w.IsConfigured() {
		return nil
	}

	var payload any = e
	if w.format == FormatDiscord {
		payload = discordPayloadFor(e)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

func discordPayloadFor(e *Event) discordPayload {
	embed := discordEmbed{
		Title:       e.Title,
		Description: e.Message,
		Color:       severityToColor(e.Severity),
		Footer:      &discordFooter{Text: "kstack/" + string(e.Type)},
		Timestamp:   e.Time.UTC().Format(time.RFC3339),
	}

	keys := make([]string, 0, len(e.Metadata))
	for k, v := range e.Metadata {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name:   k,
			Value:  truncateString(e.Metadata[k], 1024), // Discord field limit.
			Inline: true,
		})
	}
	return discordPayload{Embeds: []discordEmbed{embed}}
}

func severityToColor(s Severity) int {
	switch s {
	case SeverityWarning:
		return colorWarning
	case SeverityError:
		return colorError
	default:
		return colorInfo
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
