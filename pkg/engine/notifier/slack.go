// Package notifier posts spawn summaries to chat webhooks.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
)

// SlackClient handles Slack notifications.
type SlackClient struct {
	WebhookURL string
	Channel    string // Optional: Override default channel

	client *http.Client
}

// NewSlackClient initializes the Slack integration.
func NewSlackClient(webhookURL string, channel string) *SlackClient {
	return &SlackClient{
		WebhookURL: webhookURL,
		Channel:    channel,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// SendSpawnReport posts the summary of a finished run. It is a no-op
// without a webhook URL.
func (s *SlackClient) SendSpawnReport(ctx context.Context, res *spawn.Result) error {
	if s.WebhookURL == "" || res == nil {
		return nil
	}
	return s.send(ctx, s.constructPayload(res))
}

// constructPayload builds the message blocks.
func (s *SlackClient) constructPayload(res *spawn.Result) map[string]any {
	statusIcon := "🟢"
	switch {
	case res.Aborted:
		statusIcon = "🔴"
	case !res.OK():
		statusIcon = "🟡"
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("%s Spawn %s @ %s", statusIcon, res.ConfigName, res.ContainerID),
			},
		},
		{
			"type": "context",
			"elements": []map[string]any{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Run:* %s | *Started:* %s", res.RunID, res.StartedAt.UTC().Format(time.RFC3339)),
				},
			},
		},
		{
			"type": "divider",
		},
		{
			"type": "section",
			"fields": []map[string]any{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Spawned:*\n%d/%d", res.Successful, res.Total),
				},
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Skipped:*\n%d", res.Skipped),
				},
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Failed:*\n%d", res.Failed+res.ConditionNotMet),
				},
			},
		},
	}

	if res.Aborted {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("⚠️ *Run aborted*\nA critical instance failed; %d instances were not processed.", res.Unprocessed()),
			},
		})
	}

	payload := map[string]any{
		"text":   res.Summary(),
		"blocks": blocks,
	}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	return payload
}

func (s *SlackClient) send(ctx context.Context, payload map[string]any) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status from slack: %d", resp.StatusCode)
	}
	return nil
}
