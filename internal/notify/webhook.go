package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"whaletracker/internal/papertrade"
)

type Webhook struct {
	URL  string
	HTTP *http.Client
}

type WebhookPayload struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (w Webhook) SendAlert(ctx context.Context, alert Alert) error {
	return w.post(ctx, WebhookPayload{Event: "whale_alert", Data: alert})
}

func (w Webhook) SendDigest(ctx context.Context, stats papertrade.Stats) error {
	return w.post(ctx, WebhookPayload{Event: "performance_digest", Data: stats})
}

func (w Webhook) post(ctx context.Context, payload WebhookPayload) error {
	if w.URL == "" {
		return fmt.Errorf("webhook url is empty")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	client := w.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: http %d", payload.Event, resp.StatusCode)
	}
	return nil
}
