package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// WebhookSink posts Discord-style `{"content": ...}` payloads.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(webhookURL, proxyBase string) *WebhookSink {
	return &WebhookSink{
		url:    rewriteWebhookURL(webhookURL, proxyBase),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) Send(title, body string) error {
	payload, err := json.Marshal(map[string]string{
		"content": fmt.Sprintf("**%s**\n%s", title, body),
	})
	if err != nil {
		return err
	}
	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var webhookPathRe = regexp.MustCompile(`/api/webhooks/(\d+)/([^/?#]+)`)

// rewriteWebhookURL routes a Discord webhook through a reverse-proxy
// base when one is configured, mapping .../api/webhooks/{id}/{token}
// to <base>/webhooks/{id}/{token}.
func rewriteWebhookURL(webhookURL, proxyBase string) string {
	if proxyBase == "" {
		return webhookURL
	}
	m := webhookPathRe.FindStringSubmatch(webhookURL)
	if m == nil {
		return webhookURL
	}
	return strings.TrimRight(proxyBase, "/") + "/webhooks/" + m[1] + "/" + m[2]
}
