package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stockwatch/pkg/model"
)

// WebhookNotifier posts trigger events to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook notifier.
// If secret is non-empty, requests are signed with HMAC-SHA256.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Send(ctx context.Context, event model.TriggerEvent) error {
	payload := webhookPayload{
		Event:       "alert_triggered",
		Timestamp:   event.At.UTC().Format(time.RFC3339),
		AlertID:     event.Alert.ID,
		OwnerID:     event.Alert.OwnerID,
		Ticker:      event.Alert.Ticker,
		Exchange:    event.Alert.Exchange,
		Direction:   string(event.Alert.Direction),
		TargetPrice: event.Alert.TargetPrice.String(),
		Price:       event.Price.String(),
		Currency:    event.Alert.Currency,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "stockwatch/1.0")

	if w.secret != "" {
		sig := computeHMAC(body, []byte(w.secret))
		req.Header.Set("X-Signature-256", "sha256="+sig)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type webhookPayload struct {
	Event       string `json:"event"`
	Timestamp   string `json:"timestamp"`
	AlertID     string `json:"alert_id"`
	OwnerID     int64  `json:"owner_id"`
	Ticker      string `json:"ticker"`
	Exchange    string `json:"exchange"`
	Direction   string `json:"direction"`
	TargetPrice string `json:"target_price"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
