package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"stockwatch/pkg/model"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier delivers trigger messages through the Telegram Bot
// API. The chat is the alert's owner, so one notifier instance serves
// every user.
type TelegramNotifier struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewTelegramNotifier creates a Telegram notifier. baseURL overrides
// the Bot API host, empty means production.
func NewTelegramNotifier(token, baseURL string) *TelegramNotifier {
	if baseURL == "" {
		baseURL = telegramAPIBase
	}
	return &TelegramNotifier{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Send(ctx context.Context, event model.TriggerEvent) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":    event.Alert.OwnerID,
		"text":       formatTriggerMessage(event),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, apiErr.Description)
	}
	return nil
}

// formatTriggerMessage renders the user-facing alert text.
func formatTriggerMessage(event model.TriggerEvent) string {
	arrow := "▲" // ▲
	word := "risen above"
	if event.Alert.Direction == model.DirectionBelow {
		arrow = "▼" // ▼
		word = "fallen below"
	}
	sym := currencySymbol(event.Alert.Currency)
	return fmt.Sprintf("%s *%s* (%s) has %s your target %s%s\nCurrent price: %s%s",
		arrow,
		event.Alert.Ticker,
		event.Alert.CompanyName,
		word,
		sym, event.Alert.TargetPrice.String(),
		sym, event.Price.String(),
	)
}
