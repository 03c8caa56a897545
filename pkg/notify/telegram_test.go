package notify_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/pkg/model"
	"stockwatch/pkg/notify"
)

func TestTelegramSendsToOwnerChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok": true}`)
	}))
	defer srv.Close()

	n := notify.NewTelegramNotifier("test-token", srv.URL)
	require.NoError(t, n.Send(context.Background(), sampleEvent()))

	assert.Equal(t, float64(4242), got["chat_id"])
	assert.Equal(t, "Markdown", got["parse_mode"])

	text, _ := got["text"].(string)
	assert.Contains(t, text, "▲")
	assert.Contains(t, text, "*SBER*")
	assert.Contains(t, text, "risen above")
	assert.Contains(t, text, "₽300")
	assert.Contains(t, text, "₽301.5")
}

func TestTelegramBelowDirectionWording(t *testing.T) {
	var text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		text, _ = got["text"].(string)
		fmt.Fprint(w, `{"ok": true}`)
	}))
	defer srv.Close()

	event := sampleEvent()
	event.Alert.Direction = model.DirectionBelow
	event.Alert.Currency = "USD"

	n := notify.NewTelegramNotifier("test-token", srv.URL)
	require.NoError(t, n.Send(context.Background(), event))

	assert.Contains(t, text, "▼")
	assert.Contains(t, text, "fallen below")
	assert.Contains(t, text, "$300")
}

func TestTelegramAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"ok": false, "description": "bot was blocked by the user"}`)
	}))
	defer srv.Close()

	n := notify.NewTelegramNotifier("test-token", srv.URL)
	err := n.Send(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked by the user")
}
