// Package notify delivers alert trigger notifications.
package notify

import (
	"context"

	"stockwatch/pkg/model"
)

// Notifier delivers a trigger event to one channel. Delivery is
// best-effort: by the time Send is called the alert is already
// deactivated, and a failed send is logged, not retried.
type Notifier interface {
	Name() string
	Send(ctx context.Context, event model.TriggerEvent) error
}

// currencySymbols maps ISO codes to display symbols. Unknown codes
// render as the code itself.
var currencySymbols = map[string]string{
	"RUB": "₽",
	"USD": "$",
	"HKD": "HK$",
	"EUR": "€",
}

func currencySymbol(code string) string {
	if sym, ok := currencySymbols[code]; ok {
		return sym
	}
	return code
}
