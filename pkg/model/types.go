package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells which way the price has to cross the target.
type Direction string

const (
	DirectionAbove Direction = "above" // fires when price rises to or above target
	DirectionBelow Direction = "below" // fires when price falls to or below target
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionAbove, DirectionBelow:
		return Direction(s), nil
	}
	return "", fmt.Errorf("invalid direction %q (want %q or %q)", s, DirectionAbove, DirectionBelow)
}

// Crossed reports whether an observed price satisfies the trigger
// condition against the target. The boundary is inclusive in both
// directions.
func (d Direction) Crossed(price, target decimal.Decimal) bool {
	switch d {
	case DirectionAbove:
		return price.GreaterThanOrEqual(target)
	case DirectionBelow:
		return price.LessThanOrEqual(target)
	}
	return false
}

// ExchangeMOEX is the domestic exchange code.
const ExchangeMOEX = "MOEX"

// Default refresh intervals applied when an owner has no stored settings.
const (
	DefaultDomesticInterval = 60 * time.Second
	DefaultForeignInterval  = 180 * time.Second
)

// Alert is a single-shot price target owned by one user. Once a
// trigger deactivates it, the monitoring core never reactivates it;
// only an explicit retarget does.
type Alert struct {
	ID          string              `json:"id" db:"id"`
	OwnerID     int64               `json:"owner_id" db:"owner_id"`
	Ticker      string              `json:"ticker" db:"ticker"`
	Exchange    string              `json:"exchange" db:"exchange"`
	CompanyName string              `json:"company_name" db:"company_name"`
	TargetPrice decimal.Decimal     `json:"target_price" db:"target_price"`
	Currency    string              `json:"currency" db:"currency"`
	Direction   Direction           `json:"direction" db:"direction"`
	LastPrice   decimal.NullDecimal `json:"last_price" db:"last_price"`
	LastChecked time.Time           `json:"last_checked" db:"last_checked"`
	Active      bool                `json:"active" db:"is_active"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`

	// Refresh intervals resolved from the owner's settings when the
	// alert set is listed for monitoring.
	DomesticInterval time.Duration `json:"-" db:"-"`
	ForeignInterval  time.Duration `json:"-" db:"-"`
}

// Domestic reports whether the alert is served by the domestic
// single-quote tier.
func (a *Alert) Domestic() bool {
	return a.Exchange == ExchangeMOEX
}

// RefreshInterval returns the interval that applies to this alert's tier.
func (a *Alert) RefreshInterval() time.Duration {
	if a.Domestic() {
		return a.DomesticInterval
	}
	return a.ForeignInterval
}

// Due reports whether the alert needs a refresh at the given instant.
// A zero LastChecked means the alert has never been checked and is
// always due.
func (a *Alert) Due(now time.Time) bool {
	if a.LastChecked.IsZero() {
		return true
	}
	return now.Sub(a.LastChecked) >= a.RefreshInterval()
}

// OwnerSettings holds per-owner monitoring preferences.
type OwnerSettings struct {
	OwnerID          int64         `json:"owner_id" db:"owner_id"`
	DomesticInterval time.Duration `json:"domestic_interval" db:"domestic_interval_sec"`
	ForeignInterval  time.Duration `json:"foreign_interval" db:"foreign_interval_sec"`
}

// DefaultOwnerSettings returns the fallback settings for an owner.
func DefaultOwnerSettings(ownerID int64) OwnerSettings {
	return OwnerSettings{
		OwnerID:          ownerID,
		DomesticInterval: DefaultDomesticInterval,
		ForeignInterval:  DefaultForeignInterval,
	}
}

// Quote is the normalized result of a ticker lookup, regardless of
// which provider's vocabulary it came from.
type Quote struct {
	Ticker      string          `json:"ticker"`
	CompanyName string          `json:"company_name"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Exchange    string          `json:"exchange"`
}

// TriggerEvent is emitted exactly once per alert, at the moment the
// observed price crosses the target. Alert is a snapshot taken before
// deactivation.
type TriggerEvent struct {
	Alert Alert           `json:"alert"`
	Price decimal.Decimal `json:"price"`
	At    time.Time       `json:"at"`
}
