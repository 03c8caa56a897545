package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"stockwatch/pkg/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines the persistence layer for alerts and owner settings.
// All operations are per-row; the monitoring core never needs a
// multi-row transaction.
type Storage interface {
	// CreateAlert persists a new alert, assigning an ID when empty.
	CreateAlert(ctx context.Context, alert *model.Alert) error

	// GetAlert retrieves one alert by id.
	GetAlert(ctx context.Context, id string) (*model.Alert, error)

	// ListActiveAlerts returns every active alert joined with the
	// owner's refresh intervals (defaults applied when the owner has
	// no stored settings).
	ListActiveAlerts(ctx context.Context) ([]model.Alert, error)

	// ListOwnerAlerts returns an owner's active alerts, newest first.
	ListOwnerAlerts(ctx context.Context, ownerID int64) ([]model.Alert, error)

	// UpdateAlertCheck records a fresh observation: last price and
	// last-checked timestamp.
	UpdateAlertCheck(ctx context.Context, id string, price decimal.Decimal, at time.Time) error

	// DeactivateAlert latches an alert off. Idempotent.
	DeactivateAlert(ctx context.Context, id string) error

	// DeleteAlert removes an owner's alert. Returns ErrNotFound when
	// no row matched.
	DeleteAlert(ctx context.Context, id string, ownerID int64) error

	// RetargetAlert moves the target, possibly flipping direction,
	// reactivates the alert and clears last-checked so the next cycle
	// picks it up immediately.
	RetargetAlert(ctx context.Context, id string, ownerID int64, target decimal.Decimal, direction model.Direction, price decimal.Decimal) error

	// GetOwnerSettings returns the owner's settings, falling back to
	// defaults when none are stored.
	GetOwnerSettings(ctx context.Context, ownerID int64) (*model.OwnerSettings, error)

	// UpsertOwnerSettings creates or replaces the owner's settings.
	UpsertOwnerSettings(ctx context.Context, settings *model.OwnerSettings) error

	// Close releases resources.
	Close() error
}
