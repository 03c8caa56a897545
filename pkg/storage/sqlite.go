package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockwatch/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

const alertColumns = `id, owner_id, ticker, exchange, company_name, target_price,
	currency, direction, last_price, last_checked, is_active, created_at`

func (s *SQLite) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, owner_id, ticker, exchange, company_name, target_price,
			currency, direction, last_price, last_checked, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.OwnerID, alert.Ticker, alert.Exchange, alert.CompanyName,
		alert.TargetPrice.String(), alert.Currency, string(alert.Direction),
		nullDecimalValue(alert.LastPrice), unixOrZero(alert.LastChecked), boolToInt(alert.Active),
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *SQLite) GetAlert(ctx context.Context, id string) (*model.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)

	alert, err := scanAlert(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

func (s *SQLite) ListActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.owner_id, a.ticker, a.exchange, a.company_name, a.target_price,
		       a.currency, a.direction, a.last_price, a.last_checked, a.is_active, a.created_at,
		       COALESCE(s.domestic_interval_sec, ?) AS domestic_interval_sec,
		       COALESCE(s.foreign_interval_sec, ?)  AS foreign_interval_sec
		FROM alerts a
		LEFT JOIN owner_settings s ON a.owner_id = s.owner_id
		WHERE a.is_active = 1`,
		int64(model.DefaultDomesticInterval/time.Second),
		int64(model.DefaultForeignInterval/time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var domesticSec, foreignSec int64
		alert, err := scanAlert(func(dest ...any) error {
			return rows.Scan(append(dest, &domesticSec, &foreignSec)...)
		})
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alert.DomesticInterval = time.Duration(domesticSec) * time.Second
		alert.ForeignInterval = time.Duration(foreignSec) * time.Second
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

func (s *SQLite) ListOwnerAlerts(ctx context.Context, ownerID int64) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+alertColumns+` FROM alerts
		 WHERE owner_id = ? AND is_active = 1
		 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owner alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		alert, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

func (s *SQLite) UpdateAlertCheck(ctx context.Context, id string, price decimal.Decimal, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET last_price = ?, last_checked = ? WHERE id = ?",
		price.String(), at.Unix(), id)
	if err != nil {
		return fmt.Errorf("update alert check: %w", err)
	}
	return nil
}

func (s *SQLite) DeactivateAlert(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deactivate alert: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteAlert(ctx context.Context, id string, ownerID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM alerts WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) RetargetAlert(ctx context.Context, id string, ownerID int64, target decimal.Decimal, direction model.Direction, price decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts
		 SET target_price = ?, direction = ?, last_price = ?, is_active = 1, last_checked = 0
		 WHERE id = ? AND owner_id = ?`,
		target.String(), string(direction), price.String(), id, ownerID)
	if err != nil {
		return fmt.Errorf("retarget alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retarget alert: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) GetOwnerSettings(ctx context.Context, ownerID int64) (*model.OwnerSettings, error) {
	var domesticSec, foreignSec int64
	err := s.db.QueryRowContext(ctx,
		"SELECT domestic_interval_sec, foreign_interval_sec FROM owner_settings WHERE owner_id = ?",
		ownerID).Scan(&domesticSec, &foreignSec)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := model.DefaultOwnerSettings(ownerID)
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get owner settings: %w", err)
	}

	return &model.OwnerSettings{
		OwnerID:          ownerID,
		DomesticInterval: time.Duration(domesticSec) * time.Second,
		ForeignInterval:  time.Duration(foreignSec) * time.Second,
	}, nil
}

func (s *SQLite) UpsertOwnerSettings(ctx context.Context, settings *model.OwnerSettings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owner_settings (owner_id, domestic_interval_sec, foreign_interval_sec)
		 VALUES (?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
			domestic_interval_sec = excluded.domestic_interval_sec,
			foreign_interval_sec  = excluded.foreign_interval_sec`,
		settings.OwnerID,
		int64(settings.DomesticInterval/time.Second),
		int64(settings.ForeignInterval/time.Second),
	)
	if err != nil {
		return fmt.Errorf("upsert owner settings: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// scanAlert reads one alert row through the given scan function.
func scanAlert(scan func(dest ...any) error) (*model.Alert, error) {
	var (
		a           model.Alert
		targetRaw   string
		lastRaw     sql.NullString
		lastChecked int64
		active      int
		direction   string
	)
	err := scan(&a.ID, &a.OwnerID, &a.Ticker, &a.Exchange, &a.CompanyName, &targetRaw,
		&a.Currency, &direction, &lastRaw, &lastChecked, &active, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.TargetPrice, err = decimal.NewFromString(targetRaw)
	if err != nil {
		return nil, fmt.Errorf("parse target price %q: %w", targetRaw, err)
	}
	if lastRaw.Valid {
		price, err := decimal.NewFromString(lastRaw.String)
		if err != nil {
			return nil, fmt.Errorf("parse last price %q: %w", lastRaw.String, err)
		}
		a.LastPrice = decimal.NewNullDecimal(price)
	}
	if lastChecked > 0 {
		a.LastChecked = time.Unix(lastChecked, 0).UTC()
	}
	a.Active = active != 0
	a.Direction = model.Direction(direction)
	return &a, nil
}

func nullDecimalValue(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

// unixOrZero maps the zero time to 0, the schema's "never checked".
func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
