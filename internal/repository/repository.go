package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mr1hm/go-weather-alerts/internal/config"
	"github.com/mr1hm/go-weather-alerts/internal/models"
)

var (
	ErrAlertNotFound     = errors.New("alert not found")
	ErrRecipientNotFound = errors.New("recipient not found")
)

type Filter struct {
	Limit    int
	Offset   int
	Severity *models.AlertSeverity
	Since    *time.Time
}

type AlertRepository interface {
	// CreateAlert inserts a. It reports false without error when an alert
	// with the same SourceID already exists.
	CreateAlert(ctx context.Context, a *models.Alert) (bool, error)
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	AlertExists(ctx context.Context, sourceID string) (bool, error)
	ListAlerts(ctx context.Context, opts Filter) ([]models.Alert, error)
	CountAlerts(ctx context.Context, opts Filter) (int, error)
	DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RecipientRepository interface {
	GetRecipient(ctx context.Context, id string) (*models.Recipient, error)
	// ListAlertRecipients returns recipients with a token that opted in to alerts.
	ListAlertRecipients(ctx context.Context) ([]models.Recipient, error)
	RegisterPushToken(ctx context.Context, id, token string) error
	SetAlertsEnabled(ctx context.Context, id string, enabled bool) error
	// ClearPushToken removes the token of id only if it still equals token.
	ClearPushToken(ctx context.Context, id, token string) (bool, error)
}

type Store interface {
	AlertRepository
	RecipientRepository
	Close() error
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		return NewSQLiteDB(cfg.Path)
	case "postgres":
		return NewPostgresDB(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
