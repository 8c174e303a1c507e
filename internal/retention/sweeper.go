// Package retention removes alerts that have outlived the retention window.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrInvalidRetention = errors.New("retention days must be positive")

// Expirer deletes alerts created strictly before cutoff.
type Expirer interface {
	DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Sweeper struct {
	repo          Expirer
	retentionDays int
	now           func() time.Time
}

func NewSweeper(repo Expirer, retentionDays int) *Sweeper {
	return &Sweeper{
		repo:          repo,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// ExpireOlderThan deletes every alert created more than days days ago and
// returns how many were removed. Recipients are never touched.
func (s *Sweeper) ExpireOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, ErrInvalidRetention
	}
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	deleted, err := s.repo.DeleteAlertsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired alerts: %w", err)
	}
	slog.Info("expired old alerts", "deleted", deleted, "retention_days", days, "cutoff", cutoff)
	return deleted, nil
}

// Tick runs one sweep with the configured retention window.
func (s *Sweeper) Tick(ctx context.Context) error {
	_, err := s.ExpireOlderThan(ctx, s.retentionDays)
	return err
}
