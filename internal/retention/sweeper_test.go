package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mr1hm/go-weather-alerts/internal/models"
	"github.com/mr1hm/go-weather-alerts/internal/repository"
)

type recordingExpirer struct {
	cutoff time.Time
	n      int64
	err    error
}

func (r *recordingExpirer) DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.cutoff = cutoff
	return r.n, r.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSweeper_Cutoff(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	exp := &recordingExpirer{n: 3}
	s := NewSweeper(exp, 7)
	s.now = fixedClock(now)

	deleted, err := s.ExpireOlderThan(context.Background(), 7)
	if err != nil {
		t.Fatalf("ExpireOlderThan failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}
	want := now.Add(-7 * 24 * time.Hour)
	if !exp.cutoff.Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, exp.cutoff)
	}
}

func TestSweeper_InvalidDays(t *testing.T) {
	s := NewSweeper(&recordingExpirer{}, 7)
	for _, days := range []int{0, -1} {
		if _, err := s.ExpireOlderThan(context.Background(), days); !errors.Is(err, ErrInvalidRetention) {
			t.Errorf("days=%d: expected ErrInvalidRetention, got %v", days, err)
		}
	}
}

func TestSweeper_RepositoryError(t *testing.T) {
	s := NewSweeper(&recordingExpirer{err: errors.New("locked")}, 7)
	if err := s.Tick(context.Background()); err == nil {
		t.Fatal("expected error from failing repository")
	}
}

func TestSweeper_AgainstSQLite(t *testing.T) {
	db, err := repository.NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	for _, a := range []struct {
		id  string
		age time.Duration
	}{
		{"old", 8 * 24 * time.Hour},
		{"recent", 6 * 24 * time.Hour},
		{"fresh", time.Hour},
	} {
		_, err := db.CreateAlert(ctx, &models.Alert{
			ID:        a.id,
			SourceID:  "urn:" + a.id,
			Event:     "Wind Advisory",
			Severity:  models.AlertSeverityModerate,
			CreatedAt: now.Add(-a.age),
		})
		if err != nil {
			t.Fatalf("CreateAlert failed: %v", err)
		}
	}
	if err := db.RegisterPushToken(ctx, "user-1", "tok-1"); err != nil {
		t.Fatalf("RegisterPushToken failed: %v", err)
	}

	s := NewSweeper(db, 7)
	s.now = fixedClock(now)
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if _, err := db.GetAlert(ctx, "old"); !errors.Is(err, repository.ErrAlertNotFound) {
		t.Errorf("expected 8 day old alert removed, got %v", err)
	}
	for _, id := range []string{"recent", "fresh"} {
		if _, err := db.GetAlert(ctx, id); err != nil {
			t.Errorf("expected %s retained, got %v", id, err)
		}
	}
	if _, err := db.GetRecipient(ctx, "user-1"); err != nil {
		t.Errorf("expected recipient untouched, got %v", err)
	}

	// A second sweep finds nothing left to remove.
	deleted, err := s.ExpireOlderThan(ctx, 7)
	if err != nil || deleted != 0 {
		t.Errorf("expected idempotent sweep, got %d (%v)", deleted, err)
	}
}
