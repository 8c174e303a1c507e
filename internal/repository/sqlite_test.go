package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mr1hm/go-weather-alerts/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteDB {
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	return db
}

func newAlert(id, sourceID string, createdAt time.Time) *models.Alert {
	return &models.Alert{
		ID:          id,
		SourceID:    sourceID,
		Event:       "Flood Warning",
		Headline:    "Flood Warning issued for Clark County",
		Description: "Heavy rain expected.",
		Severity:    models.AlertSeverityModerate,
		Area:        "Clark, NV",
		CreatedAt:   createdAt,
	}
}

func TestSQLiteDB_CreateAndGetAlert(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	a := newAlert("a1", "urn:oid:1", time.Now())

	created, err := db.CreateAlert(ctx, a)
	if err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	if !created {
		t.Fatal("expected alert to be created")
	}

	got, err := db.GetAlert(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got.SourceID != "urn:oid:1" {
		t.Errorf("expected source id 'urn:oid:1', got '%s'", got.SourceID)
	}
	if got.Severity != models.AlertSeverityModerate {
		t.Errorf("expected severity Moderate, got '%s'", got.Severity)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to round-trip")
	}
}

func TestSQLiteDB_GetAlert_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetAlert(context.Background(), "missing")
	if !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}
}

func TestSQLiteDB_DuplicateSourceID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	if _, err := db.CreateAlert(ctx, newAlert("a1", "dup", time.Now())); err != nil {
		t.Fatalf("first CreateAlert failed: %v", err)
	}

	// Same source, different internal id: must be a no-op
	created, err := db.CreateAlert(ctx, newAlert("a2", "dup", time.Now()))
	if err != nil {
		t.Fatalf("second CreateAlert failed: %v", err)
	}
	if created {
		t.Error("expected duplicate source id to be ignored")
	}

	count, err := db.CountAlerts(ctx, Filter{})
	if err != nil {
		t.Fatalf("CountAlerts failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 alert, got %d", count)
	}
}

func TestSQLiteDB_AlertExists(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	exists, err := db.AlertExists(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("AlertExists failed: %v", err)
	}
	if exists {
		t.Error("expected false for nonexistent source id")
	}

	db.CreateAlert(ctx, newAlert("a1", "exists_test", time.Now()))

	exists, err = db.AlertExists(ctx, "exists_test")
	if err != nil {
		t.Fatalf("AlertExists failed: %v", err)
	}
	if !exists {
		t.Error("expected true for existing source id")
	}
}

func TestSQLiteDB_ListAlerts_WithFilters(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		a := newAlert(fmt.Sprintf("a%d", i), fmt.Sprintf("src%d", i), now.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			a.Severity = models.AlertSeveritySevere
		}
		db.CreateAlert(ctx, a)
	}

	// Newest first
	results, err := db.ListAlerts(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 alerts, got %d", len(results))
	}
	if results[0].ID != "a4" {
		t.Errorf("expected newest alert a4 first, got %s", results[0].ID)
	}

	severe := models.AlertSeveritySevere
	results, err = db.ListAlerts(ctx, Filter{Severity: &severe})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 severe alerts, got %d", len(results))
	}

	count, err := db.CountAlerts(ctx, Filter{Severity: &severe})
	if err != nil {
		t.Fatalf("CountAlerts failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}

	// Limit + offset
	results, err = db.ListAlerts(ctx, Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 alerts with limit, got %d", len(results))
	}
	if results[0].ID != "a2" {
		t.Errorf("expected a2 at offset 2, got %s", results[0].ID)
	}

	// Since, combined with severity
	since := now.Add(150 * time.Second)
	results, err = db.ListAlerts(ctx, Filter{Since: &since})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(results) != 2 || results[0].ID != "a4" || results[1].ID != "a3" {
		t.Errorf("expected a4, a3 since cutoff, got %+v", results)
	}
	count, err = db.CountAlerts(ctx, Filter{Since: &since, Severity: &severe})
	if err != nil {
		t.Fatalf("CountAlerts failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 severe alert since cutoff, got %d", count)
	}
}

func TestSQLiteDB_DeleteAlertsBefore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	db.CreateAlert(ctx, newAlert("old", "old", now.AddDate(0, 0, -8)))
	db.CreateAlert(ctx, newAlert("recent", "recent", now.AddDate(0, 0, -6)))

	deleted, err := db.DeleteAlertsBefore(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("DeleteAlertsBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 alert deleted, got %d", deleted)
	}

	if _, err := db.GetAlert(ctx, "recent"); err != nil {
		t.Errorf("expected recent alert retained, got %v", err)
	}
	if _, err := db.GetAlert(ctx, "old"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("expected old alert removed, got %v", err)
	}
}

func TestSQLiteDB_RegisterAndGetRecipient(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	if _, err := db.GetRecipient(ctx, "u1"); !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound, got %v", err)
	}

	if err := db.RegisterPushToken(ctx, "u1", "token-1"); err != nil {
		t.Fatalf("RegisterPushToken failed: %v", err)
	}
	r, err := db.GetRecipient(ctx, "u1")
	if err != nil {
		t.Fatalf("GetRecipient failed: %v", err)
	}
	if r.PushToken != "token-1" {
		t.Errorf("expected token-1, got '%s'", r.PushToken)
	}
	if !r.AlertsEnabled {
		t.Error("expected alerts enabled by default")
	}

	// Re-registering replaces the token and keeps the preference
	db.SetAlertsEnabled(ctx, "u1", false)
	db.RegisterPushToken(ctx, "u1", "token-2")
	r, _ = db.GetRecipient(ctx, "u1")
	if r.PushToken != "token-2" {
		t.Errorf("expected token-2, got '%s'", r.PushToken)
	}
	if r.AlertsEnabled {
		t.Error("expected preference to survive re-registration")
	}
}

func TestSQLiteDB_ListAlertRecipients(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	db.RegisterPushToken(ctx, "opted-in", "tok-a")
	db.RegisterPushToken(ctx, "opted-out", "tok-b")
	db.SetAlertsEnabled(ctx, "opted-out", false)
	db.SetAlertsEnabled(ctx, "no-token", true)
	db.RegisterPushToken(ctx, "empty-token", "")

	recipients, err := db.ListAlertRecipients(ctx)
	if err != nil {
		t.Fatalf("ListAlertRecipients failed: %v", err)
	}
	if len(recipients) != 1 {
		t.Fatalf("expected 1 eligible recipient, got %d", len(recipients))
	}
	if recipients[0].ID != "opted-in" {
		t.Errorf("expected opted-in, got %s", recipients[0].ID)
	}
}

func TestSQLiteDB_ClearPushToken(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	db.RegisterPushToken(ctx, "u1", "stale")

	// A token that no longer matches is left alone
	cleared, err := db.ClearPushToken(ctx, "u1", "other")
	if err != nil {
		t.Fatalf("ClearPushToken failed: %v", err)
	}
	if cleared {
		t.Error("expected no clear for mismatched token")
	}

	cleared, err = db.ClearPushToken(ctx, "u1", "stale")
	if err != nil {
		t.Fatalf("ClearPushToken failed: %v", err)
	}
	if !cleared {
		t.Error("expected token to be cleared")
	}

	r, _ := db.GetRecipient(ctx, "u1")
	if r.HasToken() {
		t.Errorf("expected token absent, got '%s'", r.PushToken)
	}
}
