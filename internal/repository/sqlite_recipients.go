package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/go-weather-alerts/internal/models"
)

func (s *SQLiteDB) GetRecipient(ctx context.Context, id string) (*models.Recipient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, push_token, alerts_enabled, updated_at FROM recipients WHERE id = ?`, id)

	r, err := scanRecipient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return r, nil
}

func (s *SQLiteDB) ListAlertRecipients(ctx context.Context) ([]models.Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, push_token, alerts_enabled, updated_at
		FROM recipients
		WHERE push_token IS NOT NULL AND push_token != '' AND alerts_enabled = 1
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list alert recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, *r)
	}
	return recipients, rows.Err()
}

func (s *SQLiteDB) RegisterPushToken(ctx context.Context, id, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recipients (id, push_token, alerts_enabled, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET push_token = excluded.push_token, updated_at = excluded.updated_at`,
		id, nullString(token), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("register push token: %w", err)
	}
	return nil
}

func (s *SQLiteDB) SetAlertsEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recipients (id, push_token, alerts_enabled, updated_at)
		VALUES (?, NULL, ?, ?)
		ON CONFLICT(id) DO UPDATE SET alerts_enabled = excluded.alerts_enabled, updated_at = excluded.updated_at`,
		id, enabled, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set alerts enabled: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ClearPushToken(ctx context.Context, id, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recipients SET push_token = NULL, updated_at = ?
		WHERE id = ? AND push_token = ?`,
		time.Now().UTC(), id, token,
	)
	if err != nil {
		return false, fmt.Errorf("clear push token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear push token rows affected: %w", err)
	}
	return n > 0, nil
}

func scanRecipient(sc scanner) (*models.Recipient, error) {
	var (
		r     models.Recipient
		token sql.NullString
	)
	if err := sc.Scan(&r.ID, &token, &r.AlertsEnabled, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.PushToken = token.String
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
