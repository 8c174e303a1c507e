package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/go-weather-alerts/internal/models"
)

var _ Store = (*SQLiteDB)(nil)

func (s *SQLiteDB) CreateAlert(ctx context.Context, a *models.Alert) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, source_id, event, headline, description, severity, area, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO NOTHING`,
		a.ID, a.SourceID, a.Event, a.Headline, a.Description, string(a.Severity), a.Area, a.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert alert rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteDB) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, event, headline, description, severity, area, created_at
		FROM alerts WHERE id = ?`, id)

	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *SQLiteDB) AlertExists(ctx context.Context, sourceID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM alerts WHERE source_id = ?)`, sourceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("alert exists: %w", err)
	}
	return exists, nil
}

func (s *SQLiteDB) ListAlerts(ctx context.Context, opts Filter) ([]models.Alert, error) {
	where, args := alertWhere(opts)
	query := `SELECT id, source_id, event, headline, description, severity, area, created_at FROM alerts` +
		where + ` ORDER BY created_at DESC, id`
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteDB) CountAlerts(ctx context.Context, opts Filter) (int, error) {
	where, args := alertWhere(opts)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

func (s *SQLiteDB) DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete alerts: %w", err)
	}
	return res.RowsAffected()
}

func alertWhere(opts Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if opts.Severity != nil {
		clauses = append(clauses, "severity = ?")
		args = append(args, string(*opts.Severity))
	}
	if opts.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, opts.Since.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(sc scanner) (*models.Alert, error) {
	var (
		a        models.Alert
		severity string
	)
	if err := sc.Scan(&a.ID, &a.SourceID, &a.Event, &a.Headline, &a.Description, &severity, &a.Area, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Severity = models.AlertSeverity(severity)
	return &a, nil
}
