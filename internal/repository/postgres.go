package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mr1hm/go-weather-alerts/internal/models"
)

var _ Store = (*PostgresDB)(nil)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, dsn string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	p := &PostgresDB{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}
	return p, nil
}

func (p *PostgresDB) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS alerts (
			id UUID PRIMARY KEY,
			source_id VARCHAR(500) NOT NULL UNIQUE,
			event VARCHAR(200) NOT NULL,
			headline VARCHAR(500) NOT NULL,
			description TEXT NOT NULL,
			severity VARCHAR(20) NOT NULL,
			area VARCHAR(500) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS recipients (
			id TEXT PRIMARY KEY,
			push_token VARCHAR(500),
			alerts_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
		CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
	`)
	return err
}

func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

// ---- AlertRepository ----

func (p *PostgresDB) CreateAlert(ctx context.Context, a *models.Alert) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO alerts (id, source_id, event, headline, description, severity, area, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_id) DO NOTHING`,
		a.ID, a.SourceID, a.Event, a.Headline, a.Description, string(a.Severity), a.Area, a.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresDB) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id::text, source_id, event, headline, description, severity, area, created_at
		FROM alerts WHERE id = $1`, id)

	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (p *PostgresDB) AlertExists(ctx context.Context, sourceID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM alerts WHERE source_id = $1)`, sourceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("alert exists: %w", err)
	}
	return exists, nil
}

func (p *PostgresDB) ListAlerts(ctx context.Context, opts Filter) ([]models.Alert, error) {
	where, args := pgAlertWhere(opts)
	query := `SELECT id::text, source_id, event, headline, description, severity, area, created_at FROM alerts` +
		where + ` ORDER BY created_at DESC, id`
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := p.pool.Query(ctx, query, args...)
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

func (p *PostgresDB) CountAlerts(ctx context.Context, opts Filter) (int, error) {
	where, args := pgAlertWhere(opts)
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

func (p *PostgresDB) DeleteAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM alerts WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func pgAlertWhere(opts Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if opts.Severity != nil {
		args = append(args, string(*opts.Severity))
		clauses = append(clauses, fmt.Sprintf("severity = $%d", len(args)))
	}
	if opts.Since != nil {
		args = append(args, opts.Since.UTC())
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ---- RecipientRepository ----

func (p *PostgresDB) GetRecipient(ctx context.Context, id string) (*models.Recipient, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, push_token, alerts_enabled, updated_at FROM recipients WHERE id = $1`, id)

	r, err := scanPgRecipient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return r, nil
}

func (p *PostgresDB) ListAlertRecipients(ctx context.Context) ([]models.Recipient, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, push_token, alerts_enabled, updated_at
		FROM recipients
		WHERE push_token IS NOT NULL AND push_token <> '' AND alerts_enabled
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list alert recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		r, err := scanPgRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, *r)
	}
	return recipients, rows.Err()
}

func (p *PostgresDB) RegisterPushToken(ctx context.Context, id, token string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO recipients (id, push_token, alerts_enabled, updated_at)
		VALUES ($1, NULLIF($2, ''), TRUE, NOW())
		ON CONFLICT (id) DO UPDATE SET push_token = EXCLUDED.push_token, updated_at = NOW()`,
		id, token,
	)
	if err != nil {
		return fmt.Errorf("register push token: %w", err)
	}
	return nil
}

func (p *PostgresDB) SetAlertsEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO recipients (id, push_token, alerts_enabled, updated_at)
		VALUES ($1, NULL, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET alerts_enabled = EXCLUDED.alerts_enabled, updated_at = NOW()`,
		id, enabled,
	)
	if err != nil {
		return fmt.Errorf("set alerts enabled: %w", err)
	}
	return nil
}

func (p *PostgresDB) ClearPushToken(ctx context.Context, id, token string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE recipients SET push_token = NULL, updated_at = NOW()
		WHERE id = $1 AND push_token = $2`, id, token)
	if err != nil {
		return false, fmt.Errorf("clear push token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanPgRecipient(sc scanner) (*models.Recipient, error) {
	var (
		r     models.Recipient
		token *string
	)
	if err := sc.Scan(&r.ID, &token, &r.AlertsEnabled, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if token != nil {
		r.PushToken = *token
	}
	return &r, nil
}
