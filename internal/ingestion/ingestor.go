package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-weather-alerts/internal/broadcast"
	"github.com/mr1hm/go-weather-alerts/internal/dispatch"
	"github.com/mr1hm/go-weather-alerts/internal/models"
	"github.com/mr1hm/go-weather-alerts/internal/repository"
)

var ErrTickInProgress = errors.New("ingest tick already in progress")

type Feed interface {
	Fetch(ctx context.Context) ([]FeedItem, error)
}

type AlertDispatcher interface {
	DispatchAlert(ctx context.Context, a *models.Alert) (dispatch.Report, error)
}

type Summary struct {
	ItemsSeen     int
	AlertsCreated int
	Skipped       int
}

type Ingestor struct {
	feed        Feed
	repo        repository.AlertRepository
	dispatcher  AlertDispatcher
	broadcaster *broadcast.Broadcaster
	mu          sync.Mutex
	now         func() time.Time
}

// NewIngestor wires the feed to the store. broadcaster may be nil.
func NewIngestor(feed Feed, repo repository.AlertRepository, dispatcher AlertDispatcher, broadcaster *broadcast.Broadcaster) *Ingestor {
	return &Ingestor{
		feed:        feed,
		repo:        repo,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// IngestOnce runs one tick: fetch, dedupe, persist, and dispatch each new
// alert. A tick started while another is running returns ErrTickInProgress.
func (in *Ingestor) IngestOnce(ctx context.Context) (Summary, error) {
	if !in.mu.TryLock() {
		return Summary{}, ErrTickInProgress
	}
	defer in.mu.Unlock()

	items, err := in.feed.Fetch(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch alerts: %w", err)
	}

	summary := Summary{ItemsSeen: len(items)}
	for _, item := range items {
		created, err := in.ingestItem(ctx, item)
		if err != nil {
			slog.Error("error processing alert", "source_id", item.SourceID, "error", err)
			summary.Skipped++
			continue
		}
		if !created {
			summary.Skipped++
			continue
		}
		summary.AlertsCreated++
	}

	slog.Info("ingest tick complete", "items_seen", summary.ItemsSeen, "alerts_created", summary.AlertsCreated)
	return summary, nil
}

func (in *Ingestor) ingestItem(ctx context.Context, item FeedItem) (bool, error) {
	if item.SourceID == "" {
		slog.Warn("skipping alert with missing ID", "event", item.Event)
		return false, nil
	}

	exists, err := in.repo.AlertExists(ctx, item.SourceID)
	if err != nil {
		return false, fmt.Errorf("check existence: %w", err)
	}
	if exists {
		return false, nil
	}

	alert := buildAlert(item, in.now())
	created, err := in.repo.CreateAlert(ctx, alert)
	if err != nil {
		return false, fmt.Errorf("create alert: %w", err)
	}
	if !created {
		return false, nil
	}
	slog.Info("created new alert", "id", alert.ID, "event", alert.Event, "area", alert.Area, "severity", alert.Severity)

	if in.broadcaster != nil {
		in.broadcaster.Publish(alert)
	}

	// Delivery problems stay scoped to this alert.
	if _, err := in.dispatcher.DispatchAlert(ctx, alert); err != nil {
		slog.Error("alert dispatch failed", "id", alert.ID, "error", err)
	}
	return true, nil
}

func buildAlert(item FeedItem, now time.Time) *models.Alert {
	severity, ok := models.ParseSeverity(item.Severity)
	if !ok {
		severity = models.AlertSeverityMinor
	}
	return &models.Alert{
		ID:          uuid.NewString(),
		SourceID:    item.SourceID,
		Event:       models.Truncate(item.Event, models.MaxEventLen),
		Headline:    models.Truncate(item.Headline, models.MaxHeadlineLen),
		Description: item.Description,
		Severity:    severity,
		Area:        models.Truncate(item.Area, models.MaxAreaLen),
		CreatedAt:   now.UTC(),
	}
}
