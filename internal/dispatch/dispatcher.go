// Package dispatch fans a notification out to every eligible recipient and
// keeps the device registry free of dead tokens.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mr1hm/go-weather-alerts/internal/models"
	"github.com/mr1hm/go-weather-alerts/internal/push"
	"github.com/mr1hm/go-weather-alerts/internal/worker"
)

var ErrNoPushToken = errors.New("recipient has no push token registered")

const (
	defaultTestTitle = "Test Notification"
	defaultTestBody  = "This is a test notification!"

	categoryWeatherAlert = "weather_alert"
	categoryTest         = "test_notification"
)

// Registry is the slice of the device registry the dispatcher needs.
type Registry interface {
	GetRecipient(ctx context.Context, id string) (*models.Recipient, error)
	ListAlertRecipients(ctx context.Context) ([]models.Recipient, error)
	ClearPushToken(ctx context.Context, id, token string) (bool, error)
}

type Report struct {
	Delivered     int
	Failed        int
	InvalidTokens int // subset of Failed whose tokens were cleared
}

// Any reports whether at least one delivery succeeded.
func (r Report) Any() bool {
	return r.Delivered > 0
}

// Batch is the point-in-time snapshot of one dispatch.
type Batch struct {
	Message    push.Message
	Recipients []models.Recipient
}

func (b Batch) tokens() []string {
	tokens := make([]string, len(b.Recipients))
	for i, r := range b.Recipients {
		tokens[i] = r.PushToken
	}
	return tokens
}

type Dispatcher struct {
	registry    Registry
	single      push.SingleSender
	batch       push.BatchSender
	concurrency int
}

// New builds a Dispatcher around gateway. Multicast delivery is used when
// gateway also implements push.BatchSender; otherwise tokens are sent
// one-by-one on up to concurrency goroutines.
func New(registry Registry, gateway push.SingleSender, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	d := &Dispatcher{
		registry:    registry,
		single:      gateway,
		concurrency: concurrency,
	}
	if b, ok := gateway.(push.BatchSender); ok {
		d.batch = b
	}
	return d
}

func (d *Dispatcher) Strategy() string {
	if d.batch != nil {
		return "multicast"
	}
	return "single"
}

// DispatchAlert notifies every recipient that has a token and opted in to
// alerts. The returned error is set only when recipients cannot be resolved.
func (d *Dispatcher) DispatchAlert(ctx context.Context, a *models.Alert) (Report, error) {
	recipients, err := d.registry.ListAlertRecipients(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("resolve alert recipients: %w", err)
	}

	eligible := make([]models.Recipient, 0, len(recipients))
	for _, r := range recipients {
		if r.EligibleForAlerts() {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) == 0 {
		slog.Info("no eligible recipients for alert", "alert_id", a.ID)
		return Report{}, nil
	}

	b := Batch{
		Message: push.Message{
			Title: a.Event,
			Body:  a.Headline,
			Data: map[string]string{
				"alert_id": a.ID,
				"severity": string(a.Severity),
				"area":     a.Area,
				"type":     categoryWeatherAlert,
			},
		},
		Recipients: eligible,
	}

	report := d.settle(ctx, b, d.deliver(ctx, b))
	slog.Info("alert dispatched",
		"alert_id", a.ID, "strategy", d.Strategy(),
		"delivered", report.Delivered, "failed", report.Failed, "invalid_tokens", report.InvalidTokens)
	return report, nil
}

// DispatchDirect sends title and body to a single recipient regardless of
// their alert preference.
func (d *Dispatcher) DispatchDirect(ctx context.Context, recipientID, title, body string) (bool, error) {
	r, err := d.registry.GetRecipient(ctx, recipientID)
	if err != nil {
		return false, fmt.Errorf("get recipient %s: %w", recipientID, err)
	}
	if !r.HasToken() {
		return false, ErrNoPushToken
	}

	if title == "" {
		title = defaultTestTitle
	}
	if body == "" {
		body = defaultTestBody
	}

	b := Batch{
		Message: push.Message{
			Title: title,
			Body:  body,
			Data:  map[string]string{"type": categoryTest},
		},
		Recipients: []models.Recipient{*r},
	}

	results := []push.Result{d.single.Send(ctx, r.PushToken, b.Message)}
	report := d.settle(ctx, b, results)
	if !report.Any() {
		slog.Warn("direct notification failed", "recipient_id", recipientID, "error", results[0].Err)
	}
	return report.Any(), nil
}

// deliver returns one result per recipient, index-aligned with b.Recipients.
func (d *Dispatcher) deliver(ctx context.Context, b Batch) []push.Result {
	tokens := b.tokens()
	results := make([]push.Result, len(tokens))

	if d.batch != nil {
		for start := 0; start < len(tokens); start += push.MaxBatchSize {
			end := min(start+push.MaxBatchSize, len(tokens))
			chunk, err := d.batch.SendBatch(ctx, tokens[start:end], b.Message)
			if err == nil && len(chunk) != end-start {
				err = fmt.Errorf("gateway returned %d results for %d tokens", len(chunk), end-start)
			}
			if err != nil {
				slog.Error("multicast send failed", "tokens", end-start, "error", err)
				for i := start; i < end; i++ {
					results[i] = push.Result{Outcome: push.TransientFailure, Err: err}
				}
				continue
			}
			copy(results[start:end], chunk)
		}
		return results
	}

	indexes := make([]int, len(tokens))
	for i := range indexes {
		indexes[i] = i
	}
	worker.Each(ctx, d.concurrency, indexes, func(ctx context.Context, i int) {
		results[i] = d.single.Send(ctx, tokens[i], b.Message)
	})
	return results
}

// settle counts outcomes and clears tokens the gateway reported as dead.
func (d *Dispatcher) settle(ctx context.Context, b Batch, results []push.Result) Report {
	var report Report
	for i, res := range results {
		r := b.Recipients[i]
		switch res.Outcome {
		case push.Delivered:
			report.Delivered++
		case push.PermanentInvalidToken:
			report.Failed++
			report.InvalidTokens++
			cleared, err := d.registry.ClearPushToken(ctx, r.ID, r.PushToken)
			if err != nil {
				slog.Error("failed to clear invalid push token", "recipient_id", r.ID, "error", err)
				continue
			}
			if cleared {
				slog.Info("removed invalid push token", "recipient_id", r.ID, "reason", res.Err)
			}
		default:
			report.Failed++
			slog.Warn("push delivery failed", "recipient_id", r.ID, "error", res.Err)
		}
	}
	return report
}
