// Package broadcast fans newly created alerts out to live stream clients.
package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-weather-alerts/internal/models"
)

const subscriberBuffer = 100

type subscriber struct {
	ch          chan *models.Alert
	minSeverity models.AlertSeverity
	dropped     atomic.Int64
}

// Broadcaster delivers each published alert to every subscriber whose
// severity threshold it meets.
type Broadcaster struct {
	subscribers map[uint64]*subscriber
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]*subscriber),
	}
}

// Subscribe registers a listener for alerts at or above minSeverity. An empty
// minSeverity receives everything.
func (b *Broadcaster) Subscribe(minSeverity models.AlertSeverity) (uint64, <-chan *models.Alert) {
	id := b.nextID.Add(1)
	sub := &subscriber{
		ch:          make(chan *models.Alert, subscriberBuffer),
		minSeverity: minSeverity,
	}

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	return id, sub.ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()

	if ok {
		if n := sub.dropped.Load(); n > 0 {
			slog.Warn("stream subscriber missed alerts", "subscriber", id, "dropped", n)
		}
	}
}

// Publish never blocks; a subscriber with a full buffer misses the alert.
// It returns how many subscribers received it.
func (b *Broadcaster) Publish(a *models.Alert) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, sub := range b.subscribers {
		if !a.Severity.AtLeast(sub.minSeverity) {
			continue
		}
		select {
		case sub.ch <- a:
			delivered++
		default:
			sub.dropped.Add(1)
		}
	}
	return delivered
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close ends every subscription so open streams return.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
