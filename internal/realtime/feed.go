package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/moderation"
)

// EventPendingCounts is the feed event carrying moderation.PendingCounts.
const EventPendingCounts = "pending_counts"

// CountsFunc computes the current pending counts.
type CountsFunc func(ctx context.Context) moderation.PendingCounts

// Feed pushes pending-queue counts to connected admins. It implements moderation.Observer.
type Feed struct {
	hub    *Hub
	logger *zap.Logger

	mu     sync.RWMutex
	counts CountsFunc
}

// NewFeed creates a feed over hub. Call Bind before the first QueueChanged.
func NewFeed(hub *Hub, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{hub: hub, logger: logger}
}

// Bind sets the counts source.
func (f *Feed) Bind(counts CountsFunc) {
	f.mu.Lock()
	f.counts = counts
	f.mu.Unlock()
}

func (f *Feed) current(ctx context.Context) (moderation.PendingCounts, bool) {
	f.mu.RLock()
	counts := f.counts
	f.mu.RUnlock()
	if counts == nil {
		return moderation.PendingCounts{}, false
	}
	return counts(ctx), true
}

// QueueChanged recomputes the counts and publishes them to every instance. Without
// Redis, nothing is computed while no admin is connected.
func (f *Feed) QueueChanged(ctx context.Context) {
	if f.hub.ClientCount() == 0 && f.hub.redis == nil {
		return
	}
	pc, ok := f.current(ctx)
	if !ok {
		f.logger.Warn("feed not bound, skipping pending counts")
		return
	}
	f.hub.Publish(EventPendingCounts, pc)
}

// Snapshot sends the current counts to one client.
func (f *Feed) Snapshot(ctx context.Context, c *Client) {
	pc, ok := f.current(ctx)
	if !ok {
		return
	}
	f.hub.SendTo(c, EventPendingCounts, pc)
}

var _ moderation.Observer = (*Feed)(nil)
