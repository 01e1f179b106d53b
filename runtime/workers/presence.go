package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

var _ contract.Worker = (*PresenceWorker)(nil)

// PresenceWorker broadcasts the full current online list to every registered
// connection whenever the registry changes.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. Each change sends the entire list, not a
// diff: simplicity and eventual consistency over bandwidth efficiency.
//
// PresenceWorker is safe for concurrent use by multiple goroutines.
type PresenceWorker struct {
	log         *slog.Logger
	registry    contract.IRegistry
	metrics     *observability.Metrics
	sinkTimeout time.Duration
}

func NewPresenceWorker(
	log *slog.Logger,
	registry contract.IRegistry,
	metrics *observability.Metrics,
	sinkTimeout time.Duration,
) *PresenceWorker {
	return &PresenceWorker{log: log, registry: registry, metrics: metrics, sinkTimeout: sinkTimeout}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence broadcasts")
			return nil
		case <-w.registry.Changes():
			w.Broadcast(ctx)
		}
	}
}

// Broadcast computes the snapshot once and pushes a personalized copy (self
// excluded) to each connection in its own goroutine. One connection's
// backpressure or failure never delays or fails delivery to the others.
func (w *PresenceWorker) Broadcast(ctx context.Context) {
	sessions := w.registry.Sessions()
	full := w.registry.Snapshot("")

	for _, s := range sessions {
		go func(s contract.Session) {
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()

			snapshot := event.PresenceSnapshot{Entries: excludeSelf(full, s.UserID)}
			if err := s.Sink.Consume(sinkCtx, snapshot); err != nil {
				w.log.Debug("Presence push skipped", "user_id", s.UserID, "error", err)
			}
		}(s)
	}
	w.metrics.IncrPresenceBroadcasts()
}

func excludeSelf(entries []domain.PresenceEntry, userID string) []domain.PresenceEntry {
	out := make([]domain.PresenceEntry, 0, len(entries))
	for _, e := range entries {
		if e.UserID == userID {
			continue
		}
		out = append(out, e)
	}
	return out
}
