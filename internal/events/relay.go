package events

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// Publisher delivers one entry to the notification sink.
type Publisher interface {
	Publish(ctx context.Context, entry Entry) error
}

type pendingStore interface {
	FetchPending(ctx context.Context, limit int32) ([]Entry, error)
	MarkDelivered(ctx context.Context, id int64) (bool, error)
}

// Relay drains undelivered events into a Publisher. Several relays may run;
// the locker keeps batches from overlapping.
type Relay struct {
	store     pendingStore
	publisher Publisher
	locker    redisclient.Locker
	logger    *zap.Logger
	metrics   *metrics.Metrics
	batchSize int32
	interval  time.Duration
}

func NewRelay(store pendingStore, publisher Publisher, locker redisclient.Locker, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		locker:    locker,
		logger:    logger,
		batchSize: 50,
		interval:  2 * time.Second,
	}
}

func (r *Relay) WithBatchSize(size int) *Relay {
	if size > 0 {
		r.batchSize = int32(size)
	}
	return r
}

func (r *Relay) WithMetrics(m *metrics.Metrics) *Relay {
	r.metrics = m
	return r
}

func (r *Relay) WithInterval(interval time.Duration) *Relay {
	if interval > 0 {
		r.interval = interval
	}
	return r
}

// Run drains once immediately and then on every tick until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce delivers a single batch and reports how many entries went out.
func (r *Relay) RunOnce(ctx context.Context) int {
	if r.locker == nil {
		return r.drain(ctx)
	}
	var delivered int
	err := r.locker.WithLock(ctx, "notify-relay", func(ctx context.Context) error {
		delivered = r.drain(ctx)
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		r.logger.Debug("relay batch skipped, another relay holds the lock")
	} else if err != nil {
		r.logger.Error("relay lock failed", zap.Error(err))
	}
	return delivered
}

func (r *Relay) drain(ctx context.Context) int {
	entries, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("fetch pending events failed", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, entry := range entries {
		if err := r.publisher.Publish(ctx, entry); err != nil {
			// keep ordering: later entries wait for this one
			r.logger.Error("publish event failed",
				zap.Error(err),
				zap.Int64("event_id", entry.ID),
				zap.String("type", string(entry.Type)),
			)
			break
		}
		ok, err := r.store.MarkDelivered(ctx, entry.ID)
		if err != nil {
			r.logger.Error("mark event delivered failed", zap.Error(err), zap.Int64("event_id", entry.ID))
			break
		}
		if ok {
			delivered++
		}
	}
	r.metrics.ObserveRelayed(delivered)
	if delivered > 0 {
		r.logger.Info("events relayed", zap.Int("count", delivered))
	}
	return delivered
}
