package indexsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/catalogsearch/internal/domain"
)

// OutboxReader lists outbox entries that have not been dispatched yet.
// DiscardSuperseded closes entries overtaken by a later entry for the same
// item, so a replay never depends on in-memory sequence state.
type OutboxReader interface {
	PendingOutbox(ctx context.Context, olderThan time.Time, limit int) ([]domain.Envelope, error)
	DiscardSuperseded(ctx context.Context) (int64, error)
}

// Publisher re-emits an envelope, normally the event bus.
type Publisher interface {
	Publish(ctx context.Context, env domain.Envelope) error
}

// RelayConfig controls the outbox polling loop.
type RelayConfig struct {
	// Interval between passes. Zero disables the relay.
	Interval time.Duration
	// GracePeriod leaves recent entries to the post-commit hook that is
	// still delivering them.
	GracePeriod time.Duration
	// BatchSize caps the entries replayed per pass.
	BatchSize int
}

// Relay replays outbox entries whose delivery was lost between commit and
// indexing, e.g. after a crash or an index outage.
type Relay struct {
	outbox    OutboxReader
	publisher Publisher
	cfg       RelayConfig
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// NewRelay creates an outbox relay.
func NewRelay(outbox OutboxReader, publisher Publisher, cfg RelayConfig, logger *slog.Logger) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		r.logger.Info("outbox relay disabled")
		return
	}

	r.logger.Info("outbox relay started",
		slog.Duration("interval", r.cfg.Interval),
		slog.Duration("grace_period", r.cfg.GracePeriod),
		slog.Int("batch_size", r.cfg.BatchSize),
	)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			replayed, err := r.Drain(ctx)
			if err != nil {
				r.logger.Error("outbox relay pass failed", slog.String("error", err.Error()))
			} else if replayed > 0 {
				r.logger.Info("outbox entries replayed", slog.Int("replayed", replayed))
			}
		}
	}
}

// Drain performs one relay pass and returns how many entries were published
// successfully. Superseded entries are closed first; entries that fail stay
// pending for the next pass.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	discarded, err := r.outbox.DiscardSuperseded(ctx)
	if err != nil {
		return 0, fmt.Errorf("discard superseded outbox entries: %w", err)
	}
	if discarded > 0 {
		RelaySuperseded.Add(float64(discarded))
		r.logger.InfoContext(ctx, "superseded outbox entries discarded", slog.Int64("discarded", discarded))
	}

	olderThan := r.nowFunc().Add(-r.cfg.GracePeriod)
	pending, err := r.outbox.PendingOutbox(ctx, olderThan, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("read pending outbox: %w", err)
	}
	RelayBacklog.Set(float64(len(pending)))

	var (
		replayed int
		errs     []error
	)
	for _, env := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.publisher.Publish(ctx, env); err != nil {
			errs = append(errs, fmt.Errorf("replay outbox entry %d: %w", env.Seq, err))
			continue
		}
		replayed++
	}
	return replayed, errors.Join(errs...)
}
