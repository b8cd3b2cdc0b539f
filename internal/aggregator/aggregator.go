package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/landingboard/internal/metrics"
	"github.com/jpalmerr/landingboard/internal/store"
)

// Applier installs updates into the snapshot. [*store.Writer] implements it.
type Applier interface {
	Apply(u store.Update) (time.Time, error)
	Poison()
}

// Aggregator is the sole consumer of a [Mailbox] and the sole writer of the
// snapshot.
type Aggregator struct {
	inbox   *Mailbox
	writer  Applier
	logger  *slog.Logger
	metrics *metrics.Metrics
	onApply func(u store.Update, at time.Time)
}

// New creates an Aggregator that drains inbox into writer.
// m may be nil.
func New(inbox *Mailbox, writer Applier, logger *slog.Logger, m *metrics.Metrics) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		inbox:   inbox,
		writer:  writer,
		logger:  logger,
		metrics: m,
	}
}

// OnApply registers fn to run on the aggregator goroutine after every
// successful write. Must be called before [Aggregator.Run].
func (a *Aggregator) OnApply(fn func(u store.Update, at time.Time)) {
	a.onApply = fn
}

// Run applies updates one at a time in arrival order until ctx is done or the
// mailbox is closed and drained, returning nil in both cases.
//
// A failed write is fatal: the store is poisoned and Run returns an error
// wrapping [store.ErrLockFailure].
func (a *Aggregator) Run(ctx context.Context) error {
	a.logger.Info("aggregator started")
	defer a.logger.Info("aggregator stopped")

	for {
		u, err := a.inbox.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrMailboxClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		a.metrics.ObserveMailboxDepth(a.inbox.Len())

		at, err := a.apply(u)
		if err != nil {
			a.writer.Poison()
			a.logger.Error("snapshot write failed",
				"category", u.Category.String(),
				"error", err,
			)
			return err
		}

		a.metrics.ObserveSnapshotUpdate(u.Category.String(), at)
		a.logger.Debug("snapshot updated", "category", u.Category.String())
		if a.onApply != nil {
			a.onApply(u, at)
		}
	}
}

// apply writes u, converting a panic inside the writer into ErrLockFailure.
func (a *Aggregator) apply(u store.Update) (at time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			a.logger.Error("snapshot writer panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: writer panic (correlation_id: %s)", store.ErrLockFailure, correlationID)
		}
	}()

	at, err = a.writer.Apply(u)
	if err != nil {
		if errors.Is(err, store.ErrLockFailure) {
			return time.Time{}, err
		}
		return time.Time{}, fmt.Errorf("%w: %w", store.ErrLockFailure, err)
	}
	return at, nil
}
