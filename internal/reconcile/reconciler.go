// Package reconcile keeps the stored status column of reservations in line
// with the status derived from their date and cancellation flag.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"slotbook/internal/ledger"
	"slotbook/internal/metrics"
	"slotbook/internal/model"

	"github.com/rs/zerolog"
)

type Store interface {
	ListUnsettledReservations(ctx context.Context) ([]*model.Reservation, error)
	UpdateStatus(ctx context.Context, id string, status ledger.Status) error
}

type Reconciler struct {
	store    Store
	interval time.Duration
	loc      *time.Location
	logger   *zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(store Store, interval time.Duration, loc *time.Location, logger *zerolog.Logger) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reconciler{
		store:    store,
		interval: interval,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runLogged(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.runLogged(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for a running pass.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.running {
		r.running = false
		close(r.stopCh)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Reconciler) runLogged(ctx context.Context) {
	n, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("status reconciliation failed")
		return
	}
	if n > 0 {
		r.logger.Info().Int("updated", n).Msg("reservation statuses reconciled")
	}
}

// RunOnce rewrites every stale status and returns how many were changed.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	list, err := r.store.ListUnsettledReservations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unsettled reservations: %w", err)
	}

	today := ledger.Day(r.now().In(r.loc))
	updated := 0
	for _, res := range list {
		want := ledger.Classify(res.Range(), today)
		if res.Status == want {
			continue
		}
		if err := r.store.UpdateStatus(ctx, res.ID, want); err != nil {
			return updated, fmt.Errorf("update %s: %w", res.ID, err)
		}
		metrics.IncStatusReconciled(string(want))
		updated++
	}
	return updated, nil
}
