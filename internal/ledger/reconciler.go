package ledger

import (
	"context"
	"log"
	"time"

	"github.com/ovomonie/backend/internal/gateway"
	"github.com/ovomonie/backend/internal/metrics"
)

// Reconciler resolves the two kinds of stuck state a crash or rail timeout
// can leave behind: external transfers parked in PENDING, and idempotency
// reservations whose request died before reaching a terminal state.
type Reconciler struct {
	store      Store
	engine     *Engine
	rail       gateway.BankRail
	metrics    *metrics.Metrics
	interval   time.Duration
	pendingAge time.Duration
	staleAge   time.Duration
	sweeps     []func(context.Context)
}

// AddSweep registers an extra pass to run after the built-in transfer and
// reservation sweeps. Services with their own pending state hook in here
// rather than running a second ticker. Not safe to call once Run has
// started.
func (r *Reconciler) AddSweep(fn func(context.Context)) {
	r.sweeps = append(r.sweeps, fn)
}

func NewReconciler(store Store, engine *Engine, rail gateway.BankRail, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		store:      store,
		engine:     engine,
		rail:       rail,
		metrics:    m,
		interval:   30 * time.Second,
		pendingAge: 2 * time.Minute,
		staleAge:   15 * time.Minute,
	}
}

// Run sweeps until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	log.Println("[RECONCILER] Started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[RECONCILER] Stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.pendingAge)
	pending, err := r.store.PendingExternalTransfers(ctx, cutoff)
	if err != nil {
		log.Printf("[RECONCILER] Failed to list pending transfers: %v", err)
		r.countRun("error")
		return
	}
	if r.metrics != nil {
		r.metrics.PendingExternal.Set(float64(len(pending)))
	}

	for _, transfer := range pending {
		status, err := r.rail.Status(ctx, transfer.Reference)
		if err != nil {
			log.Printf("[RECONCILER] Status query failed for %s: %v", transfer.Reference, err)
			continue
		}
		switch status {
		case gateway.StatusCompleted:
			if err := r.engine.FinalizePending(ctx, transfer.Reference); err != nil {
				log.Printf("[RECONCILER] Finalize failed for %s: %v", transfer.Reference, err)
				continue
			}
			log.Printf("[RECONCILER] Settled pending transfer %s", transfer.Reference)
		case gateway.StatusFailed:
			if err := r.engine.CompensateExternal(ctx, transfer.Reference); err != nil {
				log.Printf("[RECONCILER] Compensation failed for %s: %v", transfer.Reference, err)
				continue
			}
			log.Printf("[RECONCILER] Reversed failed transfer %s", transfer.Reference)
		default:
			// Still indeterminate; try again next sweep.
		}
	}

	released, err := r.store.ReleaseStaleReservations(ctx, time.Now().Add(-r.staleAge))
	if err != nil {
		log.Printf("[RECONCILER] Stale reservation cleanup failed: %v", err)
		r.countRun("error")
		return
	}
	if released > 0 {
		log.Printf("[RECONCILER] Released %d stale reservations", released)
		if r.metrics != nil {
			r.metrics.StaleReleased.Add(float64(released))
		}
	}
	for _, sweep := range r.sweeps {
		sweep(ctx)
	}
	r.countRun("ok")
}

func (r *Reconciler) countRun(result string) {
	if r.metrics != nil {
		r.metrics.ReconcilerRuns.WithLabelValues(result).Inc()
	}
}
