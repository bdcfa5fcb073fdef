package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/core/ports"
)

// DepositQueue accepts deposit jobs without blocking.
type DepositQueue interface {
	TryEnqueue(job ports.DepositJob) bool
}

// Reconciler periodically re-drives ledger entries that were confirmed by the
// payment provider but never credited.
type Reconciler struct {
	deposits ports.DepositRepository
	queue    DepositQueue
	interval time.Duration
	grace    time.Duration
	batch    int
	log      zerolog.Logger
	now      func() time.Time
}

// NewReconciler sweeps every interval for entries pending longer than grace.
func NewReconciler(deposits ports.DepositRepository, queue DepositQueue, interval, grace time.Duration, log zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if grace <= 0 {
		grace = 2 * time.Minute
	}
	return &Reconciler{
		deposits: deposits,
		queue:    queue,
		interval: interval,
		grace:    grace,
		batch:    100,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Msg("deposit reconciliation sweep failed")
			}
		}
	}
}

// Sweep enqueues one batch of stale pending entries and returns how many were
// accepted by the queue.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	pending, err := r.deposits.ListPending(ctx, r.now().Add(-r.grace), r.batch)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, d := range pending {
		job := ports.DepositJob{Kind: ports.JobRedrive, UserID: d.UserID, Reference: d.Reference}
		if !r.queue.TryEnqueue(job) {
			r.log.Warn().Str("reference", d.Reference).Msg("deposit queue full, retrying next sweep")
			break
		}
		queued++
	}
	if queued > 0 {
		r.log.Info().Int("count", queued).Msg("re-driving pending deposits")
	}
	return queued, nil
}
