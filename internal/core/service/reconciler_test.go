package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

type stubQueue struct {
	capacity int
	jobs     []ports.DepositJob
}

func (q *stubQueue) TryEnqueue(job ports.DepositJob) bool {
	if len(q.jobs) >= q.capacity {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

func TestReconciler_SweepEnqueuesStalePending(t *testing.T) {
	deposits := newStubDeposits()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_ = deposits.Insert(ctx, &domain.Deposit{Reference: "old", UserID: "u1", Status: domain.DepositPending, CreatedAt: now.Add(-10 * time.Minute)})
	_ = deposits.Insert(ctx, &domain.Deposit{Reference: "fresh", UserID: "u1", Status: domain.DepositPending, CreatedAt: now.Add(-30 * time.Second)})
	_ = deposits.Insert(ctx, &domain.Deposit{Reference: "done", UserID: "u2", Status: domain.DepositCredited, CreatedAt: now.Add(-time.Hour)})

	q := &stubQueue{capacity: 10}
	r := NewReconciler(deposits, q, time.Minute, 2*time.Minute, zerolog.Nop())
	r.now = func() time.Time { return now }

	n, err := r.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || len(q.jobs) != 1 {
		t.Fatalf("queued %d jobs %+v, want only the stale entry", n, q.jobs)
	}
	if job := q.jobs[0]; job.Kind != ports.JobRedrive || job.Reference != "old" || job.UserID != "u1" {
		t.Errorf("job = %+v", job)
	}
}

func TestReconciler_SweepStopsWhenQueueFull(t *testing.T) {
	deposits := newStubDeposits()
	ctx := context.Background()
	now := time.Now().UTC()
	for _, ref := range []string{"a", "b", "c"} {
		_ = deposits.Insert(ctx, &domain.Deposit{Reference: ref, UserID: "u1", Status: domain.DepositPending, CreatedAt: now.Add(-time.Hour)})
	}

	q := &stubQueue{capacity: 2}
	n, err := NewReconciler(deposits, q, 0, 0, zerolog.Nop()).Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("queued = %d, want 2", n)
	}
}
