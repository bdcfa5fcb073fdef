package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
	want  int
}

func newRecorder(want int) *recorder {
	return &recorder{done: make(chan struct{}), want: want}
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	if len(r.calls) == r.want {
		close(r.done)
	}
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakePayments struct {
	ports.PaymentService
	rec *recorder
}

func (f fakePayments) VerifyAndDeposit(_ context.Context, userID, reference string) (*ports.DepositResult, error) {
	f.rec.record("verify:" + userID + ":" + reference)
	return &ports.DepositResult{}, nil
}

type fakeBalances struct {
	ports.BalanceService
	rec *recorder
}

func (f fakeBalances) Redrive(_ context.Context, reference string) (*ports.DepositResult, error) {
	f.rec.record("redrive:" + reference)
	return nil, domain.ErrRemote
}

func TestDispatcher_RoutesJobsByKind(t *testing.T) {
	rec := newRecorder(2)
	d := NewDispatcher(4, fakePayments{rec: rec}, fakeBalances{rec: rec}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Enqueue(ports.DepositJob{Kind: ports.JobVerifyPayment, UserID: "u1", Reference: "tx_ref_1"})
	require.True(t, d.TryEnqueue(ports.DepositJob{Kind: ports.JobRedrive, UserID: "u1", Reference: "tx_ref_2"}))

	// same user, same worker: order is preserved
	assert.Equal(t, []string{"verify:u1:tx_ref_1", "redrive:tx_ref_2"}, rec.wait(t))
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(8, nil, nil, zerolog.Nop())
	first := d.shardIndex("user-42")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.shardIndex("user-42"))
	}
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 8)
}

func TestDispatcher_TryEnqueueReportsFullBuffer(t *testing.T) {
	d := NewDispatcher(1, nil, nil, zerolog.Nop())
	for i := 0; i < channelBuffer; i++ {
		require.True(t, d.TryEnqueue(ports.DepositJob{Kind: ports.JobRedrive, Reference: "r"}))
	}
	assert.False(t, d.TryEnqueue(ports.DepositJob{Kind: ports.JobRedrive, Reference: "r"}))
}

func TestDepositJob_ShardKeyFallsBackToReference(t *testing.T) {
	assert.Equal(t, "u1", ports.DepositJob{UserID: "u1", Reference: "r"}.ShardKey())
	assert.Equal(t, "r", ports.DepositJob{Reference: "r"}.ShardKey())
}
