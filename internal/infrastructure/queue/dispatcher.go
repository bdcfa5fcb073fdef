package queue

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/api/metrics"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Dispatcher routes deposit jobs to a fixed set of workers using consistent
// hashing on the user id, so one user's balance updates never race each
// other inside this process.
type Dispatcher struct {
	workers  []chan ports.DepositJob
	payments ports.PaymentService
	balances ports.BalanceService
	log      zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, payments ports.PaymentService, balances ports.BalanceService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan ports.DepositJob, numWorkers),
		payments: payments,
		balances: balances,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.DepositJob, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends a job to the worker responsible for its user, blocking when
// that worker's buffer is full.
func (d *Dispatcher) Enqueue(job ports.DepositJob) {
	i := d.shardIndex(job.ShardKey())
	d.workers[i] <- job
	metrics.DepositsQueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(len(d.workers[i])))
}

// TryEnqueue is Enqueue without blocking; it reports false when the worker's
// buffer is full.
func (d *Dispatcher) TryEnqueue(job ports.DepositJob) bool {
	i := d.shardIndex(job.ShardKey())
	select {
	case d.workers[i] <- job:
		metrics.DepositsQueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(len(d.workers[i])))
		return true
	default:
		return false
	}
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.DepositJob) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			metrics.DepositsQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

			start := time.Now()
			result := "ok"
			if err := d.process(ctx, job); err != nil {
				result = "error"
				d.log.Error().Err(err).
					Str("kind", job.Kind).
					Str("reference", job.Reference).
					Str("user_id", job.UserID).
					Int("worker_id", id).
					Msg("deposit job failed")
			}
			metrics.DepositProcessingDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, job ports.DepositJob) error {
	switch job.Kind {
	case ports.JobVerifyPayment:
		_, err := d.payments.VerifyAndDeposit(ctx, job.UserID, job.Reference)
		return err
	case ports.JobRedrive:
		_, err := d.balances.Redrive(ctx, job.Reference)
		return err
	default:
		return fmt.Errorf("unknown deposit job kind %q", job.Kind)
	}
}
