package workflow

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/mmindustry/forge_backend/config"
	"github.com/sirupsen/logrus"
)

// RecomputeProcessor runs one queued recompute. Satisfied by RecomputeEngine;
// tests substitute fakes.
type RecomputeProcessor interface {
	ProcessRecompute(ctx context.Context, msg config.RecomputeMessage) error
}

var ErrQueueFull = errors.New("recompute queue is full")

// RecomputeDispatcher fans queued recompute requests over a bounded worker
// pool. One entry per user may be pending at a time: triggers for a user that
// already has a run queued or running are coalesced into it. The MySQL
// advisory lock inside the engine covers other instances; this set only
// stops one instance from queueing the same user twice.
type RecomputeDispatcher struct {
	Processor    RecomputeProcessor
	Logger       *logrus.Logger
	DispatcherID string
	Workers      int
	QueueSize    int

	queue chan config.RecomputeMessage

	mu       sync.Mutex
	inflight map[string]bool
}

func NewRecomputeDispatcher(processor RecomputeProcessor, logger *logrus.Logger) *RecomputeDispatcher {
	workers := intEnv("RECOMPUTE_WORKERS", 4)
	queueSize := intEnv("RECOMPUTE_QUEUE_SIZE", 64)

	return &RecomputeDispatcher{
		Processor:    processor,
		Logger:       logger,
		DispatcherID: uuid.NewString(),
		Workers:      workers,
		QueueSize:    queueSize,
		queue:        make(chan config.RecomputeMessage, queueSize),
		inflight:     make(map[string]bool),
	}
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Enqueue queues a recompute for the message's user. Returns false when the
// user already has one pending and this trigger was coalesced into it.
func (d *RecomputeDispatcher) Enqueue(msg config.RecomputeMessage) (bool, error) {
	if msg.UserId == "" {
		return false, errors.New("user id is required")
	}

	d.mu.Lock()
	if d.inflight[msg.UserId] {
		d.mu.Unlock()
		return false, nil
	}
	d.inflight[msg.UserId] = true
	d.mu.Unlock()

	select {
	case d.queue <- msg:
		return true, nil
	default:
		d.release(msg.UserId)
		return false, ErrQueueFull
	}
}

func (d *RecomputeDispatcher) release(userId string) {
	d.mu.Lock()
	delete(d.inflight, userId)
	d.mu.Unlock()
}

// Run blocks consuming the queue until ctx is cancelled. Start it once from
// main in its own goroutine.
func (d *RecomputeDispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.workerLoop(ctx)
		}()
	}
	wg.Wait()
}

func (d *RecomputeDispatcher) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.process(ctx, msg)
		}
	}
}

func (d *RecomputeDispatcher) process(ctx context.Context, msg config.RecomputeMessage) {
	// inflight entry is held until the run finishes, so a trigger arriving
	// mid-run is coalesced rather than queued behind it.
	defer d.release(msg.UserId)

	if err := d.Processor.ProcessRecompute(ctx, msg); err != nil {
		config.LogError(d.Logger, moduleName, "process", "recompute run failed", map[string]interface{}{
			"dispatcher_id":  d.DispatcherID,
			"user_id":        msg.UserId,
			"correlation_id": msg.CorrelationId,
		}, err)
	}
}
