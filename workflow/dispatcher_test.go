package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mmindustry/forge_backend/config"
	"github.com/sirupsen/logrus"
)

// NOTE: These tests are intentionally DB-free. They validate the dispatcher
// semantics the HTTP trigger relies on:
// - duplicate triggers for a user with a run pending are coalesced
// - runs for the same user never overlap
//
// Full DB integration tests need an environment that can run MySQL.

type fakeRecomputeProcessor struct {
	mu         sync.Mutex
	calls      int
	running    map[string]bool
	overlapped bool
	block      chan struct{}
}

func newFakeRecomputeProcessor() *fakeRecomputeProcessor {
	return &fakeRecomputeProcessor{running: map[string]bool{}}
}

func (p *fakeRecomputeProcessor) ProcessRecompute(ctx context.Context, msg config.RecomputeMessage) error {
	p.mu.Lock()
	if p.running[msg.UserId] {
		p.overlapped = true
	}
	p.running[msg.UserId] = true
	p.calls++
	p.mu.Unlock()

	if p.block != nil {
		<-p.block
	}

	p.mu.Lock()
	p.running[msg.UserId] = false
	p.mu.Unlock()
	return nil
}

func testDispatcher(p RecomputeProcessor) *RecomputeDispatcher {
	logger := logrus.New()
	d := NewRecomputeDispatcher(p, logger)
	return d
}

func TestDispatcher_CoalescesDuplicateTriggers(t *testing.T) {
	p := newFakeRecomputeProcessor()
	p.block = make(chan struct{})
	d := testDispatcher(p)

	msg := config.RecomputeMessage{UserId: "u1"}

	queued, err := d.Enqueue(msg)
	if err != nil || !queued {
		t.Fatalf("first enqueue: queued=%v err=%v", queued, err)
	}
	// Everything after the first must coalesce while it is pending.
	for i := 0; i < 10; i++ {
		queued, err := d.Enqueue(msg)
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		if queued {
			t.Fatalf("enqueue %d: expected coalesce, got queued", i)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	close(p.block)
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.calls == 1
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls != 1 {
		t.Fatalf("expected exactly 1 run, got %d", p.calls)
	}
}

func TestDispatcher_DifferentUsersAreIndependent(t *testing.T) {
	p := newFakeRecomputeProcessor()
	d := testDispatcher(p)

	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for _, u := range users {
		queued, err := d.Enqueue(config.RecomputeMessage{UserId: u})
		if err != nil || !queued {
			t.Fatalf("user %s: queued=%v err=%v", u, queued, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.calls == len(users)
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.overlapped {
		t.Fatal("same-user runs overlapped")
	}
}

func TestDispatcher_UserCanRequeueAfterRunFinishes(t *testing.T) {
	p := newFakeRecomputeProcessor()
	d := testDispatcher(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	if queued, _ := d.Enqueue(config.RecomputeMessage{UserId: "u1"}); !queued {
		t.Fatal("first enqueue should queue")
	}
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.calls == 1
	})

	if queued, _ := d.Enqueue(config.RecomputeMessage{UserId: "u1"}); !queued {
		t.Fatal("enqueue after finished run should queue again")
	}
	waitFor(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.calls == 2
	})
}

func TestDispatcher_RejectsEmptyUser(t *testing.T) {
	d := testDispatcher(newFakeRecomputeProcessor())
	if _, err := d.Enqueue(config.RecomputeMessage{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
