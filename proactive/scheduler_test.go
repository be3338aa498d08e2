package proactive

import (
	"context"
	"testing"
	"time"

	"github.com/2389-research/dialogued/modelclient"
	"github.com/2389-research/dialogued/store"
)

func newTestScheduler(t *testing.T) (*Scheduler, *store.MemoryFallback) {
	t.Helper()
	mem := store.NewMemoryFallback(100, time.Hour)
	model := &modelclient.Fake{Reply: "hello there"}
	return NewScheduler(mem, model), mem
}

func TestSchedulerEnqueueThenHumanTurnCancels(t *testing.T) {
	sched, mem := newTestScheduler(t)
	ctx := context.Background()
	session, err := mem.CreateSession(ctx, "u1", "t", store.HumanAIPrivate, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	expr := &Expression{ID: store.NewID(), UserID: "u1", SessionID: session.ID, Type: Greeting, Content: "hi"}
	sched.mu.Lock()
	sched.pending[session.ID] = expr
	expr.State = StateQueued
	sched.mu.Unlock()

	sched.OnHumanTurn("u1", session.ID)

	sched.mu.Lock()
	_, stillPending := sched.pending[session.ID]
	sched.mu.Unlock()
	if stillPending {
		t.Fatalf("expected pending expression removed after human turn")
	}
	if expr.State != StateCancelled {
		t.Fatalf("expected expression state cancelled, got %s", expr.State)
	}
}

func TestSchedulerFireDropsCancelledExpression(t *testing.T) {
	sched, mem := newTestScheduler(t)
	ctx := context.Background()
	session, _ := mem.CreateSession(ctx, "u1", "t", store.HumanAIPrivate, nil)

	expr := &Expression{ID: store.NewID(), UserID: "u1", SessionID: session.ID, Type: Greeting, Content: "hi", State: StateQueued}
	sched.mu.Lock()
	sched.pending[session.ID] = expr
	sched.mu.Unlock()
	sched.OnHumanTurn("u1", session.ID)

	sched.fire(expr)

	turns, _ := mem.GetTurns(ctx, session.ID, 0, "")
	if len(turns) != 0 {
		t.Fatalf("expected no turn committed for cancelled expression, got %d", len(turns))
	}
}

func TestSchedulerTriggerEnforcesDailyCap(t *testing.T) {
	sched, mem := newTestScheduler(t)
	ctx := context.Background()
	session, _ := mem.CreateSession(ctx, "u1", "t", store.HumanAIPrivate, nil)
	sched.SetSettings("u1", UserSettings{Enabled: true, MaxExpressionsPerDay: 1})

	_, ok := sched.Trigger(ctx, "u1", session.ID, Reminder)
	if !ok {
		t.Fatalf("expected first trigger to succeed")
	}

	_, ok = sched.Trigger(ctx, "u1", session.ID, Reminder)
	if ok {
		t.Fatalf("expected second trigger same day to be rejected by daily cap")
	}
}

func TestSchedulerTriggerEmitsOnFiredChannel(t *testing.T) {
	sched, mem := newTestScheduler(t)
	ctx := context.Background()
	session, _ := mem.CreateSession(ctx, "u1", "t", store.HumanAIPrivate, nil)
	sched.SetSettings("u1", UserSettings{Enabled: true})

	if _, ok := sched.Trigger(ctx, "u1", session.ID, Reminder); !ok {
		t.Fatalf("expected trigger to succeed")
	}

	select {
	case dispatch := <-sched.Fired():
		if dispatch.SessionID != session.ID {
			t.Fatalf("unexpected dispatch session id %q", dispatch.SessionID)
		}
	default:
		t.Fatalf("expected a dispatch on the fired channel")
	}
}
