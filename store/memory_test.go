package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryFallbackCreateSessionFlagsFallback(t *testing.T) {
	m := NewMemoryFallback(0, 0)
	sess, err := m.CreateSession(context.Background(), "u1", "t", "", nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !sess.IsFallback() {
		t.Fatal("expected fallback=true on fabricated session")
	}
	if sess.DialogueType != DefaultDialogueType {
		t.Fatalf("expected default dialogue type, got %q", sess.DialogueType)
	}
}

func TestMemoryFallbackRejectsMalformedInput(t *testing.T) {
	m := NewMemoryFallback(0, 0)
	if _, err := m.CreateSession(context.Background(), "", "t", "", nil); err == nil {
		t.Fatal("expected error for missing user_id")
	}
	if _, err := m.CreateTurn(context.Background(), "s1", "bogus-role", "hi", nil); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestMemoryFallbackTurnOrdering(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryFallback(0, 0)
	sess, _ := m.CreateSession(ctx, "u1", "t", "", nil)

	for i := 0; i < 5; i++ {
		if _, err := m.CreateTurn(ctx, sess.ID, RoleHuman, "hi", nil); err != nil {
			t.Fatalf("CreateTurn: %v", err)
		}
	}

	turns, err := m.GetTurns(ctx, sess.ID, 0, "")
	if err != nil {
		t.Fatalf("GetTurns: %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(turns))
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].CreatedAt.Before(turns[i-1].CreatedAt) {
			t.Fatalf("turns out of order at index %d", i)
		}
	}
}

func TestMemoryFallbackGetTurnsBeforeID(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryFallback(0, 0)
	sess, _ := m.CreateSession(ctx, "u1", "t", "", nil)

	var ids []string
	for i := 0; i < 3; i++ {
		turn, _ := m.CreateTurn(ctx, sess.ID, RoleHuman, "hi", nil)
		ids = append(ids, turn.ID)
	}

	turns, err := m.GetTurns(ctx, sess.ID, 0, ids[2])
	if err != nil {
		t.Fatalf("GetTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns before the third, got %d", len(turns))
	}
}

func TestMemoryFallbackUnknownSessionReturnsEmptyNotNilError(t *testing.T) {
	m := NewMemoryFallback(0, 0)
	turns, err := m.GetTurns(context.Background(), "does-not-exist", 0, "")
	if err != nil {
		t.Fatalf("GetTurns on unknown session should not error: %v", err)
	}
	if turns == nil {
		t.Fatal("expected empty slice, got nil")
	}
}

func TestMemoryFallbackEvictsOldestOnCapacity(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryFallback(2, 0)

	first, _ := m.CreateSession(ctx, "u1", "a", "", nil)
	time.Sleep(2 * time.Millisecond)
	m.CreateSession(ctx, "u1", "b", "", nil)
	time.Sleep(2 * time.Millisecond)
	m.CreateSession(ctx, "u1", "c", "", nil)

	if _, err := m.GetSession(ctx, first.ID); err == nil {
		t.Fatal("expected oldest session to be evicted once capacity exceeded")
	}
}

func TestMemoryFallbackDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryFallback(0, 0)
	sess, _ := m.CreateSession(ctx, "u1", "t", "", nil)
	m.CreateTurn(ctx, sess.ID, RoleHuman, "hi", nil)

	if err := m.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := m.GetSession(ctx, sess.ID); err == nil {
		t.Fatal("expected session to be gone")
	}
	turns, _ := m.GetTurns(ctx, sess.ID, 0, "")
	if len(turns) != 0 {
		t.Fatal("expected no turns for deleted session")
	}
}
