package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dialogue.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStoreCreateAndGetSession(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sess, err := s.CreateSession(ctx, "u1", "hello", HumanAIPrivate, map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.IsFallback() {
		t.Fatal("durable create should not be flagged fallback")
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.UserID != "u1" || got.Title != "hello" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestSQLStoreUnknownSessionNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetSession(context.Background(), "missing"); err == nil {
		t.Fatal("expected NotFoundError")
	}
}

func TestSQLStoreTurnsOrderedAscending(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sess, _ := s.CreateSession(ctx, "u1", "", "", nil)

	want := []Role{RoleHuman, RoleAI, RoleHuman, RoleAI}
	for _, r := range want {
		if _, err := s.CreateTurn(ctx, sess.ID, r, "x", nil); err != nil {
			t.Fatalf("CreateTurn: %v", err)
		}
	}

	turns, err := s.GetTurns(ctx, sess.ID, 0, "")
	if err != nil {
		t.Fatalf("GetTurns: %v", err)
	}
	if len(turns) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(turns))
	}
	for i, turn := range turns {
		if turn.Role != want[i] {
			t.Fatalf("turn %d: expected role %s, got %s", i, want[i], turn.Role)
		}
	}
}

func TestSQLStoreDeleteSessionCascadesTurns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sess, _ := s.CreateSession(ctx, "u1", "", "", nil)
	s.CreateTurn(ctx, sess.ID, RoleHuman, "hi", nil)

	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	turns, err := s.GetTurns(ctx, sess.ID, 0, "")
	if err != nil {
		t.Fatalf("GetTurns after delete: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected 0 turns after cascade delete, got %d", len(turns))
	}
}

func TestSQLStoreRejectsUnknownDialogueType(t *testing.T) {
	_, err := openTestStore(t).CreateSession(context.Background(), "u1", "", DialogueType("BOGUS"), nil)
	if err == nil {
		t.Fatal("expected malformed input error")
	}
}

func TestSQLStoreListSessionsByUser(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	s.CreateSession(ctx, "u1", "a", "", nil)
	s.CreateSession(ctx, "u1", "b", "", nil)
	s.CreateSession(ctx, "u2", "c", "", nil)

	sessions, err := s.ListSessionsByUser(ctx, "u1", 10, 0)
	if err != nil {
		t.Fatalf("ListSessionsByUser: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions for u1, got %d", len(sessions))
	}
}
