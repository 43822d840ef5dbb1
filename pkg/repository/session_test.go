package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

func runSessionRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Put and Get round-trips session with turns", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := model.NewSession(types.NewSessionID())
		session.Append("what is the retention policy?", "Retention is 90 days.")
		session.Append("who approves exceptions?", "The security team approves exceptions.")

		if err := repo.Session().Put(ctx, session); err != nil {
			t.Fatalf("failed to put session: %v", err)
		}

		retrieved, err := repo.Session().Get(ctx, session.ID)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}

		if retrieved.ID != session.ID {
			t.Errorf("expected ID=%s, got %s", session.ID, retrieved.ID)
		}
		if len(retrieved.Turns) != 2 {
			t.Fatalf("expected 2 turns, got %d", len(retrieved.Turns))
		}
		if retrieved.Turns[0].Query != "what is the retention policy?" {
			t.Errorf("unexpected first turn query: %s", retrieved.Turns[0].Query)
		}
		if retrieved.Turns[1].Answer != "The security team approves exceptions." {
			t.Errorf("unexpected second turn answer: %s", retrieved.Turns[1].Answer)
		}
		if retrieved.CreatedAt.IsZero() {
			t.Error("expected non-zero CreatedAt")
		}
		if retrieved.LastActiveAt.IsZero() {
			t.Error("expected non-zero LastActiveAt")
		}
	})

	t.Run("Put updates existing session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := model.NewSession(types.NewSessionID())
		session.Append("first", "answer one")
		if err := repo.Session().Put(ctx, session); err != nil {
			t.Fatalf("failed to put session: %v", err)
		}

		session.Append("second", "answer two")
		if err := repo.Session().Put(ctx, session); err != nil {
			t.Fatalf("failed to update session: %v", err)
		}

		retrieved, err := repo.Session().Get(ctx, session.ID)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if len(retrieved.Turns) != 2 {
			t.Errorf("expected 2 turns, got %d", len(retrieved.Turns))
		}
		if !retrieved.LastActiveAt.After(retrieved.CreatedAt.Add(-time.Second)) {
			t.Errorf("expected LastActiveAt >= CreatedAt, got %v < %v", retrieved.LastActiveAt, retrieved.CreatedAt)
		}
	})

	t.Run("Get returns ErrNotFound for missing session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Session().Get(ctx, types.NewSessionID())
		if err == nil {
			t.Fatal("expected error for missing session")
		}
		if !isNotFound(err) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete removes session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := model.NewSession(types.NewSessionID())
		if err := repo.Session().Put(ctx, session); err != nil {
			t.Fatalf("failed to put session: %v", err)
		}

		if err := repo.Session().Delete(ctx, session.ID); err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}

		_, err := repo.Session().Get(ctx, session.ID)
		if err == nil {
			t.Fatal("expected error when getting deleted session")
		}
		if !isNotFound(err) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List includes stored sessions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		s1 := model.NewSession(types.NewSessionID())
		s2 := model.NewSession(types.NewSessionID())
		if err := repo.Session().Put(ctx, s1); err != nil {
			t.Fatalf("failed to put session: %v", err)
		}
		if err := repo.Session().Put(ctx, s2); err != nil {
			t.Fatalf("failed to put session: %v", err)
		}

		sessions, err := repo.Session().List(ctx)
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}

		found1, found2 := false, false
		for _, session := range sessions {
			if session.ID == s1.ID {
				found1 = true
			}
			if session.ID == s2.ID {
				found2 = true
			}
		}
		if !found1 || !found2 {
			t.Errorf("expected both sessions in list, found1=%v found2=%v", found1, found2)
		}
	})
}

func TestMemorySessionRepository(t *testing.T) {
	runSessionRepositoryTest(t, newMemoryRepository)
}

func TestFirestoreSessionRepository(t *testing.T) {
	runSessionRepositoryTest(t, newFirestoreRepository)
}

func TestPgVectorSessionRepository(t *testing.T) {
	runSessionRepositoryTest(t, newPgVectorRepository)
}
