package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/repository/firestore"
	"github.com/athenaeum-lab/mnemosyne/pkg/repository/memory"
	"github.com/athenaeum-lab/mnemosyne/pkg/repository/pgvector"
)

const testEmbeddingDimension = 8

func newMemoryRepository(t *testing.T) interfaces.Repository {
	t.Helper()
	return memory.New()
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	ctx := context.Background()
	// Test data isolation is achieved through random IDs in test data
	repo, err := firestore.New(ctx, projectID, databaseID)
	if err != nil {
		t.Fatalf("failed to create firestore repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(ctx); err != nil {
			t.Errorf("failed to close firestore repository: %v", err)
		}
	})
	return repo
}

func newPgVectorRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	repo, err := pgvector.New(ctx, dsn, testEmbeddingDimension)
	if err != nil {
		t.Fatalf("failed to create pgvector repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Document().DeleteAll(ctx); err != nil {
			t.Errorf("failed to clean documents: %v", err)
		}
		if err := repo.Vector().Clear(ctx); err != nil {
			t.Errorf("failed to clean vectors: %v", err)
		}
		if err := repo.Close(ctx); err != nil {
			t.Errorf("failed to close pgvector repository: %v", err)
		}
	})
	return repo
}
