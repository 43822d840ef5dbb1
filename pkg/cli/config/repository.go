package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/repository/firestore"
	"github.com/athenaeum-lab/mnemosyne/pkg/repository/memory"
	"github.com/athenaeum-lab/mnemosyne/pkg/repository/pgvector"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
)

// Repository holds CLI flags for storage backend configuration
type Repository struct {
	backend string

	firestoreProjectID  string
	firestoreDatabaseID string

	postgresDSN string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Storage backend (memory, firestore, pgvector)",
			Value:       "memory",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore project ID (required for the firestore backend)",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_PROJECT_ID"),
			Destination: &r.firestoreProjectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_DATABASE_ID"),
			Destination: &r.firestoreDatabaseID,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "PostgreSQL DSN (required for the pgvector backend)",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_POSTGRES_DSN"),
			Destination: &r.postgresDSN,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// Configure initializes the repository for the configured backend.
// The caller owns Close on the returned repository. The embedding
// dimension is needed up front only by pgvector, which types its
// vector column.
func (r *Repository) Configure(ctx context.Context, dimension int) (interfaces.Repository, error) {
	switch r.backend {
	case "memory":
		logging.Default().Info("Using in-memory repository (data is lost on restart)")
		return memory.New(), nil

	case "firestore":
		if r.firestoreProjectID == "" {
			return nil, goerr.Wrap(types.ErrInvalidConfiguration, "firestore-project-id is required for the firestore backend")
		}
		repo, err := firestore.New(ctx, r.firestoreProjectID, r.firestoreDatabaseID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.firestoreProjectID,
			"database_id", r.firestoreDatabaseID,
		)
		return repo, nil

	case "pgvector":
		if r.postgresDSN == "" {
			return nil, goerr.Wrap(types.ErrInvalidConfiguration, "postgres-dsn is required for the pgvector backend")
		}
		repo, err := pgvector.New(ctx, r.postgresDSN, dimension)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize pgvector repository")
		}
		logging.Default().Info("Using pgvector repository", "dimension", dimension)
		return repo, nil

	default:
		return nil, goerr.Wrap(types.ErrInvalidConfiguration, "invalid repository backend", goerr.V("backend", r.backend))
	}
}
