// Package sqlbridge coordinates read-only access to configured
// relational sources. It analyzes each connection's schema, lets a
// generative model draft SELECT statements against that schema, and
// merges validated, capped result sets into context for answer
// synthesis. A connection whose analysis fails is excluded from
// planning until a later refresh succeeds; the rest keep working.
package sqlbridge

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Generator drafts SQL from a schema description and a question
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Source configures one relational connection
type Source struct {
	ID     types.ConnectionID `toml:"id"`
	Driver string             `toml:"driver"` // "postgres" or "sqlite"
	DSN    string             `toml:"dsn"`

	IncludedTables []string `toml:"included_tables"`
	ExcludedTables []string `toml:"excluded_tables"`

	// SanitizeSensitiveData redacts values of columns whose names match
	// SensitivePatterns before they reach a generative model.
	SanitizeSensitiveData bool     `toml:"sanitize_sensitive_data"`
	SensitivePatterns     []string `toml:"sensitive_patterns"`

	MaxRowsPerTable int `toml:"max_rows_per_table"`
}

const defaultMaxRowsPerTable = 50

func (s *Source) Validate() error {
	if err := s.ID.Validate(); err != nil {
		return err
	}
	switch s.Driver {
	case "postgres", "sqlite":
	default:
		return goerr.Wrap(types.ErrInvalidConfiguration, "unsupported relational driver",
			goerr.V("connectionID", s.ID), goerr.V("driver", s.Driver))
	}
	if s.DSN == "" {
		return goerr.Wrap(types.ErrInvalidConfiguration, "relational source requires a DSN",
			goerr.V("connectionID", s.ID))
	}
	if s.MaxRowsPerTable < 0 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "maxRowsPerTable must not be negative",
			goerr.V("connectionID", s.ID))
	}
	return nil
}

func (s *Source) maxRows() int {
	if s.MaxRowsPerTable > 0 {
		return s.MaxRowsPerTable
	}
	return defaultMaxRowsPerTable
}

func (s *Source) driverName() string {
	if s.Driver == "postgres" {
		return "pgx"
	}
	return "sqlite"
}

type connection struct {
	source Source
	db     *sql.DB
}

type Coordinator struct {
	generator   Generator
	connections []*connection

	mu      sync.RWMutex
	schemas map[types.ConnectionID]*model.ConnectionSchema

	now func() time.Time
}

func New(ctx context.Context, generator Generator, sources []Source) (*Coordinator, error) {
	seen := make(map[types.ConnectionID]bool, len(sources))
	connections := make([]*connection, 0, len(sources))
	for _, source := range sources {
		if err := source.Validate(); err != nil {
			return nil, err
		}
		if seen[source.ID] {
			return nil, goerr.Wrap(types.ErrInvalidConfiguration, "duplicate connection ID",
				goerr.V("connectionID", source.ID))
		}
		seen[source.ID] = true

		db, err := sql.Open(source.driverName(), source.DSN)
		if err != nil {
			return nil, goerr.Wrap(types.ErrStorageUnavailable, "failed to open relational source",
				goerr.V("connectionID", source.ID), goerr.V("cause", err.Error()))
		}
		connections = append(connections, &connection{source: source, db: db})
	}

	c := &Coordinator{
		generator:   generator,
		connections: connections,
		schemas:     make(map[types.ConnectionID]*model.ConnectionSchema, len(connections)),
		now:         time.Now,
	}

	c.RefreshSchemas(ctx)
	return c, nil
}

// RefreshSchemas re-analyzes every connection. Analysis failures are
// recorded per connection and never abort the refresh.
func (c *Coordinator) RefreshSchemas(ctx context.Context) {
	logger := logging.From(ctx)

	for _, conn := range c.connections {
		schema := &model.ConnectionSchema{
			ConnectionID: conn.source.ID,
			Driver:       conn.source.Driver,
			AnalyzedAt:   c.now().UTC(),
		}

		tables, err := analyzeSchema(ctx, conn.db, &conn.source)
		if err != nil {
			schema.Err = goerr.Wrap(types.ErrSchemaAnalysis, "connection excluded from query planning",
				goerr.V("connectionID", conn.source.ID), goerr.V("cause", err.Error()))
			logger.Warn("schema analysis failed",
				"connection_id", conn.source.ID,
				"driver", conn.source.Driver,
				"error", err)
		} else {
			schema.Tables = tables
			logger.Info("schema analyzed",
				"connection_id", conn.source.ID,
				"driver", conn.source.Driver,
				"tables", len(tables))
		}

		c.mu.Lock()
		c.schemas[conn.source.ID] = schema
		c.mu.Unlock()
	}
}

// Schemas returns the current analysis result of every connection,
// healthy or not.
func (c *Coordinator) Schemas() []*model.ConnectionSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*model.ConnectionSchema, 0, len(c.connections))
	for _, conn := range c.connections {
		if schema, ok := c.schemas[conn.source.ID]; ok {
			out = append(out, schema)
		}
	}
	return out
}

// Enabled reports whether any relational source is configured
func (c *Coordinator) Enabled() bool {
	return c != nil && len(c.connections) > 0
}

func (c *Coordinator) Close() error {
	var firstErr error
	for _, conn := range c.connections {
		if err := conn.db.Close(); err != nil && firstErr == nil {
			firstErr = goerr.Wrap(err, "failed to close relational source",
				goerr.V("connectionID", conn.source.ID))
		}
	}
	return firstErr
}
