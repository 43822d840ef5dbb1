package model

import (
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

// Column describes a single column of an analyzed table. Sensitive
// columns are kept in the schema but flagged so they can be excluded
// from any context handed to a generative model.
type Column struct {
	Name      string
	DataType  string
	Nullable  bool
	Sensitive bool
}

// ForeignKey records a relationship discovered during schema analysis
type ForeignKey struct {
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// Table describes an analyzed table
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
}

// ConnectionSchema is the analyzed schema of one relational connection.
// A schema with Err set is excluded from query planning until a later
// refresh succeeds.
type ConnectionSchema struct {
	ConnectionID types.ConnectionID
	Driver       string
	Tables       []Table
	AnalyzedAt   time.Time
	Err          error
}

// Healthy reports whether the connection can participate in query planning
func (s *ConnectionSchema) Healthy() bool {
	return s != nil && s.Err == nil
}

// TableRows is a capped result set from one table of one connection,
// merged into the context fed to the answer synthesizer.
type TableRows struct {
	ConnectionID types.ConnectionID
	Table        string
	Columns      []string
	Rows         [][]string
	Truncated    bool
}
