package sqlbridge_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/athenaeum-lab/mnemosyne/pkg/service/sqlbridge"
	"github.com/m-mizutani/gt"

	_ "modernc.org/sqlite"
)

type stubGenerator struct {
	sql string
}

func (g *stubGenerator) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return g.sql, nil
}

func seedSQLite(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	gt.NoError(t, err)
	defer db.Close()

	statements := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			password TEXT
		)`,
		`CREATE TABLE incidents (
			id INTEGER PRIMARY KEY,
			user_id INTEGER REFERENCES users(id),
			severity TEXT NOT NULL
		)`,
		`CREATE TABLE audit_log (id INTEGER PRIMARY KEY, detail TEXT)`,
		`INSERT INTO users (name, email, password) VALUES
			('alice', 'alice@example.com', 'hunter2'),
			('bob', 'bob@example.com', 'swordfish')`,
		`INSERT INTO incidents (user_id, severity) VALUES (1, 'high'), (2, 'low'), (1, 'low')`,
	}
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		gt.NoError(t, err)
	}
	return path
}

func TestSchemaAnalysis(t *testing.T) {
	ctx := context.Background()
	path := seedSQLite(t)

	c, err := sqlbridge.New(ctx, &stubGenerator{}, []sqlbridge.Source{{
		ID:             "ops",
		Driver:         "sqlite",
		DSN:            path,
		ExcludedTables: []string{"audit_log"},
	}})
	gt.NoError(t, err)
	defer c.Close()

	schemas := c.Schemas()
	gt.Array(t, schemas).Length(1)
	gt.True(t, schemas[0].Healthy())
	gt.Value(t, schemas[0].Driver).Equal("sqlite")

	names := map[string]bool{}
	for _, table := range schemas[0].Tables {
		names[table.Name] = true
	}
	gt.True(t, names["users"])
	gt.True(t, names["incidents"])
	gt.False(t, names["audit_log"])

	for _, table := range schemas[0].Tables {
		if table.Name != "users" {
			continue
		}
		for _, column := range table.Columns {
			switch column.Name {
			case "password", "email":
				gt.True(t, column.Sensitive)
			case "name":
				gt.False(t, column.Sensitive)
			}
		}
	}

	for _, table := range schemas[0].Tables {
		if table.Name == "incidents" {
			gt.Array(t, table.ForeignKeys).Length(1)
			gt.Value(t, table.ForeignKeys[0].ReferencedTable).Equal("users")
		}
	}
}

func TestSchemaAnalysisFailureIsolatesConnection(t *testing.T) {
	ctx := context.Background()
	path := seedSQLite(t)

	c, err := sqlbridge.New(ctx, &stubGenerator{sql: "SELECT severity FROM incidents"}, []sqlbridge.Source{
		{ID: "good", Driver: "sqlite", DSN: path},
		{ID: "bad", Driver: "sqlite", DSN: "/no-such-dir/absent.db"},
	})
	gt.NoError(t, err)
	defer c.Close()

	var healthy, unhealthy int
	for _, schema := range c.Schemas() {
		if schema.Healthy() {
			healthy++
		} else {
			unhealthy++
			gt.Value(t, string(schema.ConnectionID)).Equal("bad")
		}
	}
	gt.Value(t, healthy).Equal(1)
	gt.Value(t, unhealthy).Equal(1)

	// The healthy connection still serves context
	results := gt.R1(c.Gather(ctx, "how severe are incidents?")).NoError(t)
	gt.Array(t, results).Length(1)
	gt.Value(t, string(results[0].ConnectionID)).Equal("good")
}

func TestGatherCapsAndRedacts(t *testing.T) {
	ctx := context.Background()
	path := seedSQLite(t)

	c, err := sqlbridge.New(ctx, &stubGenerator{sql: "SELECT name, email, password FROM users"}, []sqlbridge.Source{{
		ID:                    "ops",
		Driver:                "sqlite",
		DSN:                   path,
		SanitizeSensitiveData: true,
		MaxRowsPerTable:       1,
	}})
	gt.NoError(t, err)
	defer c.Close()

	results := gt.R1(c.Gather(ctx, "list users")).NoError(t)
	gt.Array(t, results).Length(1)

	rows := results[0]
	gt.Value(t, rows.Table).Equal("users")
	gt.Array(t, rows.Rows).Length(1)
	gt.True(t, rows.Truncated)

	gt.Value(t, rows.Rows[0][0]).Equal("alice")
	gt.Value(t, rows.Rows[0][1]).Equal("[REDACTED]")
	gt.Value(t, rows.Rows[0][2]).Equal("[REDACTED]")
}

func TestGatherRedactsAliasedSensitiveColumn(t *testing.T) {
	ctx := context.Background()
	path := seedSQLite(t)

	cases := []struct {
		name string
		sql  string
	}{
		{"alias", "SELECT name, password AS p FROM users"},
		{"expression", "SELECT name, upper(password) AS p FROM users"},
		{"quoted alias", `SELECT name, "password" AS contact FROM users`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := sqlbridge.New(ctx, &stubGenerator{sql: tc.sql}, []sqlbridge.Source{{
				ID:                    "ops",
				Driver:                "sqlite",
				DSN:                   path,
				SanitizeSensitiveData: true,
			}})
			gt.NoError(t, err)
			defer c.Close()

			results := gt.R1(c.Gather(ctx, "list users")).NoError(t)
			gt.Array(t, results).Length(1)

			for _, row := range results[0].Rows {
				gt.Value(t, row[0]).NotEqual("[REDACTED]")
				gt.Value(t, row[1]).Equal("[REDACTED]")
			}
		})
	}
}

func TestGatherRedactsStarSelectByColumnName(t *testing.T) {
	ctx := context.Background()
	path := seedSQLite(t)

	c, err := sqlbridge.New(ctx, &stubGenerator{sql: "SELECT * FROM users"}, []sqlbridge.Source{{
		ID:                    "ops",
		Driver:                "sqlite",
		DSN:                   path,
		SanitizeSensitiveData: true,
	}})
	gt.NoError(t, err)
	defer c.Close()

	results := gt.R1(c.Gather(ctx, "list users")).NoError(t)
	gt.Array(t, results).Length(1)

	rows := results[0]
	for i, column := range rows.Columns {
		for _, row := range rows.Rows {
			switch column {
			case "password", "email":
				gt.Value(t, row[i]).Equal("[REDACTED]")
			case "name":
				gt.Value(t, row[i]).NotEqual("[REDACTED]")
			}
		}
	}
}

func TestGatherRejectsGeneratedMutation(t *testing.T) {
	ctx := context.Background()
	path := seedSQLite(t)

	c, err := sqlbridge.New(ctx, &stubGenerator{sql: "DELETE FROM users"}, []sqlbridge.Source{{
		ID: "ops", Driver: "sqlite", DSN: path,
	}})
	gt.NoError(t, err)
	defer c.Close()

	// The invalid statement is skipped, not executed
	results := gt.R1(c.Gather(ctx, "remove everyone")).NoError(t)
	gt.Array(t, results).Length(0)

	db, err := sql.Open("sqlite", path)
	gt.NoError(t, err)
	defer db.Close()
	var count int
	gt.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	gt.Value(t, count).Equal(2)
}

func TestGatherSkipsWhenModelDeclines(t *testing.T) {
	ctx := context.Background()
	path := seedSQLite(t)

	c, err := sqlbridge.New(ctx, &stubGenerator{sql: "NONE"}, []sqlbridge.Source{{
		ID: "ops", Driver: "sqlite", DSN: path,
	}})
	gt.NoError(t, err)
	defer c.Close()

	results := gt.R1(c.Gather(ctx, "what is the weather?")).NoError(t)
	gt.Array(t, results).Length(0)
}

func TestValidateSQL(t *testing.T) {
	cases := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"plain select", "SELECT id FROM users", false},
		{"select with trailing semicolon", "SELECT id FROM users;", false},
		{"lowercase select", "select severity from incidents where severity = 'high'", false},
		{"empty", "   ", true},
		{"delete", "DELETE FROM users", true},
		{"drop", "DROP TABLE users", true},
		{"multi statement", "SELECT id FROM users; DROP TABLE users", true},
		{"select into", "SELECT id INTO backup FROM users", true},
		{"non-ascii", "SELECT id FROM users WHERE name = 'café'", true},
		{"pragma", "PRAGMA table_info('users')", true},
		{"not a select", "WITH x AS (SELECT 1) SELECT * FROM x", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := sqlbridge.ValidateSQL(tc.sql)
			if tc.wantErr {
				gt.Error(t, err)
			} else {
				gt.NoError(t, err)
			}
		})
	}
}

func TestFormatFacts(t *testing.T) {
	ctx := context.Background()
	path := seedSQLite(t)

	c, err := sqlbridge.New(ctx, &stubGenerator{sql: "SELECT severity FROM incidents WHERE severity = 'high'"}, []sqlbridge.Source{{
		ID: "ops", Driver: "sqlite", DSN: path,
	}})
	gt.NoError(t, err)
	defer c.Close()

	results := gt.R1(c.Gather(ctx, "high severity incidents")).NoError(t)
	facts := sqlbridge.FormatFacts(results)
	gt.Array(t, facts).Length(1)
	gt.String(t, facts[0]).Contains("ops/incidents")
	gt.String(t, facts[0]).Contains("severity=high")
}
