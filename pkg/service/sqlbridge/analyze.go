package sqlbridge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

func analyzeSchema(ctx context.Context, db *sql.DB, source *Source) ([]model.Table, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to reach relational source")
	}

	var tables []model.Table
	var err error
	switch source.Driver {
	case "postgres":
		tables, err = analyzePostgres(ctx, db)
	case "sqlite":
		tables, err = analyzeSQLite(ctx, db)
	default:
		return nil, goerr.New("unsupported driver", goerr.V("driver", source.Driver))
	}
	if err != nil {
		return nil, err
	}

	filtered := make([]model.Table, 0, len(tables))
	for _, table := range tables {
		if !tableIncluded(table.Name, source.IncludedTables, source.ExcludedTables) {
			continue
		}
		for i := range table.Columns {
			table.Columns[i].Sensitive = columnSensitive(table.Columns[i].Name, source.SensitivePatterns)
		}
		filtered = append(filtered, table)
	}
	return filtered, nil
}

func tableIncluded(name string, included, excluded []string) bool {
	for _, ex := range excluded {
		if strings.EqualFold(name, ex) {
			return false
		}
	}
	if len(included) == 0 {
		return true
	}
	for _, in := range included {
		if strings.EqualFold(name, in) {
			return true
		}
	}
	return false
}

// defaultSensitivePatterns cover common credential and PII column names
var defaultSensitivePatterns = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"credit_card", "ssn", "email", "phone",
}

func columnSensitive(name string, patterns []string) bool {
	if len(patterns) == 0 {
		patterns = defaultSensitivePatterns
	}
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func analyzePostgres(ctx context.Context, db *sql.DB) ([]model.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query information_schema")
	}
	defer rows.Close()

	byName := map[string]*model.Table{}
	var order []string
	for rows.Next() {
		var tableName, columnName, dataType, nullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &nullable); err != nil {
			return nil, goerr.Wrap(err, "failed to scan column row")
		}
		table, ok := byName[tableName]
		if !ok {
			table = &model.Table{Name: tableName}
			byName[tableName] = table
			order = append(order, tableName)
		}
		table.Columns = append(table.Columns, model.Column{
			Name:     columnName,
			DataType: dataType,
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate columns")
	}

	if err := attachPostgresForeignKeys(ctx, db, byName); err != nil {
		return nil, err
	}

	tables := make([]model.Table, 0, len(order))
	for _, name := range order {
		tables = append(tables, *byName[name])
	}
	return tables, nil
}

func attachPostgresForeignKeys(ctx context.Context, db *sql.DB, byName map[string]*model.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'`)
	if err != nil {
		return goerr.Wrap(err, "failed to query foreign keys")
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName, refTable, refColumn string
		if err := rows.Scan(&tableName, &columnName, &refTable, &refColumn); err != nil {
			return goerr.Wrap(err, "failed to scan foreign key row")
		}
		if table, ok := byName[tableName]; ok {
			table.ForeignKeys = append(table.ForeignKeys, model.ForeignKey{
				Column:           columnName,
				ReferencedTable:  refTable,
				ReferencedColumn: refColumn,
			})
		}
	}
	return rows.Err()
}

func analyzeSQLite(ctx context.Context, db *sql.DB) ([]model.Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query sqlite_master")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, goerr.Wrap(err, "failed to scan table name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate tables")
	}

	tables := make([]model.Table, 0, len(names))
	for _, name := range names {
		table := model.Table{Name: name}

		colRows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, name))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read table info", goerr.V("table", name))
		}
		for colRows.Next() {
			var cid int
			var colName, dataType string
			var notNull, pk int
			var dflt sql.NullString
			if err := colRows.Scan(&cid, &colName, &dataType, &notNull, &dflt, &pk); err != nil {
				colRows.Close()
				return nil, goerr.Wrap(err, "failed to scan table info", goerr.V("table", name))
			}
			table.Columns = append(table.Columns, model.Column{
				Name:     colName,
				DataType: dataType,
				Nullable: notNull == 0,
			})
		}
		if err := colRows.Err(); err != nil {
			colRows.Close()
			return nil, goerr.Wrap(err, "failed to iterate table info", goerr.V("table", name))
		}
		colRows.Close()

		fkRows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%q)`, name))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read foreign key list", goerr.V("table", name))
		}
		for fkRows.Next() {
			var id, seq int
			var refTable, from, to string
			var onUpdate, onDelete, match string
			if err := fkRows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
				fkRows.Close()
				return nil, goerr.Wrap(err, "failed to scan foreign key", goerr.V("table", name))
			}
			table.ForeignKeys = append(table.ForeignKeys, model.ForeignKey{
				Column:           from,
				ReferencedTable:  refTable,
				ReferencedColumn: to,
			})
		}
		if err := fkRows.Err(); err != nil {
			fkRows.Close()
			return nil, goerr.Wrap(err, "failed to iterate foreign keys", goerr.V("table", name))
		}
		fkRows.Close()

		tables = append(tables, table)
	}
	return tables, nil
}
