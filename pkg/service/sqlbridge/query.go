package sqlbridge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const sqlSystemPrompt = `You translate questions into SQL. Given a database schema and a question, respond with exactly one read-only SELECT statement in plain ASCII English, no markdown fences, no explanation. If the schema cannot answer the question, respond with the single word NONE.`

const redactedValue = "[REDACTED]"

// Gather asks the generator for a SELECT against each healthy
// connection and executes the validated statements. Per-connection
// failures are logged and skipped; the merged result is whatever
// succeeded.
func (c *Coordinator) Gather(ctx context.Context, question string) ([]*model.TableRows, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if strings.TrimSpace(question) == "" {
		return nil, goerr.New("question must not be empty")
	}

	logger := logging.From(ctx)

	var merged []*model.TableRows
	for _, conn := range c.connections {
		c.mu.RLock()
		schema := c.schemas[conn.source.ID]
		c.mu.RUnlock()

		if !schema.Healthy() {
			continue
		}

		rows, err := c.gatherConnection(ctx, conn, schema, question)
		if err != nil {
			if ctx.Err() != nil {
				return nil, goerr.Wrap(ctx.Err(), "context gathering cancelled")
			}
			logger.Warn("relational context gathering failed",
				"connection_id", conn.source.ID,
				"error", err)
			continue
		}
		if rows != nil {
			merged = append(merged, rows)
		}
	}
	return merged, nil
}

func (c *Coordinator) gatherConnection(ctx context.Context, conn *connection, schema *model.ConnectionSchema, question string) (*model.TableRows, error) {
	prompt := fmt.Sprintf("Schema (%s):\n%s\nQuestion: %s", schema.Driver, describeSchema(schema), question)

	generated, err := c.generator.Generate(ctx, sqlSystemPrompt, prompt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate SQL")
	}

	statement := strings.TrimSpace(generated)
	statement = strings.TrimPrefix(statement, "```sql")
	statement = strings.TrimPrefix(statement, "```")
	statement = strings.TrimSuffix(statement, "```")
	statement = strings.TrimSpace(statement)
	if strings.EqualFold(statement, "NONE") {
		return nil, nil
	}

	if err := ValidateSQL(statement); err != nil {
		return nil, err
	}

	return executeCapped(ctx, conn.db, &conn.source, statement)
}

// describeSchema renders the analyzed schema as prompt text. Sensitive
// columns are listed so the model can use them in predicates, but their
// values never leave executeCapped unredacted.
func describeSchema(schema *model.ConnectionSchema) string {
	var b strings.Builder
	for _, table := range schema.Tables {
		fmt.Fprintf(&b, "TABLE %s (", table.Name)
		for i, column := range table.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s %s", column.Name, column.DataType)
		}
		b.WriteString(")\n")
		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(&b, "  %s.%s -> %s.%s\n", table.Name, fk.Column, fk.ReferencedTable, fk.ReferencedColumn)
		}
	}
	return b.String()
}

func executeCapped(ctx context.Context, db *sql.DB, source *Source, statement string) (*model.TableRows, error) {
	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to execute generated SQL", goerr.V("sql", statement))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read result columns")
	}

	sensitive := make([]bool, len(columns))
	if source.SanitizeSensitiveData {
		provenance := selectListSensitivity(statement, len(columns), source.SensitivePatterns)
		for i, column := range columns {
			sensitive[i] = provenance[i] || columnSensitive(column, source.SensitivePatterns)
		}
	}

	maxRows := source.maxRows()
	out := &model.TableRows{
		ConnectionID: source.ID,
		Table:        tableFromStatement(statement),
		Columns:      columns,
	}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if len(out.Rows) >= maxRows {
			out.Truncated = true
			break
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, goerr.Wrap(err, "failed to scan result row")
		}
		record := make([]string, len(columns))
		for i, value := range values {
			if sensitive[i] {
				record[i] = redactedValue
				continue
			}
			record[i] = renderValue(value)
		}
		out.Rows = append(out.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate result rows")
	}

	return out, nil
}

// selectListSensitivity maps select-list provenance onto result
// columns. Result column names alone are not enough: an alias like
// `password AS p` would slip past name matching, so every select item
// is tokenized and checked against the sensitive patterns. When the
// items cannot be paired with the result columns (star expansion), a
// single sensitive reference redacts every column.
func selectListSensitivity(statement string, columnCount int, patterns []string) []bool {
	sensitive := make([]bool, columnCount)

	items := splitTopLevel(selectList(statement))
	flagged := make([]bool, len(items))
	anyFlagged := false
	for i, item := range items {
		for _, token := range identifierTokens(item) {
			if columnSensitive(token, patterns) {
				flagged[i] = true
				anyFlagged = true
				break
			}
		}
	}

	if len(items) == columnCount {
		copy(sensitive, flagged)
		return sensitive
	}
	if anyFlagged {
		for i := range sensitive {
			sensitive[i] = true
		}
	}
	return sensitive
}

// selectList returns the text between the leading SELECT and its
// top-level FROM. A statement without FROM yields everything after
// SELECT.
func selectList(statement string) string {
	lower := strings.ToLower(statement)
	idx := strings.Index(lower, "select")
	if idx < 0 {
		return ""
	}
	start := idx + len("select")

	depth := 0
	for i := start; i < len(lower); i++ {
		switch lower[i] {
		case '(':
			depth++
		case ')':
			depth--
		case 'f':
			if depth == 0 && strings.HasPrefix(lower[i:], "from") &&
				!isIdentByte(lower[i-1]) && (i+4 >= len(lower) || !isIdentByte(lower[i+4])) {
				return statement[start:i]
			}
		}
	}
	return statement[start:]
}

// splitTopLevel splits a select list on commas outside parentheses so
// function arguments stay within their item.
func splitTopLevel(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var items []string
	depth, last := 0, 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				items = append(items, list[last:i])
				last = i + 1
			}
		}
	}
	return append(items, list[last:])
}

func isIdentByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('0' <= b && b <= '9')
}

// tableFromStatement extracts the first table name after FROM, for
// labeling only. Joins still execute; the label just names the anchor.
func tableFromStatement(statement string) string {
	fields := strings.Fields(statement)
	for i, field := range fields {
		if strings.EqualFold(field, "from") && i+1 < len(fields) {
			return strings.Trim(fields[i+1], `"`)
		}
	}
	return ""
}

func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatFacts renders merged result sets as plain-text lines for the
// synthesis prompt.
func FormatFacts(results []*model.TableRows) []string {
	var facts []string
	for _, result := range results {
		for _, row := range result.Rows {
			pairs := make([]string, 0, len(result.Columns))
			for i, column := range result.Columns {
				if i < len(row) {
					pairs = append(pairs, fmt.Sprintf("%s=%s", column, row[i]))
				}
			}
			facts = append(facts, fmt.Sprintf("%s/%s: %s",
				result.ConnectionID, result.Table, strings.Join(pairs, ", ")))
		}
		if result.Truncated {
			facts = append(facts, fmt.Sprintf("%s/%s: (result truncated)",
				result.ConnectionID, result.Table))
		}
	}
	return facts
}
