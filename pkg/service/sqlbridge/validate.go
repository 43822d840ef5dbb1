package sqlbridge

import (
	"strings"
	"unicode"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// forbiddenKeywords are rejected anywhere in a generated statement.
// The bridge is strictly read-only.
var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create", "truncate",
	"grant", "revoke", "attach", "detach", "pragma", "vacuum", "exec",
	"execute", "copy", "merge", "call", "into",
}

// ValidateSQL checks a model-generated statement before execution:
// exactly one SELECT, ASCII-only text, and no mutating keywords.
// Non-English tokens are rejected outright since localized model output
// is a known injection vector.
func ValidateSQL(query string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if trimmed == "" {
		return goerr.New("generated SQL is empty", goerr.T(types.TagBadRequest))
	}

	for _, r := range trimmed {
		if r > unicode.MaxASCII {
			return goerr.New("generated SQL contains non-ASCII characters",
				goerr.T(types.TagBadRequest), goerr.V("rune", string(r)))
		}
	}

	if strings.ContainsRune(trimmed, ';') {
		return goerr.New("generated SQL must be a single statement",
			goerr.T(types.TagBadRequest))
	}

	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select ") && lower != "select" {
		return goerr.New("generated SQL must be a SELECT statement",
			goerr.T(types.TagBadRequest), goerr.V("sql", trimmed))
	}

	for _, token := range identifierTokens(lower) {
		for _, forbidden := range forbiddenKeywords {
			if token == forbidden {
				return goerr.New("generated SQL uses a forbidden keyword",
					goerr.T(types.TagBadRequest), goerr.V("keyword", token))
			}
		}
	}

	return nil
}

// identifierTokens lowercases a SQL fragment and splits it into bare
// identifier/keyword tokens, dropping operators, quotes, and
// punctuation.
func identifierTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
