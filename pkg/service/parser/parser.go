// Package parser normalizes uploaded documents into plain text ready
// for chunking. Binary formats (PDF, images, audio) are out of scope;
// those belong to an upstream extraction collaborator.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type Parser struct{}

var _ interfaces.Parser = &Parser{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, raw []byte, contentType string) (string, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch mediaType {
	case "text/plain", "text/markdown", "text/x-markdown", "":
		return parseText(raw, mediaType)
	case "application/json", "text/json":
		return parseJSON(raw)
	default:
		return "", goerr.Wrap(types.ErrUnsupportedFormat, "cannot parse content type",
			goerr.V("contentType", contentType))
	}
}

func parseText(raw []byte, mediaType string) (string, error) {
	if !utf8.Valid(raw) {
		return "", goerr.Wrap(types.ErrUnsupportedFormat, "content is not valid UTF-8 text",
			goerr.V("contentType", mediaType))
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}

// parseJSON flattens a JSON document into one "path: value" line per
// leaf so keys become searchable keywords.
func parseJSON(raw []byte) (string, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", goerr.Wrap(types.ErrUnsupportedFormat, "content is not valid JSON",
			goerr.V("cause", err.Error()))
	}

	var lines []string
	flattenJSON("", value, &lines)
	return strings.Join(lines, "\n"), nil
}

func flattenJSON(path string, value any, lines *[]string) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			flattenJSON(joinPath(path, key), v[key], lines)
		}
	case []any:
		for i, item := range v {
			flattenJSON(fmt.Sprintf("%s[%d]", path, i), item, lines)
		}
	default:
		if path == "" {
			*lines = append(*lines, fmt.Sprintf("%v", v))
			return
		}
		*lines = append(*lines, fmt.Sprintf("%s: %v", path, v))
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
