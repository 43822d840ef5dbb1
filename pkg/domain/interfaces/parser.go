package interfaces

import "context"

// Parser converts raw uploaded bytes into normalized plain text.
// Concrete format support (PDF, OCR, audio transcription) lives behind
// this boundary; unrecognized content types fail with
// types.ErrUnsupportedFormat.
type Parser interface {
	Parse(ctx context.Context, raw []byte, contentType string) (string, error)
}
