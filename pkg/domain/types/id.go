package types

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// DocumentID is a UUID-based identifier for an uploaded document
type DocumentID string

// NewDocumentID generates a new UUID v4 DocumentID
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New().String())
}

// Validate checks if the DocumentID is valid
func (d DocumentID) Validate() error {
	if d == "" {
		return goerr.New("document ID cannot be empty")
	}
	return nil
}

// String returns the string representation of DocumentID
func (d DocumentID) String() string {
	return string(d)
}

// ChunkID identifies a chunk within a document. It is deterministic
// (documentID + index) so that re-embedding a document overwrites the
// prior vectors instead of accumulating duplicates.
type ChunkID string

// NewChunkID builds the deterministic chunk identifier for a document chunk
func NewChunkID(docID DocumentID, index int) ChunkID {
	return ChunkID(fmt.Sprintf("%s:%d", docID, index))
}

// String returns the string representation of ChunkID
func (c ChunkID) String() string {
	return string(c)
}

// Validate checks if the ChunkID is valid
func (c ChunkID) Validate() error {
	if c == "" {
		return goerr.New("chunk ID cannot be empty")
	}
	return nil
}

// SessionID identifies a conversation session
type SessionID string

// NewSessionID generates a new UUID v7 SessionID.
// v7 keeps session IDs roughly time-ordered for storage backends.
func NewSessionID() SessionID {
	return SessionID(uuid.Must(uuid.NewV7()).String())
}

// Validate checks if the SessionID is valid
func (s SessionID) Validate() error {
	if s == "" {
		return goerr.New("session ID cannot be empty")
	}
	return nil
}

// String returns the string representation of SessionID
func (s SessionID) String() string {
	return string(s)
}

// ConnectionID identifies a configured relational database connection
type ConnectionID string

// Validate checks if the ConnectionID is valid
func (c ConnectionID) Validate() error {
	if c == "" {
		return goerr.New("connection ID cannot be empty")
	}
	return nil
}

// String returns the string representation of ConnectionID
func (c ConnectionID) String() string {
	return string(c)
}
