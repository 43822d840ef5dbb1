package model

import (
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

// Document represents an uploaded document and its extracted text.
// Documents own their chunks exclusively: deleting a document cascades
// to every chunk derived from it.
type Document struct {
	ID          types.DocumentID
	FileName    string
	ContentType string
	Content     string // normalized plain text produced by the parser
	Chunks      []*Chunk
	UploadedBy  string
	UploadedAt  time.Time
}

// NewDocument creates a Document with a fresh ID and upload timestamp
func NewDocument(fileName, contentType, content, uploadedBy string) *Document {
	return &Document{
		ID:          types.NewDocumentID(),
		FileName:    fileName,
		ContentType: contentType,
		Content:     content,
		UploadedBy:  uploadedBy,
		UploadedAt:  time.Now().UTC(),
	}
}

// Chunk is a bounded substring of a document's text, the unit of
// embedding and retrieval. A chunk belongs to exactly one document.
type Chunk struct {
	ID         types.ChunkID
	DocumentID types.DocumentID
	Index      int // position within the owning document
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// NewChunk creates a chunk for the given document position with a
// deterministic ID so re-embedding overwrites rather than duplicates.
func NewChunk(docID types.DocumentID, index int, content string) *Chunk {
	return &Chunk{
		ID:         types.NewChunkID(docID, index),
		DocumentID: docID,
		Index:      index,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
}

// SearchResult references a chunk with a [0,1] relevance score,
// optionally decomposed into its semantic and keyword components.
type SearchResult struct {
	Chunk         *Chunk
	Score         float64
	SemanticScore float64
	KeywordScore  float64
}

// StorageStatistics summarizes the state of the document and vector stores
type StorageStatistics struct {
	Backend       string
	DocumentCount int
	ChunkCount    int
	VectorCount   int
	Dimension     int
	CollectedAt   time.Time
}
