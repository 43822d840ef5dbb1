// Package firestore provides the durable repository backend on Google
// Cloud Firestore. Vector similarity uses stored Vector32 embeddings
// with in-process cosine scoring so results stay comparable with the
// other backends.
package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = goerr.New("not found", goerr.T(types.TagNotFound))

type Firestore struct {
	client    *firestore.Client
	documents *documentRepository
	vectors   *vectorIndex
	sessions  *sessionRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces all collections, mainly for tests
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.documents.collectionPrefix = prefix
		f.vectors.collectionPrefix = prefix
		f.sessions.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(types.ErrStorageUnavailable, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID), goerr.V("cause", err.Error()))
	}

	f := &Firestore{
		client:    client,
		documents: newDocumentRepository(client),
		vectors:   newVectorIndex(client),
		sessions:  newSessionRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Document() interfaces.DocumentRepository {
	return f.documents
}

func (f *Firestore) Vector() interfaces.VectorIndex {
	return f.vectors
}

func (f *Firestore) Session() interfaces.SessionRepository {
	return f.sessions
}

func (f *Firestore) Close(ctx context.Context) error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
