package firestore

import (
	"context"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultDocumentCollection = "documents"

type documentRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newDocumentRepository(client *firestore.Client) *documentRepository {
	return &documentRepository{client: client}
}

func (r *documentRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + defaultDocumentCollection)
}

type documentDoc struct {
	ID          string    `firestore:"id"`
	FileName    string    `firestore:"file_name"`
	ContentType string    `firestore:"content_type"`
	Content     string    `firestore:"content"`
	UploadedBy  string    `firestore:"uploaded_by"`
	UploadedAt  time.Time `firestore:"uploaded_at"`
}

type chunkDoc struct {
	ID         string    `firestore:"id"`
	DocumentID string    `firestore:"document_id"`
	Index      int       `firestore:"index"`
	Content    string    `firestore:"content"`
	CreatedAt  time.Time `firestore:"created_at"`
}

func toDocumentDoc(doc *model.Document) *documentDoc {
	return &documentDoc{
		ID:          doc.ID.String(),
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		Content:     doc.Content,
		UploadedBy:  doc.UploadedBy,
		UploadedAt:  doc.UploadedAt,
	}
}

func fromDocumentDoc(d *documentDoc) *model.Document {
	return &model.Document{
		ID:          types.DocumentID(d.ID),
		FileName:    d.FileName,
		ContentType: d.ContentType,
		Content:     d.Content,
		UploadedBy:  d.UploadedBy,
		UploadedAt:  d.UploadedAt,
	}
}

func toChunkDoc(chunk *model.Chunk) *chunkDoc {
	return &chunkDoc{
		ID:         chunk.ID.String(),
		DocumentID: chunk.DocumentID.String(),
		Index:      chunk.Index,
		Content:    chunk.Content,
		CreatedAt:  chunk.CreatedAt,
	}
}

func fromChunkDoc(d *chunkDoc) *model.Chunk {
	return &model.Chunk{
		ID:         types.ChunkID(d.ID),
		DocumentID: types.DocumentID(d.DocumentID),
		Index:      d.Index,
		Content:    d.Content,
		CreatedAt:  d.CreatedAt,
	}
}

// Chunk IDs contain ":" which Firestore document names allow, but the
// forward slash does not occur in them so no escaping is needed.
func chunkDocName(id types.ChunkID) string {
	return strings.ReplaceAll(id.String(), "/", "_")
}

func (r *documentRepository) Put(ctx context.Context, doc *model.Document) error {
	if err := doc.ID.Validate(); err != nil {
		return err
	}

	docRef := r.collection().Doc(doc.ID.String())

	// An overwrite must not leave chunks from a previous version behind
	if err := r.deleteChunks(ctx, docRef); err != nil {
		return err
	}

	if _, err := docRef.Set(ctx, toDocumentDoc(doc)); err != nil {
		return goerr.Wrap(err, "failed to put document", goerr.V("documentID", doc.ID))
	}

	batch := r.client.BulkWriter(ctx)
	for _, chunk := range doc.Chunks {
		chunkRef := docRef.Collection("chunks").Doc(chunkDocName(chunk.ID))
		if _, err := batch.Set(chunkRef, toChunkDoc(chunk)); err != nil {
			return goerr.Wrap(err, "failed to enqueue chunk write", goerr.V("chunkID", chunk.ID))
		}
	}
	batch.End()

	return nil
}

func (r *documentRepository) Get(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	docRef := r.collection().Doc(id.String())
	snapshot, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "document not found", goerr.V("documentID", id))
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("documentID", id))
	}

	var d documentDoc
	if err := snapshot.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("documentID", id))
	}
	doc := fromDocumentDoc(&d)

	iter := docRef.Collection("chunks").Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate chunks", goerr.V("documentID", id))
		}
		var cd chunkDoc
		if err := snap.DataTo(&cd); err != nil {
			return nil, goerr.Wrap(err, "failed to decode chunk", goerr.V("documentID", id))
		}
		doc.Chunks = append(doc.Chunks, fromChunkDoc(&cd))
	}

	sort.Slice(doc.Chunks, func(i, j int) bool {
		return doc.Chunks[i].Index < doc.Chunks[j].Index
	})

	return doc, nil
}

func (r *documentRepository) List(ctx context.Context) ([]*model.Document, error) {
	iter := r.collection().OrderBy("uploaded_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var docs []*model.Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents")
		}
		var d documentDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document")
		}
		docs = append(docs, fromDocumentDoc(&d))
	}

	return docs, nil
}

func (r *documentRepository) Delete(ctx context.Context, id types.DocumentID) error {
	docRef := r.collection().Doc(id.String())

	if err := r.deleteChunks(ctx, docRef); err != nil {
		return err
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("documentID", id))
	}
	return nil
}

func (r *documentRepository) DeleteAll(ctx context.Context) error {
	iter := r.collection().Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate documents")
		}
		if err := r.deleteChunks(ctx, snap.Ref); err != nil {
			return err
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete document", goerr.V("ref", snap.Ref.ID))
		}
	}
	return nil
}

func (r *documentRepository) deleteChunks(ctx context.Context, docRef *firestore.DocumentRef) error {
	iter := docRef.Collection("chunks").Documents(ctx)
	defer iter.Stop()

	batch := r.client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate chunks for delete", goerr.V("ref", docRef.ID))
		}
		if _, err := batch.Delete(snap.Ref); err != nil {
			return goerr.Wrap(err, "failed to enqueue chunk delete", goerr.V("ref", snap.Ref.ID))
		}
	}
	batch.End()
	return nil
}

func (r *documentRepository) Count(ctx context.Context) (int, int, error) {
	iter := r.collection().Documents(ctx)
	defer iter.Stop()

	docCount := 0
	chunkCount := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, 0, goerr.Wrap(err, "failed to count documents")
		}
		docCount++

		chunkIter := snap.Ref.Collection("chunks").Documents(ctx)
		for {
			_, err := chunkIter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				chunkIter.Stop()
				return 0, 0, goerr.Wrap(err, "failed to count chunks", goerr.V("ref", snap.Ref.ID))
			}
			chunkCount++
		}
		chunkIter.Stop()
	}

	return docCount, chunkCount, nil
}
