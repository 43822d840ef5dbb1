package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultSessionCollection = "sessions"

type sessionRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newSessionRepository(client *firestore.Client) *sessionRepository {
	return &sessionRepository{client: client}
}

func (r *sessionRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + defaultSessionCollection)
}

type turnDoc struct {
	Query     string    `firestore:"query"`
	Answer    string    `firestore:"answer"`
	CreatedAt time.Time `firestore:"created_at"`
}

type sessionDoc struct {
	ID           string    `firestore:"id"`
	Turns        []turnDoc `firestore:"turns"`
	CreatedAt    time.Time `firestore:"created_at"`
	LastActiveAt time.Time `firestore:"last_active_at"`
}

func toSessionDoc(session *model.Session) *sessionDoc {
	d := &sessionDoc{
		ID:           session.ID.String(),
		Turns:        make([]turnDoc, 0, len(session.Turns)),
		CreatedAt:    session.CreatedAt,
		LastActiveAt: session.LastActiveAt,
	}
	for _, turn := range session.Turns {
		d.Turns = append(d.Turns, turnDoc{
			Query:     turn.Query,
			Answer:    turn.Answer,
			CreatedAt: turn.CreatedAt,
		})
	}
	return d
}

func fromSessionDoc(d *sessionDoc) *model.Session {
	session := &model.Session{
		ID:           types.SessionID(d.ID),
		Turns:        make([]model.Turn, 0, len(d.Turns)),
		CreatedAt:    d.CreatedAt,
		LastActiveAt: d.LastActiveAt,
	}
	for _, turn := range d.Turns {
		session.Turns = append(session.Turns, model.Turn{
			Query:     turn.Query,
			Answer:    turn.Answer,
			CreatedAt: turn.CreatedAt,
		})
	}
	return session
}

func (r *sessionRepository) Get(ctx context.Context, id types.SessionID) (*model.Session, error) {
	snapshot, err := r.collection().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "session not found", goerr.V("sessionID", id))
		}
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("sessionID", id))
	}

	var d sessionDoc
	if err := snapshot.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode session", goerr.V("sessionID", id))
	}
	return fromSessionDoc(&d), nil
}

func (r *sessionRepository) Put(ctx context.Context, session *model.Session) error {
	if err := session.ID.Validate(); err != nil {
		return err
	}
	if _, err := r.collection().Doc(session.ID.String()).Set(ctx, toSessionDoc(session)); err != nil {
		return goerr.Wrap(err, "failed to put session", goerr.V("sessionID", session.ID))
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, id types.SessionID) error {
	if _, err := r.collection().Doc(id.String()).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete session", goerr.V("sessionID", id))
	}
	return nil
}

func (r *sessionRepository) List(ctx context.Context) ([]*model.Session, error) {
	iter := r.collection().OrderBy("last_active_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var sessions []*model.Session
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate sessions")
		}
		var d sessionDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to decode session")
		}
		sessions = append(sessions, fromSessionDoc(&d))
	}

	return sessions, nil
}
