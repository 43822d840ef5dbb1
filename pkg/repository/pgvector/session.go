package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
)

type sessionRepository struct {
	pool *pgxpool.Pool
}

type turnRecord struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

func encodeTurns(turns []model.Turn) ([]byte, error) {
	records := make([]turnRecord, 0, len(turns))
	for _, turn := range turns {
		records = append(records, turnRecord{
			Query:     turn.Query,
			Answer:    turn.Answer,
			CreatedAt: turn.CreatedAt,
		})
	}
	return json.Marshal(records)
}

func decodeTurns(data []byte) ([]model.Turn, error) {
	var records []turnRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	turns := make([]model.Turn, 0, len(records))
	for _, record := range records {
		turns = append(turns, model.Turn{
			Query:     record.Query,
			Answer:    record.Answer,
			CreatedAt: record.CreatedAt,
		})
	}
	return turns, nil
}

func (r *sessionRepository) Get(ctx context.Context, id types.SessionID) (*model.Session, error) {
	session := &model.Session{}
	var idStr string
	var turnsData []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, turns, created_at, last_active_at
		FROM sessions WHERE id = $1`, id.String()).
		Scan(&idStr, &turnsData, &session.CreatedAt, &session.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "session not found", goerr.V("sessionID", id))
		}
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("sessionID", id))
	}
	session.ID = types.SessionID(idStr)

	turns, err := decodeTurns(turnsData)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode turns", goerr.V("sessionID", id))
	}
	session.Turns = turns

	return session, nil
}

func (r *sessionRepository) Put(ctx context.Context, session *model.Session) error {
	if err := session.ID.Validate(); err != nil {
		return err
	}

	turnsData, err := encodeTurns(session.Turns)
	if err != nil {
		return goerr.Wrap(err, "failed to encode turns", goerr.V("sessionID", session.ID))
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO sessions (id, turns, created_at, last_active_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			turns = EXCLUDED.turns,
			last_active_at = EXCLUDED.last_active_at`,
		session.ID.String(), turnsData, session.CreatedAt, session.LastActiveAt)
	if err != nil {
		return goerr.Wrap(err, "failed to put session", goerr.V("sessionID", session.ID))
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, id types.SessionID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id.String()); err != nil {
		return goerr.Wrap(err, "failed to delete session", goerr.V("sessionID", id))
	}
	return nil
}

func (r *sessionRepository) List(ctx context.Context) ([]*model.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, turns, created_at, last_active_at
		FROM sessions ORDER BY last_active_at DESC`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query sessions")
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session := &model.Session{}
		var idStr string
		var turnsData []byte
		if err := rows.Scan(&idStr, &turnsData, &session.CreatedAt, &session.LastActiveAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan session")
		}
		session.ID = types.SessionID(idStr)
		turns, err := decodeTurns(turnsData)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode turns", goerr.V("sessionID", idStr))
		}
		session.Turns = turns
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate sessions")
	}

	return sessions, nil
}
