// Package session manages conversational state for multi-turn queries.
// Turn logs are append-only; mutation is serialized per session ID so
// concurrent queries on the same session cannot interleave partial
// writes.
package session

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/model"
	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Command is a session control directive parsed from the head of a query
type Command int

const (
	CommandNone Command = iota
	// CommandNew abandons the current session and starts a fresh one
	CommandNew
	// CommandReset clears the turn history but keeps the session ID
	CommandReset
	// CommandClear deletes the session entirely
	CommandClear
)

// Inbound is a pre-parsed user query: the control command, if any, and
// the remaining query text.
type Inbound struct {
	Command Command
	Query   string
}

// Parse splits a session control command off the front of raw input.
// Commands are only recognized at the start of the message.
func Parse(raw string) Inbound {
	trimmed := strings.TrimSpace(raw)
	for prefix, cmd := range map[string]Command{
		"/new":   CommandNew,
		"/reset": CommandReset,
		"/clear": CommandClear,
	} {
		if trimmed == prefix {
			return Inbound{Command: cmd}
		}
		if strings.HasPrefix(trimmed, prefix+" ") {
			return Inbound{Command: cmd, Query: strings.TrimSpace(trimmed[len(prefix):])}
		}
	}
	return Inbound{Query: trimmed}
}

const lockStripes = 64

type Config struct {
	// MaxContextTurns bounds how many prior turns feed the synthesis prompt
	MaxContextTurns int
	// IdleTTL expires sessions that have been inactive longer than this.
	// Zero disables expiry.
	IdleTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxContextTurns: 5,
		IdleTTL:         24 * time.Hour,
	}
}

func (c *Config) Validate() error {
	if c.MaxContextTurns < 0 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "maxContextTurns must not be negative",
			goerr.V("maxContextTurns", c.MaxContextTurns))
	}
	if c.IdleTTL < 0 {
		return goerr.Wrap(types.ErrInvalidConfiguration, "idleTTL must not be negative",
			goerr.V("idleTTL", c.IdleTTL))
	}
	return nil
}

type Manager struct {
	store   interfaces.SessionRepository
	cfg     Config
	stripes [lockStripes]sync.Mutex

	now func() time.Time
}

func New(store interfaces.SessionRepository, cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}, nil
}

func (m *Manager) lock(id types.SessionID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id.String()))
	return &m.stripes[h.Sum32()%lockStripes]
}

// Resolve returns the session the query should run in, applying any
// control command first. A zero session ID always yields a fresh
// session. Expired sessions are swept on access and replaced.
func (m *Manager) Resolve(ctx context.Context, id types.SessionID, in Inbound) (*model.Session, error) {
	if id == "" || in.Command == CommandNew {
		return m.create(ctx)
	}

	mu := m.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := m.store.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return m.createLocked(ctx, id)
		}
		return nil, goerr.Wrap(err, "failed to load session", goerr.V("sessionID", id))
	}

	if session.ExpiredBy(m.now(), m.cfg.IdleTTL) {
		logging.From(ctx).Info("session expired, starting fresh", "session_id", id)
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, goerr.Wrap(err, "failed to sweep expired session", goerr.V("sessionID", id))
		}
		return m.createLocked(ctx, id)
	}

	switch in.Command {
	case CommandReset:
		session.Turns = nil
		session.LastActiveAt = m.now().UTC()
		if err := m.store.Put(ctx, session); err != nil {
			return nil, goerr.Wrap(err, "failed to reset session", goerr.V("sessionID", id))
		}
	case CommandClear:
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, goerr.Wrap(err, "failed to clear session", goerr.V("sessionID", id))
		}
		return m.createLocked(ctx, id)
	}

	return session, nil
}

func (m *Manager) create(ctx context.Context) (*model.Session, error) {
	id := types.NewSessionID()
	mu := m.lock(id)
	mu.Lock()
	defer mu.Unlock()
	return m.createLocked(ctx, id)
}

func (m *Manager) createLocked(ctx context.Context, id types.SessionID) (*model.Session, error) {
	session := model.NewSession(id)
	if err := m.store.Put(ctx, session); err != nil {
		return nil, goerr.Wrap(err, "failed to create session", goerr.V("sessionID", id))
	}
	return session, nil
}

// Record appends a completed exchange to the session's turn log. The
// session is re-read under the stripe lock so concurrent exchanges on
// the same session each land exactly once.
func (m *Manager) Record(ctx context.Context, id types.SessionID, query, answer string) error {
	mu := m.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := m.store.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			session = model.NewSession(id)
		} else {
			return goerr.Wrap(err, "failed to load session for record", goerr.V("sessionID", id))
		}
	}

	session.Append(query, answer)
	if err := m.store.Put(ctx, session); err != nil {
		return goerr.Wrap(err, "failed to store session turn", goerr.V("sessionID", id))
	}
	return nil
}

// Context returns the prior turns to include in the synthesis prompt,
// oldest first.
func (m *Manager) Context(session *model.Session) []model.Turn {
	if session == nil {
		return nil
	}
	return session.LastTurns(m.cfg.MaxContextTurns)
}

// List returns every stored session, most recently active first
func (m *Manager) List(ctx context.Context) ([]*model.Session, error) {
	return m.store.List(ctx)
}

// Sweep deletes every expired session. Intended for periodic cleanup.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	sessions, err := m.store.List(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list sessions for sweep")
	}

	now := m.now()
	swept := 0
	for _, session := range sessions {
		if !session.ExpiredBy(now, m.cfg.IdleTTL) {
			continue
		}
		mu := m.lock(session.ID)
		mu.Lock()
		err := m.store.Delete(ctx, session.ID)
		mu.Unlock()
		if err != nil {
			return swept, goerr.Wrap(err, "failed to delete expired session", goerr.V("sessionID", session.ID))
		}
		swept++
	}
	return swept, nil
}

func isNotFound(err error) bool {
	return goerr.HasTag(err, types.TagNotFound)
}
