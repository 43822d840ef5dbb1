package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/athenaeum-lab/mnemosyne/pkg/repository/memory"
	"github.com/m-mizutani/gt"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		command Command
		query   string
	}{
		{"plain query", "what is the policy?", CommandNone, "what is the policy?"},
		{"new without query", "/new", CommandNew, ""},
		{"new with query", "/new what changed?", CommandNew, "what changed?"},
		{"reset", "/reset", CommandReset, ""},
		{"clear", "/clear", CommandClear, ""},
		{"command mid-sentence ignored", "please /reset this", CommandNone, "please /reset this"},
		{"leading whitespace", "  /new  hello ", CommandNew, "hello"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := Parse(tc.input)
			gt.Value(t, in.Command).Equal(tc.command)
			gt.Value(t, in.Query).Equal(tc.query)
		})
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(memory.New().Session(), DefaultConfig())
	gt.NoError(t, err)
	return m
}

func TestResolveCreatesFreshSession(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	session, err := m.Resolve(ctx, "", Parse("hello"))
	gt.NoError(t, err)
	gt.True(t, session.ID != "")
	gt.Array(t, session.Turns).Length(0)
}

func TestResolveContinuesExistingSession(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	first := gt.R1(m.Resolve(ctx, "", Parse("hello"))).NoError(t)
	gt.NoError(t, m.Record(ctx, first.ID, "hello", "hi there"))

	second := gt.R1(m.Resolve(ctx, first.ID, Parse("and then?"))).NoError(t)
	gt.Value(t, second.ID).Equal(first.ID)
	gt.Array(t, second.Turns).Length(1)
	gt.Value(t, second.Turns[0].Query).Equal("hello")
}

func TestResolveNewCommandAbandonsSession(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	first := gt.R1(m.Resolve(ctx, "", Parse("hello"))).NoError(t)
	gt.NoError(t, m.Record(ctx, first.ID, "hello", "hi"))

	fresh := gt.R1(m.Resolve(ctx, first.ID, Parse("/new different topic"))).NoError(t)
	gt.True(t, fresh.ID != first.ID)
	gt.Array(t, fresh.Turns).Length(0)
}

func TestResolveResetKeepsIDDropsTurns(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	first := gt.R1(m.Resolve(ctx, "", Parse("hello"))).NoError(t)
	gt.NoError(t, m.Record(ctx, first.ID, "hello", "hi"))

	reset := gt.R1(m.Resolve(ctx, first.ID, Parse("/reset"))).NoError(t)
	gt.Value(t, reset.ID).Equal(first.ID)
	gt.Array(t, reset.Turns).Length(0)
}

func TestResolveExpiredSessionIsSwept(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	first := gt.R1(m.Resolve(ctx, "", Parse("hello"))).NoError(t)
	gt.NoError(t, m.Record(ctx, first.ID, "hello", "hi"))

	m.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	revived := gt.R1(m.Resolve(ctx, first.ID, Parse("still there?"))).NoError(t)
	gt.Value(t, revived.ID).Equal(first.ID)
	gt.Array(t, revived.Turns).Length(0)
}

func TestRecordConcurrentTurnsBothLand(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	session := gt.R1(m.Resolve(ctx, "", Parse("hello"))).NoError(t)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			query := "query"
			if n == 1 {
				query = "other query"
			}
			if err := m.Record(ctx, session.ID, query, "answer"); err != nil {
				t.Errorf("record failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	final := gt.R1(m.Resolve(ctx, session.ID, Parse("done"))).NoError(t)
	gt.Array(t, final.Turns).Length(2)
}

func TestContextReturnsLastTurnsOldestFirst(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MaxContextTurns = 2
	m := gt.R1(New(memory.New().Session(), cfg)).NoError(t)

	session := gt.R1(m.Resolve(ctx, "", Parse("hello"))).NoError(t)
	for _, q := range []string{"one", "two", "three"} {
		gt.NoError(t, m.Record(ctx, session.ID, q, "answer to "+q))
	}

	loaded := gt.R1(m.Resolve(ctx, session.ID, Parse("next"))).NoError(t)
	turns := m.Context(loaded)
	gt.Array(t, turns).Length(2)
	gt.Value(t, turns[0].Query).Equal("two")
	gt.Value(t, turns[1].Query).Equal("three")
}

func TestSweepDeletesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	store := memory.New().Session()
	m := gt.R1(New(store, DefaultConfig())).NoError(t)

	stale := gt.R1(m.Resolve(ctx, "", Parse("old"))).NoError(t)
	stale.LastActiveAt = time.Now().Add(-25 * time.Hour)
	gt.NoError(t, store.Put(ctx, stale))

	fresh := gt.R1(m.Resolve(ctx, "", Parse("new"))).NoError(t)
	gt.NoError(t, m.Record(ctx, fresh.ID, "new", "answer"))

	swept := gt.R1(m.Sweep(ctx)).NoError(t)
	gt.Value(t, swept).Equal(1)

	_, err := store.Get(ctx, stale.ID)
	gt.Error(t, err)
	_ = gt.R1(store.Get(ctx, fresh.ID)).NoError(t)
}

func TestResolveUnknownIDCreatesWithThatID(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	id := types.NewSessionID()
	session := gt.R1(m.Resolve(ctx, id, Parse("hello"))).NoError(t)
	gt.Value(t, session.ID).Equal(id)
}
