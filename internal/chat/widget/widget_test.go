package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"coursemart/internal/chat/flow"
	"coursemart/internal/chat/sessions"
	"coursemart/internal/domain"
	"coursemart/internal/kv"
	"coursemart/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore serves history from what was saved unless history is set.
type stubStore struct {
	mu       sync.Mutex
	saved    []domain.TranscriptEntry
	ended    []string
	handoffs []string
	calls    []string
	history  []domain.ChatMessage
	fetchErr error
	saveErr  error
	// slow delays the save of messages with this text.
	slow map[string]time.Duration
}

func (s *stubStore) FetchMessages(_ context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil || s.history != nil {
		return s.history, s.fetchErr
	}
	var out []domain.ChatMessage
	for i, e := range s.saved {
		if e.SessionID == sessionID {
			out = append(out, domain.ChatMessage{ID: fmt.Sprintf("r%d", i), Role: e.Role, Text: e.Text, TS: e.TS})
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *stubStore) SaveMessage(_ context.Context, e domain.TranscriptEntry) (*domain.ChatMessage, error) {
	s.mu.Lock()
	d := s.slow[e.Text]
	s.mu.Unlock()
	time.Sleep(d)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "save:"+e.Text)
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.saved = append(s.saved, e)
	return &domain.ChatMessage{Role: e.Role, Text: e.Text, TS: e.TS}, nil
}

func (s *stubStore) EndSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "end")
	s.ended = append(s.ended, id)
	return nil
}

func (s *stubStore) CreateHandoff(_ context.Context, id, reason string) (*domain.Handoff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "handoff")
	s.handoffs = append(s.handoffs, id+"|"+reason)
	return &domain.Handoff{SessionID: id, Reason: reason}, nil
}

// append stores a message as if another widget instance had written it.
func (s *stubStore) append(e domain.TranscriptEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, e)
}

// queue holds scheduled callbacks until run is called.
type queue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *queue) schedule(_ time.Duration, fn func()) {
	q.mu.Lock()
	q.fns = append(q.fns, fn)
	q.mu.Unlock()
}

func (q *queue) run() {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type fixture struct {
	w     *Widget
	store *stubStore
	calls *sessions.Store
	kv    *kv.Memory
	q     *queue
}

func newFixture(t *testing.T, store *stubStore) *fixture {
	t.Helper()
	f := &fixture{store: store, calls: sessions.New(10, time.Hour), kv: kv.NewMemory(), q: &queue{}}
	f.w = f.build()
	return f
}

func (f *fixture) build() *Widget {
	var ids, sessionsSeq int
	var tsStore TranscriptStore
	if f.store != nil {
		tsStore = f.store
	}
	return New(context.Background(), flow.New(nil), f.calls, tsStore, f.kv, logging.Discard(), Options{
		UserID: "visitor-1",
		NewMessageID: func() string {
			ids++
			return fmt.Sprintf("m%d", ids)
		},
		NewSessionID: func() string {
			sessionsSeq++
			return fmt.Sprintf("s%d-%d", sessionsSeq, time.Now().UnixNano())
		},
		Schedule: f.q.schedule,
	})
}

func (f *fixture) send(t *testing.T, text string) {
	t.Helper()
	_, err := f.w.Send(context.Background(), text)
	require.NoError(t, err)
	f.q.run()
	f.w.Wait()
}

func TestNewStartsWithWelcome(t *testing.T) {
	f := newFixture(t, &stubStore{})
	v := f.w.View()
	require.Len(t, v.Messages, 1)
	assert.Equal(t, domain.RoleBot, v.Messages[0].Role)
	assert.Equal(t, flow.WelcomeReply, v.Messages[0].Text)
	assert.Equal(t, "visitor-1", v.UserID)
	assert.NotEmpty(t, v.SessionID)
	assert.False(t, v.Open)
	assert.Zero(t, v.Unread)
}

func TestSendRejectsEmpty(t *testing.T) {
	f := newFixture(t, &stubStore{})
	_, err := f.w.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendRepliesAfterDelay(t *testing.T) {
	f := newFixture(t, &stubStore{})
	ctx := context.Background()

	msg, err := f.w.Send(ctx, "what is the refund policy")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, msg.Role)
	assert.Len(t, f.w.View().Messages, 2)

	f.q.run()
	f.w.Wait()

	v := f.w.View()
	require.Len(t, v.Messages, 3)
	assert.Equal(t, domain.RoleBot, v.Messages[2].Role)
	assert.Contains(t, v.Messages[2].Text, "refund")

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	require.Len(t, f.store.saved, 2)
	assert.Empty(t, f.store.handoffs)
	for _, e := range f.store.saved {
		assert.Equal(t, v.SessionID, e.SessionID)
		assert.Equal(t, "visitor-1", e.UserID)
	}
}

func TestTimestampsNonDecreasing(t *testing.T) {
	f := newFixture(t, &stubStore{})
	f.send(t, "hello")
	f.send(t, "courses")
	msgs := f.w.View().Messages
	for i := 1; i < len(msgs); i++ {
		assert.GreaterOrEqual(t, msgs[i].TS, msgs[i-1].TS)
	}
}

func TestCallFlowCreatesHandoff(t *testing.T) {
	f := newFixture(t, &stubStore{})

	f.send(t, "talk to agent")
	assert.Equal(t, domain.StepAwaitingLanguage, f.calls.Get("visitor-1").Step)
	f.send(t, "Hindi")
	f.send(t, "+91 98765 43210")

	st := f.calls.Get("visitor-1")
	assert.Equal(t, domain.StepIdle, st.Step)
	assert.Equal(t, "+919876543210", st.Number)

	msgs := f.w.View().Messages
	last := msgs[len(msgs)-1]
	assert.Contains(t, last.Text, "Hindi")
	assert.Contains(t, last.Text, "+919876543210")

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	require.Len(t, f.store.handoffs, 2)
	assert.Contains(t, f.store.handoffs[1], "+919876543210")
}

func TestEndChatRotatesSession(t *testing.T) {
	f := newFixture(t, &stubStore{})
	ctx := context.Background()
	f.send(t, "talk to agent")
	before := f.w.View()

	_, err := f.w.Send(ctx, "end chat")
	require.NoError(t, err)

	mid := f.w.View()
	require.Len(t, mid.Messages, len(before.Messages)+2)
	assert.Equal(t, domain.RoleUser, mid.Messages[len(mid.Messages)-2].Role)
	assert.Equal(t, flow.EndedReply, mid.Messages[len(mid.Messages)-1].Text)
	assert.Equal(t, before.SessionID, mid.SessionID)

	f.q.run()
	f.w.Wait()

	after := f.w.View()
	require.Len(t, after.Messages, 1)
	assert.Equal(t, flow.WelcomeReply, after.Messages[0].Text)
	assert.NotEqual(t, before.SessionID, after.SessionID)
	assert.Equal(t, domain.StepIdle, f.calls.Get("visitor-1").Step)

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	assert.Equal(t, []string{before.SessionID}, f.store.ended)
	var endedSaves int
	for _, e := range f.store.saved {
		if e.SessionID == before.SessionID && (e.Text == "end chat" || e.Text == flow.EndedReply) {
			endedSaves++
		}
	}
	assert.Equal(t, 2, endedSaves)
}

func TestUnreadCounter(t *testing.T) {
	f := newFixture(t, &stubStore{})
	ctx := context.Background()

	f.send(t, "hello")
	f.send(t, "courses")
	assert.Equal(t, 2, f.w.View().Unread)

	v := f.w.Open(ctx)
	assert.True(t, v.Open)
	assert.Zero(t, v.Unread)

	f.send(t, "fees")
	assert.Zero(t, f.w.View().Unread)

	f.w.Close(ctx)
	f.send(t, "thanks")
	assert.Equal(t, 1, f.w.View().Unread)
}

func TestOpenReloadsHistory(t *testing.T) {
	store := &stubStore{}
	f := newFixture(t, store)
	f.send(t, "hello")
	local := f.w.View()
	require.Len(t, local.Messages, 3)

	store.append(domain.TranscriptEntry{
		SessionID: local.SessionID,
		UserID:    "visitor-1",
		Role:      domain.RoleBot,
		Text:      "reply from an earlier instance",
		TS:        local.Messages[2].TS + 1,
	})

	v := f.w.Open(context.Background())

	require.Len(t, v.Messages, 4)
	assert.Equal(t, flow.WelcomeReply, v.Messages[0].Text)
	assert.Equal(t, "hello", v.Messages[1].Text)
	assert.Equal(t, local.Messages[2].Text, v.Messages[2].Text)
	assert.Equal(t, "reply from an earlier instance", v.Messages[3].Text)

	// The reloaded transcript is what the next restore sees.
	assert.Equal(t, v.Messages, f.build().View().Messages)
}

func TestOpenWithNothingNewKeepsTranscript(t *testing.T) {
	f := newFixture(t, &stubStore{})
	f.send(t, "hello")
	before := f.w.View().Messages

	after := f.w.Open(context.Background()).Messages

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Role, after[i].Role)
		assert.Equal(t, before[i].Text, after[i].Text)
	}
}

func TestStoreCallsRunInOrder(t *testing.T) {
	store := &stubStore{slow: map[string]time.Duration{"end chat": 30 * time.Millisecond}}
	f := newFixture(t, store)

	f.send(t, "end chat")

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, []string{"save:end chat", "save:" + flow.EndedReply, "end"}, store.calls)
}

func TestOpenKeepsLocalWhenRemoteLags(t *testing.T) {
	store := &stubStore{}
	f := newFixture(t, store)
	f.send(t, "hello")
	store.history = []domain.ChatMessage{{ID: "r1", Role: domain.RoleUser, Text: "hello", TS: 1}}

	v := f.w.Open(context.Background())
	assert.Len(t, v.Messages, 3)
}

func TestStoreFailuresDoNotBlockFlow(t *testing.T) {
	store := &stubStore{saveErr: errors.New("down"), fetchErr: errors.New("down")}
	f := newFixture(t, store)

	f.send(t, "hello")
	v := f.w.Open(context.Background())

	assert.Len(t, v.Messages, 3)
}

func TestWorksWithoutTranscriptStore(t *testing.T) {
	f := newFixture(t, nil)
	f.send(t, "hello")
	assert.Len(t, f.w.Open(context.Background()).Messages, 3)
}

func TestRehydratesFromStorage(t *testing.T) {
	f := newFixture(t, &stubStore{})
	f.send(t, "hello")
	f.w.Open(context.Background())
	before := f.w.View()

	restored := f.build()
	after := restored.View()

	assert.Equal(t, before.SessionID, after.SessionID)
	assert.Equal(t, before.Messages, after.Messages)
	assert.True(t, after.Open)
}

func TestCorruptTranscriptFallsBackToWelcome(t *testing.T) {
	f := newFixture(t, &stubStore{})
	require.NoError(t, f.kv.Set(context.Background(), keyTranscript, "[oops"))

	v := f.build().View()
	require.Len(t, v.Messages, 1)
	assert.Equal(t, flow.WelcomeReply, v.Messages[0].Text)
}
