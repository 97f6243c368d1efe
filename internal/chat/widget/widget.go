// Package widget orchestrates one visitor's live chat: local transcript,
// delayed bot replies from the flow engine, session rotation and best-effort
// persistence to the transcript store.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"coursemart/internal/chat/flow"
	"coursemart/internal/domain"
	"coursemart/internal/kv"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

var ErrEmptyMessage = errors.New("message is empty")

const (
	keyTranscript = "chat:transcript"
	keyMinimized  = "chat:minimized"
	keyUserID     = "chat:user_id"
	keySessionID  = "chat:session_id"
)

// TranscriptStore is the remote record of every session.
type TranscriptStore interface {
	FetchMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
	SaveMessage(ctx context.Context, entry domain.TranscriptEntry) (*domain.ChatMessage, error)
	EndSession(ctx context.Context, sessionID string) error
	CreateHandoff(ctx context.Context, sessionID, reason string) (*domain.Handoff, error)
}

// CallStore holds call-flow state per user id.
type CallStore interface {
	Get(userID string) domain.CallFlowState
	Put(userID string, st domain.CallFlowState)
	Reset(userID string)
}

type Options struct {
	// UserID overrides whatever user id is stored.
	UserID         string
	ReplyDelay     time.Duration
	ResetDelay     time.Duration
	PersistTimeout time.Duration
	HistoryLimit   int

	Now          func() time.Time
	NewMessageID func() string
	NewSessionID func() string
	// Schedule runs fn after d. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, fn func())
}

func (o *Options) setDefaults() {
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 8 * time.Second
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewMessageID == nil {
		o.NewMessageID = func() string { return ulid.Make().String() }
	}
	if o.NewSessionID == nil {
		o.NewSessionID = uuid.NewString
	}
	if o.Schedule == nil {
		o.Schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
}

// View is a snapshot of the widget for rendering.
type View struct {
	UserID    string               `json:"userId"`
	SessionID string               `json:"sessionId"`
	Messages  []domain.ChatMessage `json:"messages"`
	Open      bool                 `json:"open"`
	Unread    int                  `json:"unread"`
}

type Widget struct {
	engine *flow.Engine
	calls  CallStore
	store  TranscriptStore
	kv     kv.Store
	logger logrus.FieldLogger
	opts   Options

	mu        sync.Mutex
	userID    string
	sessionID string
	messages  []domain.ChatMessage
	open      bool
	unread    int

	bg sync.WaitGroup

	// Transcript store calls run one at a time, in submission order.
	qmu      sync.Mutex
	queue    []storeCall
	draining bool
}

type storeCall struct {
	op string
	fn func(ctx context.Context) error
}

// New restores a widget from kvStore. store may be nil, in which case nothing
// is persisted remotely.
func New(ctx context.Context, engine *flow.Engine, calls CallStore, store TranscriptStore, kvStore kv.Store, logger logrus.FieldLogger, opts Options) *Widget {
	opts.setDefaults()
	w := &Widget{
		engine: engine,
		calls:  calls,
		store:  store,
		kv:     kvStore,
		logger: logger.WithField("component", "chat"),
		opts:   opts,
	}
	w.rehydrate(ctx)
	return w
}

func (w *Widget) rehydrate(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.userID = w.opts.UserID
	if w.userID == "" {
		w.userID = w.read(ctx, keyUserID)
	}
	if w.userID == "" {
		w.userID = uuid.NewString()
	}
	w.sessionID = w.read(ctx, keySessionID)
	if w.sessionID == "" {
		w.sessionID = w.opts.NewSessionID()
	}
	if raw := w.read(ctx, keyTranscript); raw != "" {
		var msgs []domain.ChatMessage
		if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
			w.logger.WithError(err).Warn("chat rehydrate: corrupt transcript ignored")
		} else {
			w.messages = msgs
		}
	}
	if len(w.messages) == 0 {
		w.messages = []domain.ChatMessage{w.welcomeLocked()}
	}
	if minimized, err := strconv.ParseBool(w.read(ctx, keyMinimized)); err == nil {
		w.open = !minimized
	}
	w.saveLocked(ctx)
}

func (w *Widget) read(ctx context.Context, key string) string {
	v, ok, err := w.kv.Get(ctx, key)
	if err != nil {
		w.logger.WithError(err).WithField("key", key).Warn("chat rehydrate: read failed")
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// Send appends the user's message and schedules the bot's answer. An end
// command is answered immediately and rotates the session after ResetDelay.
func (w *Widget) Send(ctx context.Context, text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}

	w.mu.Lock()
	sessionID := w.sessionID
	userMsg := w.appendLocked(domain.RoleUser, text)
	if flow.IsEndCommand(text) {
		ended := w.appendLocked(domain.RoleBot, flow.EndedReply)
		w.saveLocked(ctx)
		w.mu.Unlock()

		w.persist(sessionID, userMsg)
		w.persist(sessionID, ended)
		w.later(w.opts.ResetDelay, func() { w.rotate(sessionID) })
		return userMsg, nil
	}
	w.saveLocked(ctx)
	w.mu.Unlock()

	w.persist(sessionID, userMsg)
	w.later(w.opts.ReplyDelay, func() { w.reply(text) })
	return userMsg, nil
}

func (w *Widget) reply(text string) {
	ctx := context.Background()

	w.mu.Lock()
	userID, sessionID := w.userID, w.sessionID
	res := w.engine.Reply(text, w.calls.Get(userID))
	w.calls.Put(userID, res.State)
	msg := w.appendLocked(domain.RoleBot, res.Reply)
	w.saveLocked(ctx)
	w.mu.Unlock()

	w.persist(sessionID, msg)
	for _, eff := range res.Effects {
		switch eff.Kind {
		case flow.EffectHandoff:
			reason := eff.Reason
			w.background("create handoff", func(ctx context.Context) error {
				_, err := w.store.CreateHandoff(ctx, sessionID, reason)
				return err
			})
		case flow.EffectCallbackRequested:
			w.logger.WithFields(logrus.Fields{
				"user_id":    userID,
				"session_id": sessionID,
				"language":   eff.Language,
			}).Info("callback requested")
		}
	}
}

// rotate resets the transcript and call flow and starts a new session, unless
// the session already moved on.
func (w *Widget) rotate(ended string) {
	ctx := context.Background()

	w.mu.Lock()
	if w.sessionID != ended {
		w.mu.Unlock()
		return
	}
	w.messages = []domain.ChatMessage{w.welcomeLocked()}
	w.calls.Reset(w.userID)
	w.sessionID = w.opts.NewSessionID()
	w.saveLocked(ctx)
	w.mu.Unlock()

	w.background("end session", func(ctx context.Context) error {
		return w.store.EndSession(ctx, ended)
	})
}

// Open shows the widget, clears the unread count and reloads the session
// history from the transcript store. The welcome message is never stored
// remotely, so it is kept in front of the reloaded history. The remote copy
// only wins when it holds at least every stored local message, so saves
// still in flight are not lost.
func (w *Widget) Open(ctx context.Context) View {
	w.mu.Lock()
	w.open = true
	w.unread = 0
	sessionID := w.sessionID
	w.saveLocked(ctx)
	w.mu.Unlock()

	if w.store != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, w.opts.PersistTimeout)
		history, err := w.store.FetchMessages(fetchCtx, sessionID, w.opts.HistoryLimit)
		cancel()
		if err != nil {
			w.logger.WithError(err).WithField("session_id", sessionID).Debug("chat history fetch failed")
		} else if len(history) > 0 {
			w.mu.Lock()
			if w.sessionID == sessionID {
				if merged, ok := mergeHistory(w.messages, history); ok {
					w.messages = merged
					w.saveLocked(ctx)
				}
			}
			w.mu.Unlock()
		}
	}
	return w.View()
}

// mergeHistory returns the transcript to show after a reload, or false when
// the local one should stay.
func mergeHistory(local, remote []domain.ChatMessage) ([]domain.ChatMessage, bool) {
	var head []domain.ChatMessage
	if len(local) > 0 && isWelcome(local[0]) && !isWelcome(remote[0]) {
		head = local[:1]
	}
	if len(remote) < len(local)-len(head) {
		return nil, false
	}
	merged := make([]domain.ChatMessage, 0, len(head)+len(remote))
	merged = append(merged, head...)
	return append(merged, remote...), true
}

func isWelcome(m domain.ChatMessage) bool {
	return m.Role == domain.RoleBot && m.Text == flow.WelcomeReply
}

func (w *Widget) Close(ctx context.Context) View {
	w.mu.Lock()
	w.open = false
	w.saveLocked(ctx)
	w.mu.Unlock()
	return w.View()
}

func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	msgs := make([]domain.ChatMessage, len(w.messages))
	copy(msgs, w.messages)
	return View{
		UserID:    w.userID,
		SessionID: w.sessionID,
		Messages:  msgs,
		Open:      w.open,
		Unread:    w.unread,
	}
}

// Wait blocks until scheduled replies and background persistence finish.
func (w *Widget) Wait() {
	w.bg.Wait()
}

func (w *Widget) welcomeLocked() domain.ChatMessage {
	return domain.ChatMessage{
		ID:   w.opts.NewMessageID(),
		Role: domain.RoleBot,
		Text: flow.WelcomeReply,
		TS:   w.opts.Now().UnixMilli(),
	}
}

func (w *Widget) appendLocked(role domain.Role, text string) domain.ChatMessage {
	ts := w.opts.Now().UnixMilli()
	if n := len(w.messages); n > 0 && ts < w.messages[n-1].TS {
		ts = w.messages[n-1].TS
	}
	msg := domain.ChatMessage{ID: w.opts.NewMessageID(), Role: role, Text: text, TS: ts}
	w.messages = append(w.messages, msg)
	if role == domain.RoleBot && !w.open {
		w.unread++
	}
	return msg
}

func (w *Widget) saveLocked(ctx context.Context) {
	transcript, err := json.Marshal(w.messages)
	if err != nil {
		w.logger.WithError(err).Error("chat save: encode transcript")
		return
	}
	values := [][2]string{
		{keyTranscript, string(transcript)},
		{keyMinimized, strconv.FormatBool(!w.open)},
		{keyUserID, w.userID},
		{keySessionID, w.sessionID},
	}
	for _, kvp := range values {
		if err := w.kv.Set(ctx, kvp[0], kvp[1]); err != nil {
			w.logger.WithError(err).WithField("key", kvp[0]).Warn("chat save: write failed")
		}
	}
}

func (w *Widget) persist(sessionID string, msg domain.ChatMessage) {
	userID := w.userID
	w.background("save message", func(ctx context.Context) error {
		_, err := w.store.SaveMessage(ctx, domain.TranscriptEntry{
			SessionID: sessionID,
			UserID:    userID,
			Role:      msg.Role,
			Text:      msg.Text,
			TS:        msg.TS,
		})
		return err
	})
}

func (w *Widget) later(d time.Duration, fn func()) {
	w.bg.Add(1)
	w.opts.Schedule(d, func() {
		defer w.bg.Done()
		fn()
	})
}

// background queues fn against the transcript store with a bounded timeout.
// Calls run in the order they were queued. Failures are logged and otherwise
// ignored.
func (w *Widget) background(op string, fn func(ctx context.Context) error) {
	if w.store == nil {
		return
	}
	w.bg.Add(1)
	w.qmu.Lock()
	w.queue = append(w.queue, storeCall{op: op, fn: fn})
	if w.draining {
		w.qmu.Unlock()
		return
	}
	w.draining = true
	w.qmu.Unlock()
	go w.drain()
}

func (w *Widget) drain() {
	for {
		w.qmu.Lock()
		if len(w.queue) == 0 {
			w.draining = false
			w.qmu.Unlock()
			return
		}
		call := w.queue[0]
		w.queue = w.queue[1:]
		w.qmu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), w.opts.PersistTimeout)
		if err := call.fn(ctx); err != nil {
			w.logger.WithError(err).WithField("op", call.op).Warn("transcript store call failed")
		}
		cancel()
		w.bg.Done()
	}
}
