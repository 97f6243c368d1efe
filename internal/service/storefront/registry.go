// Package storefront keeps the live per-visitor cart managers and chat
// widgets. Both are built lazily from the visitor's slice of the kv store and
// evicted after a period of inactivity; the next request rebuilds them from
// storage.
package storefront

import (
	"context"
	"sync"
	"time"

	"coursemart/internal/cart"
	"coursemart/internal/chat/flow"
	"coursemart/internal/chat/widget"
	"coursemart/internal/kv"
	"coursemart/internal/notify"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

const (
	defaultTTL        = 2 * time.Hour
	defaultMaxEntries = 5000
	defaultInboxSize  = 20
)

type Options struct {
	TTL        time.Duration
	MaxEntries int
	InboxSize  int
	// Widget is the template for every widget; UserID is always replaced by
	// the visitor id.
	Widget widget.Options
}

// CartEntry pairs a visitor's cart with the notifications it raised that have
// not been delivered yet.
type CartEntry struct {
	Manager *cart.Manager
	Inbox   *notify.Inbox
}

type Registry struct {
	store       kv.Store
	engine      *flow.Engine
	calls       widget.CallStore
	transcripts widget.TranscriptStore
	logger      logrus.FieldLogger
	opts        Options

	mu      sync.Mutex
	carts   *expirable.LRU[string, *CartEntry]
	widgets *expirable.LRU[string, *widget.Widget]

	// retired holds evicted widgets until their pending replies and writes
	// finish, keyed by visitor id.
	retiredMu sync.Mutex
	retired   map[string]*widget.Widget
}

// New builds a registry. transcripts may be nil.
func New(store kv.Store, engine *flow.Engine, calls widget.CallStore, transcripts widget.TranscriptStore, logger logrus.FieldLogger, opts Options) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	logger = logger.WithField("component", "storefront")
	r := &Registry{
		store:       store,
		engine:      engine,
		calls:       calls,
		transcripts: transcripts,
		logger:      logger,
		opts:        opts,
		retired:     make(map[string]*widget.Widget),
	}
	r.carts = expirable.NewLRU[string, *CartEntry](opts.MaxEntries, func(visitorID string, _ *CartEntry) {
		logger.WithField("visitor_id", visitorID).Debug("cart evicted")
	}, opts.TTL)
	r.widgets = expirable.NewLRU[string, *widget.Widget](opts.MaxEntries, r.retire, opts.TTL)
	return r
}

// Cart returns the visitor's cart, restoring it from storage on first use.
func (r *Registry) Cart(ctx context.Context, visitorID string) *CartEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.carts.Get(visitorID); ok {
		return entry
	}
	log := r.logger.WithField("visitor_id", visitorID)
	inbox := notify.NewInbox(r.opts.InboxSize)
	entry := &CartEntry{
		Manager: cart.New(ctx, r.scoped(visitorID), notify.Multi(inbox, notify.NewLogNotifier(log)), log),
		Inbox:   inbox,
	}
	r.carts.Add(visitorID, entry)
	return entry
}

// Widget returns the visitor's chat widget, restoring it from storage on
// first use. The visitor id doubles as the chat user id. When the visitor's
// previous widget was evicted with work still pending, the rebuild waits for
// it so the restored transcript includes that work.
func (r *Registry) Widget(ctx context.Context, visitorID string) *widget.Widget {
	r.mu.Lock()
	if w, ok := r.widgets.Get(visitorID); ok {
		r.mu.Unlock()
		return w
	}
	r.mu.Unlock()

	r.retiredMu.Lock()
	prev := r.retired[visitorID]
	r.retiredMu.Unlock()
	if prev != nil {
		prev.Wait()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.widgets.Get(visitorID); ok {
		return w
	}
	opts := r.opts.Widget
	opts.UserID = visitorID
	w := widget.New(ctx, r.engine, r.calls, r.transcripts, r.scoped(visitorID), r.logger.WithField("visitor_id", visitorID), opts)
	r.widgets.Add(visitorID, w)
	return w
}

// retire runs on eviction. The widget stays reachable through retired until
// its background work is done.
func (r *Registry) retire(visitorID string, w *widget.Widget) {
	r.logger.WithField("visitor_id", visitorID).Debug("chat widget evicted")
	r.retiredMu.Lock()
	r.retired[visitorID] = w
	r.retiredMu.Unlock()

	go func() {
		w.Wait()
		r.retiredMu.Lock()
		if r.retired[visitorID] == w {
			delete(r.retired, visitorID)
		}
		r.retiredMu.Unlock()
	}()
}

// Wait blocks until every cached or recently evicted widget has finished its
// pending replies and transcript writes.
func (r *Registry) Wait() {
	widgets := r.widgets.Values()
	r.retiredMu.Lock()
	for _, w := range r.retired {
		widgets = append(widgets, w)
	}
	r.retiredMu.Unlock()
	for _, w := range widgets {
		w.Wait()
	}
}

func (r *Registry) Len() (carts, widgets int) {
	return r.carts.Len(), r.widgets.Len()
}

func (r *Registry) scoped(visitorID string) kv.Store {
	return kv.Scoped(r.store, visitorID)
}
