// Package cart owns the shopping cart: ordered line items, derived totals and
// a mirror of both in durable key-value storage.
package cart

import (
	"context"
	"encoding/json"
	"math"
	"sync"

	"coursemart/internal/domain"
	"coursemart/internal/kv"
	"coursemart/internal/notify"
	"github.com/sirupsen/logrus"
)

// StorageKey is the kv key the cart is persisted under.
const StorageKey = "cart"

// TaxRate applied on top of the subtotal.
const TaxRate = 0.10

type persisted struct {
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"totalItems"`
	TotalPrice float64           `json:"totalPrice"`
}

type Manager struct {
	mu        sync.Mutex
	store     kv.Store
	notifier  notify.Notifier
	logger    logrus.FieldLogger
	items     []domain.CartItem
	open      bool
	lastAdded string
}

// New builds a manager and rehydrates it from store. An unreadable or corrupt
// payload leaves the cart empty.
func New(ctx context.Context, store kv.Store, notifier notify.Notifier, logger logrus.FieldLogger) *Manager {
	if notifier == nil {
		notifier = notify.Multi()
	}
	m := &Manager{
		store:    store,
		notifier: notifier,
		logger:   logger.WithField("component", "cart"),
	}
	m.rehydrate(ctx)
	return m
}

func (m *Manager) rehydrate(ctx context.Context) {
	raw, ok, err := m.store.Get(ctx, StorageKey)
	if err != nil {
		m.logger.WithError(err).Warn("cart rehydrate: read failed")
		return
	}
	if !ok {
		return
	}
	var p persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		m.logger.WithError(err).Warn("cart rehydrate: corrupt payload ignored")
		return
	}
	seen := make(map[string]struct{}, len(p.Items))
	for _, it := range p.Items {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		m.items = append(m.items, it)
	}
}

// Add appends item unless an item with the same id is already present.
// The success notification fires either way.
func (m *Manager) Add(ctx context.Context, item domain.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastAdded = item.ID
	if m.indexOf(item.ID) >= 0 {
		m.notifier.Notify(notify.KindSuccess, item.Title+" is already in your cart")
		return
	}
	m.items = append(m.items, item)
	m.open = true
	m.persist(ctx)
	m.notifier.Notify(notify.KindSuccess, item.Title+" added to cart")
}

// Remove drops the item with id; unknown ids are ignored.
func (m *Manager) Remove(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexOf(id); i >= 0 {
		next := make([]domain.CartItem, 0, len(m.items)-1)
		next = append(next, m.items[:i]...)
		m.items = append(next, m.items[i+1:]...)
		m.persist(ctx)
	}
	m.notifier.Notify(notify.KindInfo, "Item removed from cart")
}

func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = nil
	m.open = false
	m.lastAdded = ""
	m.persist(ctx)
	m.notifier.Notify(notify.KindSuccess, "Cart cleared")
}

// ToggleOpen flips the visibility flag and returns the new value.
func (m *Manager) ToggleOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = !m.open
	return m.open
}

func (m *Manager) IsInCart(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexOf(id) >= 0
}

// LastAdded is the id most recently passed to Add.
func (m *Manager) LastAdded() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAdded
}

func (m *Manager) State() domain.CartState {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.CartItem, len(m.items))
	copy(items, m.items)
	return domain.CartState{
		Items:      items,
		TotalItems: len(items),
		TotalPrice: totalOf(items),
		IsCartOpen: m.open,
	}
}

func (m *Manager) Summary() domain.CartSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Summarize(m.items)
}

// Summarize derives subtotal, tax and total for items.
func Summarize(items []domain.CartItem) domain.CartSummary {
	subtotal := totalOf(items)
	tax := math.Round(subtotal * TaxRate)
	return domain.CartSummary{Subtotal: subtotal, Tax: tax, Total: subtotal + tax}
}

func totalOf(items []domain.CartItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Price
	}
	return sum
}

func (m *Manager) indexOf(id string) int {
	for i, it := range m.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// persist is best-effort; failures are logged and the in-memory state wins.
func (m *Manager) persist(ctx context.Context) {
	items := m.items
	if items == nil {
		items = []domain.CartItem{}
	}
	payload, err := json.Marshal(persisted{Items: items, TotalItems: len(items), TotalPrice: totalOf(items)})
	if err != nil {
		m.logger.WithError(err).Error("cart persist: encode failed")
		return
	}
	if err := m.store.Set(ctx, StorageKey, string(payload)); err != nil {
		m.logger.WithError(err).Warn("cart persist: write failed")
	}
}
