// Package sessions keeps per-user call-flow state with bounded size and TTL.
package sessions

import (
	"time"

	"coursemart/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultMaxEntries = 10000
	DefaultTTL        = 24 * time.Hour
)

// Store is keyed by user id. Entries idle longer than the TTL, or pushed out
// by newer users once the size bound is hit, fall back to the idle state.
type Store struct {
	lru *expirable.LRU[string, domain.CallFlowState]
}

func New(maxEntries int, ttl time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{lru: expirable.NewLRU[string, domain.CallFlowState](maxEntries, nil, ttl)}
}

// Get returns the stored state or the zero (idle) state.
func (s *Store) Get(userID string) domain.CallFlowState {
	st, _ := s.lru.Get(userID)
	return st
}

func (s *Store) Put(userID string, st domain.CallFlowState) {
	s.lru.Add(userID, st)
}

// Reset discards any in-progress dialogue for userID.
func (s *Store) Reset(userID string) {
	s.lru.Remove(userID)
}

func (s *Store) Len() int {
	return s.lru.Len()
}
