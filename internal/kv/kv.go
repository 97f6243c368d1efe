// Package kv provides the durable key-value storage the cart and chat widget
// mirror their state into.
package kv

import "context"

// Store is a string key-value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

type scoped struct {
	prefix string
	inner  Store
}

// Scoped namespaces every key of inner under prefix.
func Scoped(inner Store, prefix string) Store {
	return &scoped{prefix: prefix + ":", inner: inner}
}

func (s *scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}
