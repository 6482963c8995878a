// Package carts holds the two cart implementations (session and persistent),
// the merge that folds one into the other at login, and the registry that
// picks the right one for a caller.
package carts

import (
	"context"
	"sync"
)

// Cart is implemented by SessionCart and PersistentCart. Mutations on one
// instance are serialized; readers get copies.
type Cart interface {
	Owner() string
	Lines() []Line
	Refresh(ctx context.Context) error
	Add(ctx context.Context, p Product, s Service, qty int) error
	SetQuantity(ctx context.Context, lineID string, qty int) error
	Remove(ctx context.Context, lineID string) error
	Clear(ctx context.Context) error
	Subscribe(fn Listener) (cancel func())
}

// Listener receives the owner and a copy of the lines after every change.
type Listener func(owner string, lines []Line)

// Identity is what the upstream auth layer tells us about a caller.
type Identity struct {
	UserID    string
	SessionID string
}

func (i Identity) Authenticated() bool { return i.UserID != "" }

func sessionOwner(sessionID string) string { return "session:" + sessionID }
func userOwner(userID string) string { return "user:" + userID }

type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]Listener
}

func (b *broadcaster) subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = map[int]Listener{}
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *broadcaster) publish(owner string, lines []Line) {
	b.mu.Lock()
	fns := make([]Listener, 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(owner, cloneLines(lines))
	}
}
