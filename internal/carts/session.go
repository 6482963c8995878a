package carts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/redisx"
	"go.uber.org/zap"
)

// BlobStorage keeps one serialized cart per key. Load returns nil, nil when
// the key is absent.
type BlobStorage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
}

const (
	sessionLockTTL  = 5 * time.Second
	sessionLockPoll = 20 * time.Millisecond
)

// SessionCart is the cart of a visitor who has not logged in. Every mutation
// re-reads the stored list under the session lock and writes the whole list
// back, so replicas serving the same session do not overwrite each other.
type SessionCart struct {
	sessionID string
	storage   BlobStorage
	locker    Locker
	log       *zap.Logger
	now       func() time.Time

	mu    sync.Mutex // writer
	snap  sync.RWMutex
	lines []Line
	subs  broadcaster
}

// OpenSession loads the stored cart. An unreadable blob is dropped and the
// visitor starts with an empty cart. locker may be nil when only one process
// serves the session.
func OpenSession(ctx context.Context, storage BlobStorage, locker Locker, sessionID string, log *zap.Logger) (*SessionCart, error) {
	if sessionID == "" {
		return nil, apperr.Validation("MissingSession", "session id is required")
	}
	c := &SessionCart{sessionID: sessionID, storage: storage, locker: locker, log: log, now: time.Now}
	lines, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.lines = lines
	return c, nil
}

// load reads the stored lines. Another process may have written them since
// this instance last looked.
func (c *SessionCart) load(ctx context.Context) ([]Line, error) {
	blob, err := c.storage.Load(ctx, c.key())
	if err != nil {
		return nil, apperr.Remote("load session cart", err)
	}
	out := []Line{}
	if len(blob) == 0 {
		return out, nil
	}

	var lines []Line
	if err := json.Unmarshal(blob, &lines); err != nil {
		c.log.Warn("discarding corrupt session cart", zap.String("session_id", c.sessionID), zap.Error(err))
		if derr := c.storage.Delete(ctx, c.key()); derr != nil {
			c.log.Warn("delete corrupt session cart", zap.String("session_id", c.sessionID), zap.Error(derr))
		}
		return out, nil
	}
	for _, l := range lines {
		if l.Quantity < 1 || l.ProductName == "" {
			continue
		}
		l.recompute()
		out = append(out, l)
	}
	return out, nil
}

// lock takes the cross-process session lock, polling until ctx ends.
func (c *SessionCart) lock(ctx context.Context) (func(), error) {
	if c.locker == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf(redisx.KeySessionLock, c.sessionID)
	for {
		unlock, ok, err := c.locker.TryLock(ctx, key, sessionLockTTL)
		if err != nil {
			return nil, apperr.Remote("acquire session lock", err)
		}
		if ok {
			return func() {
				if err := unlock(context.Background()); err != nil {
					c.log.Warn("release session lock", zap.String("session_id", c.sessionID), zap.Error(err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, apperr.Conflict("session cart is busy")
		case <-time.After(sessionLockPoll):
		}
	}
}

func (c *SessionCart) key() string { return fmt.Sprintf(redisx.KeySessionCart, c.sessionID) }

func (c *SessionCart) ID() string { return c.sessionID }
func (c *SessionCart) Owner() string { return sessionOwner(c.sessionID) }

func (c *SessionCart) Lines() []Line {
	c.snap.RLock()
	defer c.snap.RUnlock()
	return cloneLines(c.lines)
}

// Refresh replaces the snapshot with the stored lines.
func (c *SessionCart) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.swap(lines)
	return nil
}

func (c *SessionCart) swap(lines []Line) {
	c.snap.Lock()
	c.lines = lines
	c.snap.Unlock()
}

func (c *SessionCart) Subscribe(fn Listener) func() { return c.subs.subscribe(fn) }

// mutate applies fn to the stored lines, persists the result and only then
// swaps it in. fn runs with the writer lock and the session lock held.
func (c *SessionCart) mutate(ctx context.Context, fn func([]Line) ([]Line, error)) error {
	c.mu.Lock()
	next, err := c.apply(ctx, fn)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.swap(next)
	c.mu.Unlock()

	c.subs.publish(c.Owner(), next)
	return nil
}

func (c *SessionCart) apply(ctx context.Context, fn func([]Line) ([]Line, error)) ([]Line, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if err := c.persist(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (c *SessionCart) persist(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return apperr.Remote("delete session cart", c.storage.Delete(ctx, c.key()))
	}
	blob, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal session cart: %w", err)
	}
	return apperr.Remote("save session cart", c.storage.Save(ctx, c.key(), blob))
}

func (c *SessionCart) Add(ctx context.Context, p Product, s Service, qty int) error {
	if err := validateAdd(p, s, qty); err != nil {
		return err
	}
	return c.mutate(ctx, func(lines []Line) ([]Line, error) {
		for i := range lines {
			if lines[i].sameItem(p.Name, s.Name) {
				lines[i].Quantity += qty
				lines[i].recompute()
				return lines, nil
			}
		}
		now := c.now()
		l := newLine(p, s, qty, now)
		l.ID = newSessionLineID(now)
		return append(lines, l), nil
	})
}

func (c *SessionCart) SetQuantity(ctx context.Context, lineID string, qty int) error {
	if qty <= 0 {
		return c.Remove(ctx, lineID)
	}
	return c.mutate(ctx, func(lines []Line) ([]Line, error) {
		for i := range lines {
			if lines[i].ID == lineID {
				lines[i].Quantity = qty
				lines[i].recompute()
				return lines, nil
			}
		}
		return nil, apperr.NotFound("cart line " + lineID)
	})
}

func (c *SessionCart) Remove(ctx context.Context, lineID string) error {
	return c.mutate(ctx, func(lines []Line) ([]Line, error) {
		for i := range lines {
			if lines[i].ID == lineID {
				return append(lines[:i], lines[i+1:]...), nil
			}
		}
		return nil, apperr.NotFound("cart line " + lineID)
	})
}

func (c *SessionCart) Clear(ctx context.Context) error {
	return c.mutate(ctx, func([]Line) ([]Line, error) { return []Line{}, nil })
}

// handOff passes the current lines to fold while holding the writer lock, so
// nothing is added mid-merge, and empties the cart only if fold succeeds.
func (c *SessionCart) handOff(ctx context.Context, fold func([]Line) error) error {
	return c.mutate(ctx, func(lines []Line) ([]Line, error) {
		if len(lines) == 0 {
			return lines, nil
		}
		if err := fold(lines); err != nil {
			return nil, err
		}
		return []Line{}, nil
	})
}
