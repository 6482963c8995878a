package carts

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Repository is the remote collection of cart rows. Every method is scoped
// to one user; a row belonging to another user is reported as NotFound.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Line, error)
	Get(ctx context.Context, userID, lineID string) (Line, error)
	// Upsert inserts l, or adds l.Quantity to the user's existing line for the
	// same product and service.
	Upsert(ctx context.Context, userID string, l Line) error
	UpdateQuantity(ctx context.Context, userID, lineID string, qty int, lineTotal decimal.Decimal) error
	Delete(ctx context.Context, userID, lineID string) error
	DeleteAll(ctx context.Context, userID string) error
	// MergeLines folds session lines into the user's cart in one transaction.
	// Quantities already merged for a session line id are not merged again.
	MergeLines(ctx context.Context, userID string, lines []Line) (merged int, err error)
}

// PersistentCart proxies the remote cart of one authenticated user and keeps
// the last successfully fetched snapshot.
type PersistentCart struct {
	userID string
	repo   Repository
	log    *zap.Logger

	mu    sync.Mutex // writer
	snap  sync.RWMutex
	lines []Line
	subs  broadcaster
}

func NewPersistentCart(userID string, repo Repository, log *zap.Logger) *PersistentCart {
	return &PersistentCart{userID: userID, repo: repo, log: log, lines: []Line{}}
}

func (c *PersistentCart) UserID() string { return c.userID }
func (c *PersistentCart) Owner() string { return userOwner(c.userID) }

func (c *PersistentCart) Lines() []Line {
	c.snap.RLock()
	defer c.snap.RUnlock()
	return cloneLines(c.lines)
}

func (c *PersistentCart) Subscribe(fn Listener) func() { return c.subs.subscribe(fn) }

// Fetch replaces the snapshot with the remote rows, newest first. On failure
// the previous snapshot stays.
func (c *PersistentCart) Fetch(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchLocked(ctx)
}

func (c *PersistentCart) Refresh(ctx context.Context) error { return c.Fetch(ctx) }

func (c *PersistentCart) fetchLocked(ctx context.Context) error {
	lines, err := c.repo.ListByUser(ctx, c.userID)
	if err != nil {
		return apperr.Remote("fetch cart", err)
	}
	c.setLines(lines)
	return nil
}

func (c *PersistentCart) setLines(lines []Line) {
	next := cloneLines(lines)
	c.snap.Lock()
	c.lines = next
	c.snap.Unlock()
	c.subs.publish(c.Owner(), next)
}

// write runs op under the writer lock and re-fetches on success.
func (c *PersistentCart) write(ctx context.Context, op string, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fn(); err != nil {
		return apperr.Remote(op, err)
	}
	if err := c.fetchLocked(ctx); err != nil {
		c.log.Warn("refresh after write failed", zap.String("user_id", c.userID), zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

func (c *PersistentCart) Add(ctx context.Context, p Product, s Service, qty int) error {
	if err := validateAdd(p, s, qty); err != nil {
		return err
	}
	return c.write(ctx, "add cart line", func() error {
		return c.repo.Upsert(ctx, c.userID, newLine(p, s, qty, time.Now()))
	})
}

func (c *PersistentCart) SetQuantity(ctx context.Context, lineID string, qty int) error {
	if qty <= 0 {
		return c.Remove(ctx, lineID)
	}
	if IsSessionLineID(lineID) {
		return apperr.NotFound("cart line " + lineID)
	}
	return c.write(ctx, "update cart line", func() error {
		l, ok := c.find(lineID)
		if !ok {
			var err error
			if l, err = c.repo.Get(ctx, c.userID, lineID); err != nil {
				return err
			}
		}
		total := pricing.LineTotal(l.ProductUnitPrice, l.ServiceUnitPrice, qty)
		return c.repo.UpdateQuantity(ctx, c.userID, lineID, qty, total)
	})
}

func (c *PersistentCart) Remove(ctx context.Context, lineID string) error {
	if IsSessionLineID(lineID) {
		return apperr.NotFound("cart line " + lineID)
	}
	return c.write(ctx, "remove cart line", func() error {
		return c.repo.Delete(ctx, c.userID, lineID)
	})
}

func (c *PersistentCart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.repo.DeleteAll(ctx, c.userID); err != nil {
		return apperr.Remote("clear cart", err)
	}
	c.setLines(nil)
	return nil
}

// Checkout hands the freshly fetched lines to commit under the writer lock and
// re-fetches afterwards, so no mutation interleaves with order placement.
func (c *PersistentCart) Checkout(ctx context.Context, commit func(lines []Line) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fetchLocked(ctx); err != nil {
		return err
	}
	if err := commit(c.Lines()); err != nil {
		return err
	}
	if err := c.fetchLocked(ctx); err != nil {
		c.log.Warn("refresh after checkout failed", zap.String("user_id", c.userID), zap.Error(err))
		c.setLines(nil)
	}
	return nil
}

func (c *PersistentCart) find(lineID string) (Line, bool) {
	c.snap.RLock()
	defer c.snap.RUnlock()
	for _, l := range c.lines {
		if l.ID == lineID {
			return l, true
		}
	}
	return Line{}, false
}
