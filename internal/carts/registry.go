package carts

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Registry hands out one live cart instance per owner, so requests for the
// same cart in this process go through the same writer lock. The
// implementation is chosen once per identity. Cached instances re-read remote
// state on every write and on Refresh.
type Registry struct {
	repo    Repository
	storage BlobStorage
	locker  Locker
	log     *zap.Logger

	cache *lru.Cache
	loads singleflight.Group

	mu        sync.RWMutex
	listeners []Listener
}

func NewRegistry(repo Repository, storage BlobStorage, size int, log *zap.Logger) (*Registry, error) {
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Registry{repo: repo, storage: storage, log: log, cache: cache}, nil
}

// UseSessionLock makes session carts serialize their writes through l, which
// is needed once more than one process serves the same sessions.
func (r *Registry) UseSessionLock(l Locker) { r.locker = l }

// OnChange attaches fn to every cart the registry creates from now on.
func (r *Registry) OnChange(fn Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) For(ctx context.Context, id Identity) (Cart, error) {
	if id.Authenticated() {
		return r.Persistent(ctx, id.UserID)
	}
	if id.SessionID == "" {
		return nil, apperr.Validation("MissingSession", "session id is required")
	}
	return r.Session(ctx, id.SessionID)
}

func (r *Registry) Session(ctx context.Context, sessionID string) (*SessionCart, error) {
	c, err := r.load(sessionOwner(sessionID), func() (Cart, error) {
		return OpenSession(ctx, r.storage, r.locker, sessionID, r.log)
	})
	if err != nil {
		return nil, err
	}
	return c.(*SessionCart), nil
}

// Persistent returns the user's cart, fetching it when first created.
func (r *Registry) Persistent(ctx context.Context, userID string) (*PersistentCart, error) {
	if userID == "" {
		return nil, apperr.Validation("MissingUser", "user id is required")
	}
	c, err := r.load(userOwner(userID), func() (Cart, error) {
		pc := NewPersistentCart(userID, r.repo, r.log)
		if err := pc.Fetch(ctx); err != nil {
			return nil, err
		}
		return pc, nil
	})
	if err != nil {
		return nil, err
	}
	return c.(*PersistentCart), nil
}

func (r *Registry) load(owner string, create func() (Cart, error)) (Cart, error) {
	if v, ok := r.cache.Get(owner); ok {
		return v.(Cart), nil
	}
	v, err, _ := r.loads.Do(owner, func() (any, error) {
		if v, ok := r.cache.Get(owner); ok {
			return v, nil
		}
		c, err := create()
		if err != nil {
			return nil, err
		}
		r.mu.RLock()
		for _, fn := range r.listeners {
			c.Subscribe(fn)
		}
		r.mu.RUnlock()
		r.cache.Add(owner, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Cart), nil
}
