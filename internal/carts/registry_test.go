package carts_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/carts"
	"github.com/ariefcatur/go-laundry-cart/internal/carts/cartstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRegistry(t *testing.T, repo *cartstest.Repo, storage *cartstest.Storage) *carts.Registry {
	t.Helper()
	r, err := carts.NewRegistry(repo, storage, 16, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRegistry_PicksImplementationByIdentity(t *testing.T) {
	r := newRegistry(t, cartstest.NewRepo(), cartstest.NewStorage())
	ctx := context.Background()

	anon, err := r.For(ctx, carts.Identity{SessionID: "s1"})
	require.NoError(t, err)
	assert.IsType(t, &carts.SessionCart{}, anon)
	assert.Equal(t, "session:s1", anon.Owner())

	user, err := r.For(ctx, carts.Identity{UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	assert.IsType(t, &carts.PersistentCart{}, user)
	assert.Equal(t, "user:u1", user.Owner())

	_, err = r.For(ctx, carts.Identity{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRegistry_SameInstancePerOwner(t *testing.T) {
	r := newRegistry(t, cartstest.NewRepo(), cartstest.NewStorage())
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*carts.PersistentCart, 10)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.Persistent(ctx, "u1")
			assert.NoError(t, err)
			got[i] = c
		}(i)
	}
	wg.Wait()
	for _, c := range got {
		assert.Same(t, got[0], c)
	}
}

func TestRegistry_ListenersAttachedToNewCarts(t *testing.T) {
	r := newRegistry(t, cartstest.NewRepo(), cartstest.NewStorage())
	ctx := context.Background()

	counts := map[string]int{}
	r.OnChange(func(owner string, lines []carts.Line) {
		counts[owner] = len(lines)
	})

	s, err := r.Session(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, shirt, steamIron, 1))
	require.NoError(t, s.Add(ctx, trousers, steamIron, 1))

	assert.Equal(t, 2, counts["session:s1"])
}

func TestRegistry_FailedFetchIsNotCached(t *testing.T) {
	repo := cartstest.NewRepo()
	r := newRegistry(t, repo, cartstest.NewStorage())
	ctx := context.Background()

	repo.Err = errors.New("db down")
	_, err := r.Persistent(ctx, "u1")
	assert.Equal(t, apperr.KindRemoteUnavailable, apperr.KindOf(err))

	repo.Err = nil
	c, err := r.Persistent(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestRegistry_TwoProcessesShareSessionCart(t *testing.T) {
	storage := cartstest.NewStorage()
	locker := cartstest.NewLocker()
	ctx := context.Background()

	replicaA := newRegistry(t, cartstest.NewRepo(), storage)
	replicaA.UseSessionLock(locker)
	replicaB := newRegistry(t, cartstest.NewRepo(), storage)
	replicaB.UseSessionLock(locker)

	b, err := replicaB.Session(ctx, "s1")
	require.NoError(t, err)
	a, err := replicaA.Session(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, a.Add(ctx, shirt, steamIron, 1))
	require.NoError(t, b.Add(ctx, trousers, steamIron, 1))

	fresh := newRegistry(t, cartstest.NewRepo(), storage)
	c, err := fresh.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, c.Lines(), 2)
}

func TestRegistry_PersistentRefreshSeesOtherProcess(t *testing.T) {
	repo := cartstest.NewRepo()
	ctx := context.Background()
	replicaA := newRegistry(t, repo, cartstest.NewStorage())
	replicaB := newRegistry(t, repo, cartstest.NewStorage())

	a, err := replicaA.Persistent(ctx, "u1")
	require.NoError(t, err)
	b, err := replicaB.Persistent(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, b.Add(ctx, shirt, steamIron, 2))
	assert.Empty(t, a.Lines())
	require.NoError(t, a.Refresh(ctx))
	assert.Len(t, a.Lines(), 1)
}
