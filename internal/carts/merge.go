package carts

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/redisx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Locker guards a key across processes. ok is false when someone else holds it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

type MergeResult struct {
	SessionLines int `json:"session_lines"`
	Merged       int `json:"merged"`
}

// Merger folds a session cart into the user's persistent cart once per login.
type Merger struct {
	Repo    Repository
	Locker  Locker
	Log     *zap.Logger
	LockTTL time.Duration

	group singleflight.Group
}

// Merge stages every session line in one transaction and clears the session
// only after that transaction commits. A failure before commit leaves both
// carts as they were; running Merge again is safe because quantities already
// merged for a session line are skipped.
func (m *Merger) Merge(ctx context.Context, session *SessionCart, target *PersistentCart) (MergeResult, error) {
	userID := target.UserID()
	if len(session.Lines()) == 0 {
		return MergeResult{}, nil
	}

	// Only calls for the same session share a result; a second session for
	// the same user meets the merge lock instead.
	v, err, _ := m.group.Do(userID+"|"+session.ID(), func() (any, error) {
		return m.mergeLocked(ctx, session, target)
	})
	if err != nil {
		return MergeResult{}, err
	}
	return v.(MergeResult), nil
}

func (m *Merger) mergeLocked(ctx context.Context, session *SessionCart, target *PersistentCart) (MergeResult, error) {
	userID := target.UserID()
	ttl := m.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	unlock, ok, err := m.Locker.TryLock(ctx, fmt.Sprintf(redisx.KeyMergeLock, userID), ttl)
	if err != nil {
		return MergeResult{}, apperr.Remote("acquire merge lock", err)
	}
	if !ok {
		return MergeResult{}, apperr.Conflict("cart merge already in progress")
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			m.Log.Warn("release merge lock", zap.String("user_id", userID), zap.Error(err))
		}
	}()

	var res MergeResult
	err = session.handOff(ctx, func(lines []Line) error {
		res.SessionLines = len(lines)
		n, err := m.Repo.MergeLines(ctx, userID, lines)
		if err != nil {
			return apperr.Remote("merge cart lines", err)
		}
		res.Merged = n
		return nil
	})
	if err != nil {
		m.Log.Warn("cart merge incomplete",
			zap.String("user_id", userID),
			zap.String("session_id", session.ID()),
			zap.Int("merged", res.Merged),
			zap.Error(err))
		return res, err
	}

	if err := target.Fetch(ctx); err != nil {
		m.Log.Warn("refresh after merge failed", zap.String("user_id", userID), zap.Error(err))
		return res, err
	}
	m.Log.Info("cart merged",
		zap.String("user_id", userID),
		zap.String("session_id", session.ID()),
		zap.Int("session_lines", res.SessionLines),
		zap.Int("merged", res.Merged))
	return res, nil
}
