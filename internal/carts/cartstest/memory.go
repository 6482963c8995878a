// Package cartstest provides in-memory stand-ins for the cart repository,
// session storage and merge lock.
package cartstest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-laundry-cart/internal/apperr"
	"github.com/ariefcatur/go-laundry-cart/internal/carts"
	"github.com/ariefcatur/go-laundry-cart/internal/pricing"
	"github.com/shopspring/decimal"
)

type row struct {
	userID string
	line   carts.Line
}

// Repo mimics cart_items plus cart_merge_log. Setting Err makes every call
// fail; FailMergeAfter makes MergeLines fail once that many lines are staged.
type Repo struct {
	mu             sync.Mutex
	seq            int
	clock          time.Time
	rows           []row
	mergeLog       map[string]int
	Err            error
	FailMergeAfter int
	Calls          int
}

func NewRepo() *Repo {
	return &Repo{mergeLog: map[string]int{}, FailMergeAfter: -1, clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *Repo) fail() error {
	r.Calls++
	return r.Err
}

func (r *Repo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *Repo) ListByUser(_ context.Context, userID string) ([]carts.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	out := []carts.Line{}
	for _, rw := range r.rows {
		if rw.userID == userID {
			out = append(out, rw.line)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Repo) Get(_ context.Context, userID, lineID string) (carts.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return carts.Line{}, err
	}
	if i := r.index(userID, lineID); i >= 0 {
		return r.rows[i].line, nil
	}
	return carts.Line{}, apperr.NotFound("cart line " + lineID)
}

func (r *Repo) Upsert(_ context.Context, userID string, l carts.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	r.upsert(userID, l)
	return nil
}

func (r *Repo) upsert(userID string, l carts.Line) {
	for i, rw := range r.rows {
		if rw.userID == userID && rw.line.ProductName == l.ProductName && rw.line.ServiceType == l.ServiceType {
			cur := &r.rows[i].line
			cur.Quantity += l.Quantity
			cur.LineTotal = pricing.LineTotal(cur.ProductUnitPrice, cur.ServiceUnitPrice, cur.Quantity)
			return
		}
	}
	r.seq++
	l.ID = fmt.Sprintf("line-%d", r.seq)
	l.CreatedAt = r.tick()
	if l.Category == "" {
		l.Category = carts.DefaultCategory
	}
	r.rows = append(r.rows, row{userID: userID, line: l})
}

func (r *Repo) UpdateQuantity(_ context.Context, userID, lineID string, qty int, total decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	i := r.index(userID, lineID)
	if i < 0 {
		return apperr.NotFound("cart line " + lineID)
	}
	r.rows[i].line.Quantity = qty
	r.rows[i].line.LineTotal = total
	return nil
}

func (r *Repo) Delete(_ context.Context, userID, lineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	i := r.index(userID, lineID)
	if i < 0 {
		return apperr.NotFound("cart line " + lineID)
	}
	r.rows = append(r.rows[:i], r.rows[i+1:]...)
	return nil
}

func (r *Repo) DeleteAll(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	r.deleteAll(userID)
	return nil
}

func (r *Repo) deleteAll(userID string) {
	kept := r.rows[:0]
	for _, rw := range r.rows {
		if rw.userID != userID {
			kept = append(kept, rw)
		}
	}
	r.rows = kept
}

// MergeLines is all-or-nothing like the Postgres transaction.
func (r *Repo) MergeLines(_ context.Context, userID string, lines []carts.Line) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return 0, err
	}
	staged := append([]row(nil), r.rows...)
	log := map[string]int{}
	for k, v := range r.mergeLog {
		log[k] = v
	}
	seq, clock := r.seq, r.clock

	merged := 0
	for _, l := range lines {
		if r.FailMergeAfter >= 0 && merged >= r.FailMergeAfter {
			r.rows, r.seq, r.clock = staged, seq, clock
			return 0, apperr.Unavailable("merge cart line", fmt.Errorf("connection reset"))
		}
		delta := l.Quantity - log[l.ID]
		if delta <= 0 {
			continue
		}
		part := l
		part.Quantity = delta
		part.LineTotal = pricing.LineTotal(part.ProductUnitPrice, part.ServiceUnitPrice, delta)
		r.upsert(userID, part)
		log[l.ID] = l.Quantity
		merged++
	}
	r.mergeLog = log
	return merged, nil
}

// ClearUser drops a user's rows the way an order commit does.
func (r *Repo) ClearUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteAll(userID)
}

func (r *Repo) index(userID, lineID string) int {
	for i, rw := range r.rows {
		if rw.userID == userID && rw.line.ID == lineID {
			return i
		}
	}
	return -1
}

// Storage is a map-backed BlobStorage. Err fails every call; WriteErr fails
// only Save and Delete.
type Storage struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	Err      error
	WriteErr error
}

func NewStorage() *Storage { return &Storage{blobs: map[string][]byte{}} }

func (s *Storage) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.blobs[key], nil
}

func (s *Storage) Save(_ context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	s.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr(); err != nil {
		return err
	}
	delete(s.blobs, key)
	return nil
}

func (s *Storage) writeErr() error {
	if s.Err != nil {
		return s.Err
	}
	return s.WriteErr
}

func (s *Storage) Put(key string, blob []byte) {
	s.mu.Lock()
	s.blobs[key] = blob
	s.mu.Unlock()
}

func (s *Storage) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[key]
	return ok
}

// Locker is a process-local Locker.
type Locker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocker() *Locker { return &Locker{held: map[string]bool{}} }

func (l *Locker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
		return nil
	}, true, nil
}

// Hold marks key as taken by another process.
func (l *Locker) Hold(key string) {
	l.mu.Lock()
	l.held[key] = true
	l.mu.Unlock()
}
