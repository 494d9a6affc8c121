package crud

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
)

type note struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"ownerId"`
	Text    string `json:"text" validate:"required,max=20"`
}

func (n note) EntityID() int64      { return n.ID }
func (n note) EntityOwnerID() int64 { return n.OwnerID }

type noteStore struct {
	mu       sync.Mutex
	rows     map[int64]note
	nextID   int64
	calls    map[string]int
	failWith error
}

func newNoteStore(rows ...note) *noteStore {
	s := &noteStore{rows: make(map[int64]note), calls: make(map[string]int)}
	for _, n := range rows {
		s.rows[n.ID] = n
		if n.ID > s.nextID {
			s.nextID = n.ID
		}
	}
	return s
}

func (s *noteStore) called(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *noteStore) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *noteStore) snapshot() []note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(Predicate{})
}

func (s *noteStore) Insert(_ context.Context, n note) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Insert"]++
	if s.failWith != nil {
		return 0, s.failWith
	}
	s.nextID++
	n.ID = s.nextID
	s.rows[n.ID] = n
	return n.ID, nil
}

func (s *noteStore) FindAll(_ context.Context, pred Predicate) ([]note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindAll"]++
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.sortedLocked(pred), nil
}

func (s *noteStore) FindByID(_ context.Context, id int64) (note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindByID"]++
	if s.failWith != nil {
		return note{}, s.failWith
	}
	n, ok := s.rows[id]
	if !ok {
		return note{}, ErrNotFound
	}
	return n, nil
}

func (s *noteStore) Update(_ context.Context, n note) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Update"]++
	if s.failWith != nil {
		return false, s.failWith
	}
	if _, ok := s.rows[n.ID]; !ok {
		return false, nil
	}
	s.rows[n.ID] = n
	return true, nil
}

func (s *noteStore) Delete(_ context.Context, pred Predicate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Delete"]++
	if s.failWith != nil {
		return false, s.failWith
	}
	matched := s.sortedLocked(pred)
	for _, n := range matched {
		delete(s.rows, n.ID)
	}
	return len(matched) > 0, nil
}

func (s *noteStore) Count(_ context.Context, pred Predicate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Count"]++
	if s.failWith != nil {
		return 0, s.failWith
	}
	return len(s.sortedLocked(pred)), nil
}

func (s *noteStore) sortedLocked(pred Predicate) []note {
	var wanted map[int64]struct{}
	if len(pred.IDs) > 0 {
		wanted = make(map[int64]struct{}, len(pred.IDs))
		for _, id := range pred.IDs {
			wanted[id] = struct{}{}
		}
	}
	out := make([]note, 0, len(s.rows))
	for _, n := range s.rows {
		if wanted != nil {
			if _, ok := wanted[n.ID]; !ok {
				continue
			}
		}
		if pred.OwnerID != nil && n.OwnerID != *pred.OwnerID {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newNoteLogic(store Store[note], owned bool, opts ...Option[note]) *Logic[note] {
	opts = append([]Option[note]{WithLogger[note](discardLogger())}, opts...)
	l := NewLogic[note](store, opts...)
	if owned {
		EnableOwnership(l)
	}
	return l
}
