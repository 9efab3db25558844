package matching

import (
	"context"
	"sort"
	"sync"
	"time"

	"coload/internal/types"
)

// memStore is an in-memory Store with the same CAS semantics as PGStore.
type memStore struct {
	mu       sync.Mutex
	matches  map[types.ID]*Match
	rejected []RejectedPair
	events   []Event
	// interfere bumps status_version this many times right before a CAS,
	// simulating a concurrent writer.
	interfere int
	// gone lists shipment ids treated as deleted by PruneRejections.
	gone map[types.ID]bool
}

func newMemStore() *memStore {
	return &memStore{matches: map[types.ID]*Match{}, gone: map[types.ID]bool{}}
}

func (s *memStore) busy(id types.ID) bool {
	for _, m := range s.matches {
		if m.Status != StatusRejected && (m.OuterShipmentID == id || m.InnerShipmentID == id) {
			return true
		}
	}
	return false
}

func (s *memStore) CreateProposed(_ context.Context, matches []*Match) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range matches {
		if s.busy(m.OuterShipmentID) || s.busy(m.InnerShipmentID) {
			continue
		}
		cp := *m
		s.matches[m.ID] = &cp
		n++
	}
	return n, nil
}

func (s *memStore) Get(_ context.Context, id types.ID) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) List(_ context.Context, companyID types.ID) ([]*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Match
	for _, m := range s.matches {
		if m.Status == StatusRejected {
			continue
		}
		if companyID != "" && m.OuterCompanyID != companyID && m.InnerCompanyID != companyID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) cas(id types.ID, version int) (*Match, bool) {
	m, ok := s.matches[id]
	if !ok {
		return nil, false
	}
	if s.interfere > 0 {
		s.interfere--
		m.StatusVersion++
	}
	if m.Status != StatusPending || m.StatusVersion != version {
		return nil, false
	}
	return m, true
}

func (s *memStore) Confirm(_ context.Context, id types.ID, side Side, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.cas(id, version)
	if !ok {
		return false, nil
	}
	switch side {
	case SideOuter:
		m.OuterConfirmed = true
	case SideInner:
		m.InnerConfirmed = true
	}
	if m.OuterConfirmed && m.InnerConfirmed {
		m.Status = StatusConfirmed
	}
	m.StatusVersion++
	return true, nil
}

func (s *memStore) Reject(_ context.Context, id types.ID, version int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.cas(id, version)
	if !ok {
		return false, nil
	}
	delete(s.matches, id)
	s.rejected = append(s.rejected, RejectedPair{OuterShipmentID: m.OuterShipmentID, InnerShipmentID: m.InnerShipmentID, RejectedAt: at})
	return true, nil
}

func (s *memStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *memStore) RejectedPairs(context.Context) ([]RejectedPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RejectedPair(nil), s.rejected...), nil
}

func (s *memStore) ClearRejection(_ context.Context, a, b types.ID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.rejected[:0]
	for _, p := range s.rejected {
		if newPairKey(p.OuterShipmentID, p.InnerShipmentID) == newPairKey(a, b) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	s.rejected = kept
	return n, nil
}

func (s *memStore) confirmed(id types.ID) bool {
	for _, m := range s.matches {
		if m.Status == StatusConfirmed && (m.OuterShipmentID == id || m.InnerShipmentID == id) {
			return true
		}
	}
	return false
}

func (s *memStore) PruneRejections(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.rejected[:0]
	for _, p := range s.rejected {
		a, b := p.OuterShipmentID, p.InnerShipmentID
		if s.gone[a] || s.gone[b] || s.confirmed(a) || s.confirmed(b) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	s.rejected = kept
	return n, nil
}

func (s *memStore) ArchiveRejected(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.matches {
		if m.Status != StatusRejected {
			continue
		}
		s.rejected = append(s.rejected, RejectedPair{OuterShipmentID: m.OuterShipmentID, InnerShipmentID: m.InnerShipmentID, RejectedAt: time.Now()})
		delete(s.matches, id)
		n++
	}
	return n, nil
}

func (s *memStore) put(m *Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.matches[m.ID] = &cp
}
