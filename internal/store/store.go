package store

import (
	"sort"
	"sync"

	"example.com/backstage/services/orderboard/internal/models"

	"github.com/google/uuid"
)

// StatusPatch is a partial status update. Nil fields are left untouched.
type StatusPatch struct {
	IsUnread *bool
	IsDone   *bool
}

type entry struct {
	order models.Order
	seq   uint64
}

// Store maintains the canonical, de-duplicated collection of orders keyed
// by id. Ordering is a projection concern; the store only guarantees that
// snapshots list orders in first-insertion sequence so ties sort
// deterministically. Upsert and MutateStatus are the only mutators,
// everything else observes the store through Snapshot.
type Store struct {
	mu        sync.RWMutex
	orders    map[int64]*entry
	nextSeq   uint64
	listeners map[uuid.UUID]chan struct{}
}

// New creates an empty store.
func New() *Store {
	return &Store{
		orders:    make(map[int64]*entry),
		listeners: make(map[uuid.UUID]chan struct{}),
	}
}

// Upsert inserts the order if its id is unknown, otherwise replaces the
// existing entry in place. Replacement is wholesale except for the status
// flags: a payload that did not carry is_new/is_done explicitly keeps the
// local values, and a done order is never reverted without an explicit
// done=false marker. Returns true on insert, false on update.
func (s *Store) Upsert(order models.Order) bool {
	s.mu.Lock()

	existing, ok := s.orders[order.ID]
	if ok {
		if !order.UnreadExplicit {
			order.IsUnread = existing.order.IsUnread
		}
		if !order.DoneExplicit {
			order.IsDone = existing.order.IsDone
		}
		existing.order = order
	} else {
		s.orders[order.ID] = &entry{order: order, seq: s.nextSeq}
		s.nextSeq++
	}

	s.mu.Unlock()
	s.notify()
	return !ok
}

// MutateStatus applies a partial status update in place. An unknown id is
// a no-op, not an error: a transition on an order the store has never seen
// has nothing to show.
func (s *Store) MutateStatus(id int64, patch StatusPatch) {
	s.mu.Lock()

	e, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if patch.IsUnread != nil {
		e.order.IsUnread = *patch.IsUnread
	}
	if patch.IsDone != nil {
		e.order.IsDone = *patch.IsDone
	}

	s.mu.Unlock()
	s.notify()
}

// Get returns a copy of the order with the given id.
func (s *Store) Get(id int64) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return e.order, true
}

// Snapshot returns a point-in-time copy of all orders in first-insertion
// sequence. Callers own the returned slice and cannot race a concurrent
// mutation through it.
func (s *Store) Snapshot() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*entry, 0, len(s.orders))
	for _, e := range s.orders {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	result := make([]models.Order, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.order)
	}
	return result
}

// Count returns the number of orders in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Subscribe registers a change listener. The returned channel receives a
// signal after every Upsert or MutateStatus; the returned function
// releases the subscription.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	ch := make(chan struct{}, 1)
	s.listeners[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// notify signals every listener without blocking. A listener that has not
// drained its channel already has a wakeup pending, which is enough.
func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
