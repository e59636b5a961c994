package repository

import (
	"sync"

	"kitchen-sync/internal/microservices/board/models"
	"kitchen-sync/internal/microservices/board/rules"
)

type OrderStoreInterface interface {
	Get(id int64) (models.Order, bool)
	List() []models.Order
	ReplaceAll(orders []models.Order)
	Put(order models.Order)
	Remove(id int64)
	Subscribe(fn func([]models.Order)) (cancel func())
}

// OrderStore keeps the active orders in fetch order. Every read returns copies,
// so callers never share item slices with the store.
type OrderStore struct {
	mu      sync.RWMutex
	order   []int64
	orders  map[int64]models.Order
	version uint64

	// nmu serialises notifications; snapshots older than notified are dropped.
	nmu       sync.Mutex
	notified  uint64
	lmu       sync.Mutex
	listeners map[int]func([]models.Order)
	nextL     int
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:    make(map[int64]models.Order),
		listeners: make(map[int]func([]models.Order)),
	}
}

func (s *OrderStore) Get(id int64) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return o.Clone(), true
}

func (s *OrderStore) List() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

func (s *OrderStore) listLocked() []models.Order {
	out := make([]models.Order, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.orders[id].Clone())
	}
	return out
}

// ReplaceAll swaps the whole content. A repeated id keeps the position of its
// first occurrence and the value of its last.
func (s *OrderStore) ReplaceAll(orders []models.Order) {
	s.mu.Lock()
	s.order = make([]int64, 0, len(orders))
	s.orders = make(map[int64]models.Order, len(orders))
	for _, o := range orders {
		if _, seen := s.orders[o.ID]; !seen {
			s.order = append(s.order, o.ID)
		}
		s.orders[o.ID] = normalize(o)
	}
	s.release()
}

func (s *OrderStore) Put(o models.Order) {
	s.mu.Lock()
	if _, ok := s.orders[o.ID]; !ok {
		s.order = append(s.order, o.ID)
	}
	s.orders[o.ID] = normalize(o)
	s.release()
}

func (s *OrderStore) Remove(id int64) {
	s.mu.Lock()
	if _, ok := s.orders[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.orders, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.release()
}

// release must be called with mu held for writing.
func (s *OrderStore) release() {
	s.version++
	v := s.version
	snap := s.listLocked()
	s.mu.Unlock()

	s.nmu.Lock()
	defer s.nmu.Unlock()
	if v < s.notified {
		return
	}
	s.notified = v
	s.notify(snap)
}

// Subscribe registers fn to be called with a fresh snapshot after every write.
// Each listener gets its own copy of the snapshot and may keep or modify it.
// fn runs outside the store lock; it may read the store but must not write it.
func (s *OrderStore) Subscribe(fn func([]models.Order)) func() {
	s.lmu.Lock()
	id := s.nextL
	s.nextL++
	s.listeners[id] = fn
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *OrderStore) notify(snap []models.Order) {
	s.lmu.Lock()
	fns := make([]func([]models.Order), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	// the last listener gets snap itself, the others copies of it
	for i, fn := range fns {
		if i == len(fns)-1 {
			fn(snap)
			break
		}
		fn(cloneAll(snap))
	}
}

func cloneAll(orders []models.Order) []models.Order {
	out := make([]models.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

// normalize enforces that an order with items carries the least progressed
// item status.
func normalize(o models.Order) models.Order {
	c := o.Clone()
	if len(c.Items) == 0 {
		return c
	}
	statuses := make([]models.Status, len(c.Items))
	for i, it := range c.Items {
		statuses[i] = it.Status
	}
	if lowest, ok := rules.Min(statuses...); ok && rules.Rank(c.Status) != rules.Rank(lowest) {
		c.Status = lowest
	}
	return c
}
