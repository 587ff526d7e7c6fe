package qdemo

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

var ErrPoolClosed = errors.New("pool closed")

// Value is the outcome of a job as seen by whoever awaits it.
type Value struct {
	Value     any
	Error     error
	CreatedAt time.Time
	TTL       time.Duration
}

/*
Space holds job results by ID and hands them to waiters. A result stays
available to late Await calls until its TTL runs out; a zero TTL keeps it
for the life of the space.
*/
type Space struct {
	mu      sync.Mutex
	values  map[string]Value
	waiting map[string][]chan Value
	groups  map[string]*BroadcastGroup
	closed  bool
	logger  *log.Logger
}

func newSpace(ctx context.Context, logger *log.Logger, sweep time.Duration) *Space {
	s := &Space{
		values:  make(map[string]Value),
		waiting: make(map[string][]chan Value),
		groups:  make(map[string]*BroadcastGroup),
		logger:  logger,
	}
	go s.cleanup(ctx, sweep)
	return s
}

func (s *Space) Store(id string, value any, err error, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := Value{
		Value:     value,
		Error:     err,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
	s.values[id] = v
	s.logger.Debug("stored result", "job", id, "err", err, "waiters", len(s.waiting[id]))

	for _, ch := range s.waiting[id] {
		ch <- v
		close(ch)
	}
	delete(s.waiting, id)
}

// Await returns a channel that receives the value for id exactly once.
func (s *Space) Await(id string) chan Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Value, 1)
	if v, ok := s.values[id]; ok {
		ch <- v
		close(ch)
		return ch
	}
	if s.closed {
		ch <- Value{Error: ErrPoolClosed, CreatedAt: time.Now()}
		close(ch)
		return ch
	}

	s.waiting[id] = append(s.waiting[id], ch)
	return ch
}

func (s *Space) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Space) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, v := range s.values {
		if v.TTL > 0 && now.Sub(v.CreatedAt) > v.TTL {
			delete(s.values, id)
		}
	}
	for id, group := range s.groups {
		if group.Expired(now) {
			group.Close()
			delete(s.groups, id)
		}
	}
}

// CreateBroadcastGroup returns the group with id, creating it if needed.
func (s *Space) CreateBroadcastGroup(id string, ttl time.Duration) *BroadcastGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	if group, ok := s.groups[id]; ok {
		return group
	}
	group := NewBroadcastGroup(id, ttl)
	s.groups[id] = group
	return group
}

// Subscribe returns nil when no group with groupID exists.
func (s *Space) Subscribe(groupID string, buffer int) chan Event {
	s.mu.Lock()
	group, ok := s.groups[groupID]
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return group.Subscribe(buffer)
}

// Close fails every pending waiter with ErrPoolClosed and closes all groups.
func (s *Space) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for id, waiters := range s.waiting {
		for _, ch := range waiters {
			ch <- Value{Error: ErrPoolClosed, CreatedAt: time.Now()}
			close(ch)
		}
		delete(s.waiting, id)
	}
	for id, group := range s.groups {
		group.Close()
		delete(s.groups, id)
	}
}
