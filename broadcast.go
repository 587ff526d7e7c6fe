package qdemo

import (
	"sync"
	"time"
)

// Stage names a step of a demo run as reported on the progress group.
type Stage string

const (
	StageQueued Stage = "queued"
	StageBuild  Stage = "build"
	StageSelect Stage = "select"
	StageRun    Stage = "run"
	StagePlot   Stage = "plot"
	StageDone   Stage = "done"
	StageFailed Stage = "failed"
)

// ProgressGroup is the broadcast group the runner reports into.
const ProgressGroup = "progress"

// Event is one progress notice for a demo run.
type Event struct {
	Demo    string
	Stage   Stage
	Backend string
	Err     error
	At      time.Time
}

// FilterFunc decides whether a subscriber wants an event.
type FilterFunc func(Event) bool

// OnlyDemo keeps events for a single demo.
func OnlyDemo(name string) FilterFunc {
	return func(e Event) bool {
		return e.Demo == name
	}
}

type subscriber struct {
	ch     chan Event
	filter FilterFunc
}

/*
BroadcastGroup fans progress events out to subscribers. Sending never
blocks: a subscriber whose buffer is full misses the event and the drop is
counted.
*/
type BroadcastGroup struct {
	mu sync.Mutex

	ID          string
	TTL         time.Duration
	LastUsed    time.Time
	subscribers []subscriber
	sent        int64
	dropped     int64
	closed      bool
}

func NewBroadcastGroup(id string, ttl time.Duration) *BroadcastGroup {
	return &BroadcastGroup{
		ID:       id,
		TTL:      ttl,
		LastUsed: time.Now(),
	}
}

// Subscribe returns a channel that is closed when the group closes.
func (bg *BroadcastGroup) Subscribe(buffer int, filters ...FilterFunc) chan Event {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	ch := make(chan Event, buffer)
	if bg.closed {
		close(ch)
		return ch
	}

	sub := subscriber{ch: ch}
	if len(filters) > 0 {
		sub.filter = func(e Event) bool {
			for _, f := range filters {
				if !f(e) {
					return false
				}
			}
			return true
		}
	}
	bg.subscribers = append(bg.subscribers, sub)
	return ch
}

func (bg *BroadcastGroup) Unsubscribe(ch chan Event) {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	for i, sub := range bg.subscribers {
		if sub.ch == ch {
			close(sub.ch)
			bg.subscribers = append(bg.subscribers[:i], bg.subscribers[i+1:]...)
			return
		}
	}
}

func (bg *BroadcastGroup) Send(e Event) {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	if bg.closed {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	bg.LastUsed = e.At

	for _, sub := range bg.subscribers {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
			bg.sent++
		default:
			bg.dropped++
		}
	}
}

// Stats returns how many deliveries succeeded and how many were dropped.
func (bg *BroadcastGroup) Stats() (sent, dropped int64) {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	return bg.sent, bg.dropped
}

func (bg *BroadcastGroup) Expired(now time.Time) bool {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	return bg.TTL > 0 && now.Sub(bg.LastUsed) > bg.TTL
}

func (bg *BroadcastGroup) Close() {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	if bg.closed {
		return
	}
	bg.closed = true
	for _, sub := range bg.subscribers {
		close(sub.ch)
	}
	bg.subscribers = nil
}
