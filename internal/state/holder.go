package state

import (
	"sync"
	"time"

	"github.com/jjenkins/countries/internal/model"
)

// Snapshot is the last known countries list together with the last error.
// A snapshot is replaced as a whole and never modified in place.
type Snapshot struct {
	Countries []model.Country
	Err       error
	UpdatedAt time.Time
	Version   uint64
}

// Holder keeps the current Snapshot and publishes every replacement to its
// subscribers.
//
// Writers race: when two refreshes overlap, the snapshot written last wins,
// whichever fetch it came from.
type Holder struct {
	mu      sync.RWMutex
	current Snapshot
	subs    map[int]chan Snapshot
	nextID  int
	now     func() time.Time
}

// NewHolder creates a Holder with an empty snapshot
func NewHolder() *Holder {
	return &Holder{
		subs: make(map[int]chan Snapshot),
		now:  time.Now,
	}
}

// Current returns the current snapshot
func (h *Holder) Current() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Replace stores s as the current snapshot and returns it with its version
// and timestamp filled in
func (h *Holder) Replace(s Snapshot) Snapshot {
	return h.Update(func(Snapshot) Snapshot { return s })
}

// Update derives the next snapshot from the current one under the holder's
// lock, so no other write can land between the read and the write
func (h *Holder) Update(fn func(prev Snapshot) Snapshot) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := fn(h.current)
	next.Version = h.current.Version + 1
	next.UpdatedAt = h.now()
	h.current = next

	for _, ch := range h.subs {
		publish(ch, next)
	}
	return next
}

// Subscribe returns a channel that receives the current snapshot right away
// and every replacement after it. A subscriber that falls behind skips
// intermediate snapshots but always receives the latest one. Call the
// returned function to unsubscribe; it closes the channel.
func (h *Holder) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	publish(ch, h.current)
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// publish sends s without blocking, dropping the oldest queued snapshot
// when the channel is full. Callers hold h.mu.
func publish(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
