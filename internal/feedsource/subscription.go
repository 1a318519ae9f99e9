package feedsource

import (
	"sync"

	"github.com/vibeteen/vibe-teen/internal/model"
)

// delivery is one queued callback: a snapshot, an error, or (for a brand-new
// subscriber on a cold hub) a request to load the first snapshot.
type delivery struct {
	seq     uint64
	entries []model.Action
	err     error
	refresh func()
}

// subscription owns the goroutine that invokes one subscriber's callbacks.
//
// The queue holds at most one pending delivery. A newer offer replaces an
// older one, so a stalled subscriber costs one slot, never a backlog.
type subscription struct {
	onSnapshot func([]model.Action)
	onError    func(error)

	mu      sync.Mutex
	pending *delivery
	lastSeq uint64

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSubscription(onSnapshot func([]model.Action), onError func(error)) *subscription {
	return &subscription{
		onSnapshot: onSnapshot,
		onError:    onError,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// offer queues d unless something newer has already been queued or delivered.
func (s *subscription) offer(d delivery) {
	s.mu.Lock()
	if d.seq != 0 && d.seq < s.lastSeq {
		s.mu.Unlock()
		return
	}
	if d.seq != 0 {
		s.lastSeq = d.seq
	} else if s.pending != nil {
		// A load request never replaces a real delivery.
		s.mu.Unlock()
		return
	}
	s.pending = &d
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) take() (delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return delivery{}, false
	}
	d := *s.pending
	s.pending = nil
	return d, true
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		d, ok := s.take()
		if !ok {
			continue
		}
		// Check again: stop may have raced with the wake-up.
		select {
		case <-s.done:
			return
		default:
		}

		switch {
		case d.refresh != nil:
			d.refresh()
		case d.err != nil:
			s.onError(d.err)
		default:
			s.onSnapshot(d.entries)
		}
	}
}

// stop ends the delivery goroutine. It reports true only for the call that
// actually stopped it.
func (s *subscription) stop() bool {
	stopped := false
	s.stopOnce.Do(func() {
		close(s.done)
		stopped = true
	})
	return stopped
}
