// Package router implements the client's response router: a FIFO queue
// of outstanding waiters, each resolved at most once by the first
// inbound response its matcher accepts.
package router

import (
	"sync"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/response"
)

// unmatchedHorizon bounds how long an unmatched response is retained so
// a waiter registered shortly after it arrived can still observe it.
const unmatchedHorizon = 2 * time.Second

type waiter struct {
	matcher func(response.Message) bool
	notify  chan response.Message
}

type unmatched struct {
	msg  response.Message
	at   time.Time
}

// Router dispatches inbound responses to registered waiters in FIFO
// order and retains briefly any response no current waiter claimed.
type Router struct {
	mu         sync.Mutex
	waiters    []*waiter
	unmatched  []unmatched
	now        func() time.Time
}

// New returns an empty Router.
func New() *Router {
	return &Router{now: time.Now}
}

// Register adds a waiter matched by matcher and returns a channel that
// receives exactly one message once matched. Cancel must be called if
// the caller gives up waiting (e.g. on timeout) to release the waiter
// slot.
func (r *Router) Register(matcher func(response.Message) bool) (ch <-chan response.Message, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A response that arrived before this waiter registered, and that
	// still falls inside the unmatched horizon, satisfies it immediately.
	now := r.now()
	for i, u := range r.unmatched {
		if now.Sub(u.at) > unmatchedHorizon {
			continue
		}
		if matcher(u.msg) {
			r.unmatched = append(r.unmatched[:i], r.unmatched[i+1:]...)
			out := make(chan response.Message, 1)
			out <- u.msg
			return out, func() {}
		}
	}

	w := &waiter{matcher: matcher, notify: make(chan response.Message, 1)}
	r.waiters = append(r.waiters, w)
	return w.notify, func() { r.removeWaiter(w) }
}

func (r *Router) removeWaiter(target *waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.waiters {
		if w == target {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}

// Dispatch delivers msg to the first FIFO waiter whose matcher accepts
// it, consuming that waiter. If no waiter matches, msg is retained for
// unmatchedHorizon so a subsequent Register can still observe it.
func (r *Router) Dispatch(msg response.Message) {
	r.mu.Lock()
	r.pruneUnmatchedLocked()
	for i, w := range r.waiters {
		if w.matcher(msg) {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			r.mu.Unlock()
			w.notify <- msg
			return
		}
	}
	r.unmatched = append(r.unmatched, unmatched{msg: msg, at: r.now()})
	r.mu.Unlock()
}

func (r *Router) pruneUnmatchedLocked() {
	now := r.now()
	live := r.unmatched[:0]
	for _, u := range r.unmatched {
		if now.Sub(u.at) <= unmatchedHorizon {
			live = append(live, u)
		}
	}
	r.unmatched = live
}

// PendingWaiters returns the number of waiters currently registered,
// for diagnostics and tests.
func (r *Router) PendingWaiters() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

// FlushAll resolves every outstanding waiter immediately with a null
// result (a closed notify channel) instead of leaving it to expire on
// its own timeout. Call it once the client has stopped, or once the
// read path has failed and no further responses will ever arrive.
func (r *Router) FlushAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.waiters {
		close(w.notify)
	}
	r.waiters = nil
}
