// Package editsync reconciles locally-applied status edits with the remote
// system of record. Edits accumulate in an ordered queue and are flushed as
// one batched request at a time; the server acknowledges a prefix of the
// batch, which is then trimmed from the head.
package editsync

import (
	"sync"

	"codeset/internal/status"
)

// Edit is one user action: assign an explicit status to a code. Status is
// always an assignable status, never a derived one.
type Edit struct {
	Code   string
	Status status.Status
}

// Sender submits an ordered batch of edits to the remote authority and
// returns how many edits from the head of the batch were applied. A partial
// count is not an error: the unacknowledged tail stays queued.
type Sender interface {
	SendBatch(edits []Edit) (applied int, err error)
}

// Synchronizer drains a pending edit queue to a Sender under a single-flight
// discipline: at most one batch is in flight at any time. Enqueue and the
// flush completion path are safe to call concurrently; the queue may grow
// freely while a flush is outstanding.
type Synchronizer struct {
	sender Sender

	mu       sync.Mutex
	queue    []Edit
	updating bool
	closed   bool
	idle     *sync.Cond
}

// New creates a Synchronizer that submits batches via sender.
func New(sender Sender) *Synchronizer {
	s := &Synchronizer{sender: sender}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Enqueue appends an edit to the pending queue. If no flush is outstanding,
// one is started immediately on its own goroutine.
func (s *Synchronizer) Enqueue(edit Edit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.queue = append(s.queue, edit)
	s.maybeFlushLocked()
}

// TryFlush starts a flush if edits are queued and none is outstanding.
// This is the retry trigger after a transport failure.
func (s *Synchronizer) TryFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.maybeFlushLocked()
}

// Pending returns a copy of the queued, unacknowledged edits in order.
func (s *Synchronizer) Pending() []Edit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Edit(nil), s.queue...)
}

// Updating reports whether a flush is currently outstanding.
func (s *Synchronizer) Updating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updating
}

// Close tears the synchronizer down. Responses that arrive after Close are
// discarded without touching state; queued edits are dropped.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue = nil
	s.idle.Broadcast()
}

// Wait blocks until no flush is outstanding or the synchronizer is closed.
// Edits may remain queued after a transport failure; flush-on-exit callers
// check Pending afterwards and retry with TryFlush.
func (s *Synchronizer) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.closed && s.updating {
		s.idle.Wait()
	}
}

// maybeFlushLocked starts a flush if one is not already outstanding and
// there is work to send. Caller must hold mu.
func (s *Synchronizer) maybeFlushLocked() {
	if s.updating || len(s.queue) == 0 {
		return
	}
	s.updating = true

	// Snapshot the head-to-tail range; edits enqueued after this point ride
	// the next flush.
	batch := append([]Edit(nil), s.queue...)
	go s.flush(batch)
}

// flush submits one batch and reconciles the acknowledgement.
func (s *Synchronizer) flush(batch []Edit) {
	applied, err := s.sender.SendBatch(batch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		// Session torn down while the request was in flight.
		return
	}

	if err != nil {
		// Transport failure: nothing was acknowledged, everything stays
		// queued for the next flush trigger.
		applied = 0
	}
	if applied > len(s.queue) {
		applied = len(s.queue)
	}
	s.queue = s.queue[applied:]
	s.updating = false

	if len(s.queue) > 0 && (err == nil || applied > 0) {
		// More edits accumulated during the flush, or the authority
		// accepted only a prefix: go again.
		s.maybeFlushLocked()
	}

	if !s.updating {
		s.idle.Broadcast()
	}
}
