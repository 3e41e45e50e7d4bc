// Package equeue is an optional convenience wrapper around
// corestate.Machine's Enqueue/PopQueued pair: a small FIFO drain loop an
// embedding can run to turn enqueued events back into synchronous
// Dispatch calls on its own schedule. The core Machine never drains its
// own queue automatically — see corestate.Machine.Enqueue.
package equeue

import "github.com/corestate/corestate"

// Source is the subset of *corestate.Machine DrainAll needs.
type Source interface {
	PopQueued() (corestate.Event, bool)
	Dispatch(event corestate.Event) (bool, error)
}

// DrainAll pops and dispatches every currently queued event, in FIFO order,
// stopping at the first error. It returns the number of events it
// successfully dispatched (fired or not — a miss still counts as drained)
// before stopping.
func DrainAll(m Source) (int, error) {
	drained := 0
	for {
		event, ok := m.PopQueued()
		if !ok {
			return drained, nil
		}
		if _, err := m.Dispatch(event); err != nil {
			return drained, err
		}
		drained++
	}
}
