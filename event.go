package corestate

import (
	"time"

	"github.com/google/uuid"
)

// Event is the unit of input a Machine dispatches or enqueues. Name is what
// transitions match against; Data is an opaque payload a Guard or Action can
// read back out of the Context it's given.
type Event struct {
	Name      string
	Data      interface{}
	ID        string
	Timestamp time.Time
}

// NewEvent creates a named Event with a fresh identity and the current time.
func NewEvent(name string) Event {
	return Event{
		Name:      name,
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
	}
}

// NewEventWithData creates a named Event carrying an arbitrary payload.
func NewEventWithData(name string, data interface{}) Event {
	e := NewEvent(name)
	e.Data = data
	return e
}

// completionEvent is a nameless Event. Completion transitions match the
// empty event name: processCompletions selects them by that name directly,
// without building this value, and an Event with an empty Name passed to
// Dispatch matches them as well.
var completionEvent = Event{Name: ""}

func isCompletionEvent(e Event) bool {
	return e.Name == ""
}
