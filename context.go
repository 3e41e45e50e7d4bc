package corestate

import (
	"context"
	"sync"
)

// Context is the single argument every Guard and Action callback receives.
// It embeds context.Context so a caller can thread cancellation/deadlines
// through long-running actions, and otherwise exposes only what a callback
// legitimately needs to know about the dispatch it's running inside of: the
// triggering Event and a small scratch space for passing values between a
// guard and the action on the same transition. A Context carries no notion
// of lexical "scope" across nested states — that idea is deliberately kept
// out of the core contract.
type Context struct {
	context.Context
	event Event

	mu     sync.Mutex
	values map[string]interface{}
}

func newContext(parent context.Context, event Event) *Context {
	if parent == nil {
		parent = context.Background()
	}
	return &Context{Context: parent, event: event}
}

// Event returns the Event that triggered the current dispatch.
func (c *Context) Event() Event {
	return c.event
}

// Set stores a value in the per-dispatch scratch space, visible to every
// guard and action invoked later in the same Dispatch call.
func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]interface{})
	}
	c.values[key] = value
}

// Get retrieves a value previously stored with Set.
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// GuardFunc decides whether a transition may fire. It must not mutate
// machine state; only Action callbacks are expected to have side effects.
type GuardFunc func(ctx *Context) bool

// ActionFunc runs as part of firing a transition, or as a state's entry/exit
// behavior. Returning an error aborts the in-progress dispatch and is
// surfaced to the Dispatch caller as an *ActionError.
type ActionFunc func(ctx *Context) error

// Action is an ActionFunc alias kept for symmetry with entry/exit callback
// sites that never need a non-nil error path.
type Action = ActionFunc
