package observers

import (
	"fmt"
	"sync"

	"github.com/corestate/corestate"
)

// ValidationObserver watches a running Machine for behavior that violates
// a test's or deployment's own expectations — an allow-list of transitions
// or a set of states that must eventually be visited. It implements
// corestate.Observer and is intended for tests and staging environments,
// not the hot path of a production dispatch loop.
type ValidationObserver struct {
	expectedStates     map[string]bool
	visitedStates      map[string]bool
	allowedTransitions map[string]map[string]bool
	violations         []string
	mutex              sync.RWMutex
}

// NewValidationObserver creates an empty ValidationObserver.
func NewValidationObserver() *ValidationObserver {
	return &ValidationObserver{
		expectedStates:     make(map[string]bool),
		visitedStates:      make(map[string]bool),
		allowedTransitions: make(map[string]map[string]bool),
		violations:         make([]string, 0),
	}
}

// AddExpectedState records a state name that GetUnvisitedStates will flag
// if it is never entered.
func (o *ValidationObserver) AddExpectedState(stateName string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedStates[stateName] = true
}

// AddAllowedTransition whitelists a from->to transition; once any
// allow-list entry exists for from, every other target from that state is
// reported as a violation.
func (o *ValidationObserver) AddAllowedTransition(from, to string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[string]bool)
	}
	o.allowedTransitions[from][to] = true
}

func (o *ValidationObserver) OnStateEnter(state string, ctx *corestate.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates[state] = true
}

func (o *ValidationObserver) OnStateExit(state string, ctx *corestate.Context) {}

func (o *ValidationObserver) OnTransition(from, to string, event corestate.Event, ctx *corestate.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if allowed, exists := o.allowedTransitions[from]; exists && !allowed[to] {
		o.violations = append(o.violations, fmt.Sprintf(
			"invalid transition from %q to %q on event %q", from, to, event.Name))
	}
}

func (o *ValidationObserver) OnEventProcessed(event corestate.Event, ctx *corestate.Context) {}

func (o *ValidationObserver) OnEventMissed(event corestate.Event, ctx *corestate.Context) {}

func (o *ValidationObserver) OnMachineStarted(ctx *corestate.Context) {}

func (o *ValidationObserver) OnMachineStopped(ctx *corestate.Context) {}

func (o *ValidationObserver) OnError(err error, ctx *corestate.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, fmt.Sprintf("error occurred: %v", err))
}

// GetViolations returns every recorded violation, in the order observed.
func (o *ValidationObserver) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedStates returns every expected state that was never entered.
func (o *ValidationObserver) GetUnvisitedStates() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	var unvisited []string
	for state := range o.expectedStates {
		if !o.visitedStates[state] {
			unvisited = append(unvisited, state)
		}
	}
	return unvisited
}

// HasViolations reports whether any violation has been recorded.
func (o *ValidationObserver) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset clears visited-state tracking and recorded violations.
func (o *ValidationObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates = make(map[string]bool)
	o.violations = make([]string, 0)
}
