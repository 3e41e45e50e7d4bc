package observers

import (
	"sync"
	"time"

	"github.com/corestate/corestate"
)

// MetricsObserver accumulates visit counts, dwell time, and transition
// counts for a running Machine. It implements corestate.Observer.
type MetricsObserver struct {
	stateVisits      map[string]int
	stateTimeSpent   map[string]time.Duration
	eventCounts      map[string]int
	transitionCounts map[string]int
	errorCount       int
	lastStateEntry   map[string]time.Time
	mutex            sync.RWMutex
}

// NewMetricsObserver creates an empty MetricsObserver.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		stateVisits:      make(map[string]int),
		stateTimeSpent:   make(map[string]time.Duration),
		eventCounts:      make(map[string]int),
		transitionCounts: make(map[string]int),
		lastStateEntry:   make(map[string]time.Time),
	}
}

func (o *MetricsObserver) OnStateEnter(state string, ctx *corestate.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.stateVisits[state]++
	o.lastStateEntry[state] = time.Now()
}

func (o *MetricsObserver) OnStateExit(state string, ctx *corestate.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if entryTime, ok := o.lastStateEntry[state]; ok {
		o.stateTimeSpent[state] += time.Since(entryTime)
		delete(o.lastStateEntry, state)
	}
}

func (o *MetricsObserver) OnTransition(from, to string, event corestate.Event, ctx *corestate.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.transitionCounts[from+"->"+to]++
}

func (o *MetricsObserver) OnEventProcessed(event corestate.Event, ctx *corestate.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.eventCounts[event.Name]++
}

func (o *MetricsObserver) OnEventMissed(event corestate.Event, ctx *corestate.Context) {}

func (o *MetricsObserver) OnMachineStarted(ctx *corestate.Context) {}

func (o *MetricsObserver) OnMachineStopped(ctx *corestate.Context) {}

func (o *MetricsObserver) OnError(err error, ctx *corestate.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.errorCount++
}

// GetStateVisitCounts returns how many times each state was entered.
func (o *MetricsObserver) GetStateVisitCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	result := make(map[string]int, len(o.stateVisits))
	for state, count := range o.stateVisits {
		result[state] = count
	}
	return result
}

// GetStateTimeSpent returns accumulated dwell time per state.
func (o *MetricsObserver) GetStateTimeSpent() map[string]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	result := make(map[string]time.Duration, len(o.stateTimeSpent))
	for state, d := range o.stateTimeSpent {
		result[state] = d
	}
	return result
}

// GetEventCounts returns how many times each named event was processed.
func (o *MetricsObserver) GetEventCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	result := make(map[string]int, len(o.eventCounts))
	for event, count := range o.eventCounts {
		result[event] = count
	}
	return result
}

// GetTransitionCounts returns how many times each "from->to" transition
// fired.
func (o *MetricsObserver) GetTransitionCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	result := make(map[string]int, len(o.transitionCounts))
	for transition, count := range o.transitionCounts {
		result[transition] = count
	}
	return result
}

// GetErrorCount returns how many errors were reported.
func (o *MetricsObserver) GetErrorCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.errorCount
}

// Reset clears all accumulated metrics.
func (o *MetricsObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.stateVisits = make(map[string]int)
	o.stateTimeSpent = make(map[string]time.Duration)
	o.eventCounts = make(map[string]int)
	o.transitionCounts = make(map[string]int)
	o.errorCount = 0
	o.lastStateEntry = make(map[string]time.Time)
}
