package corestate

import "fmt"

// Observer is the ambient instrumentation hook for a Machine: a pluggable
// way to log, meter, or validate its behavior without the dispatcher itself
// knowing or caring who is listening. Every method is optional — embed
// BaseObserver to pick up no-op defaults for the ones you don't need.
type Observer interface {
	OnStateEnter(state string, ctx *Context)
	OnStateExit(state string, ctx *Context)
	OnTransition(from, to string, event Event, ctx *Context)
	OnEventProcessed(event Event, ctx *Context)
	OnEventMissed(event Event, ctx *Context)
	OnMachineStarted(ctx *Context)
	OnMachineStopped(ctx *Context)
	OnError(err error, ctx *Context)
}

// BaseObserver implements Observer with no-op methods; embed it and
// override only the callbacks you care about.
type BaseObserver struct{}

func (BaseObserver) OnStateEnter(string, *Context)             {}
func (BaseObserver) OnStateExit(string, *Context)               {}
func (BaseObserver) OnTransition(string, string, Event, *Context) {}
func (BaseObserver) OnEventProcessed(Event, *Context)           {}
func (BaseObserver) OnEventMissed(Event, *Context)              {}
func (BaseObserver) OnMachineStarted(*Context)                  {}
func (BaseObserver) OnMachineStopped(*Context)                  {}
func (BaseObserver) OnError(error, *Context)                    {}

// ObserverManager fans a Machine's lifecycle callbacks out to every
// registered Observer, recovering from (and reporting through OnError) any
// panic an observer itself raises so that a broken observer can never take
// the statechart down with it.
type ObserverManager struct {
	observers []Observer
}

func newObserverManager() *ObserverManager {
	return &ObserverManager{}
}

// Add registers an Observer.
func (om *ObserverManager) Add(o Observer) {
	om.observers = append(om.observers, o)
}

// Remove unregisters a previously added Observer (by identity).
func (om *ObserverManager) Remove(o Observer) {
	for i, existing := range om.observers {
		if existing == o {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			return
		}
	}
}

// guard runs fn (one Observer's callback), recovering a panic so it can
// never take the statechart down. A recovered panic is still observable: it
// is forwarded to the same observer's own OnError, itself wrapped in a
// second recover so an observer that panics in both its callback and its
// OnError can't escape either.
func (om *ObserverManager) guard(name string, o Observer, ctx *Context, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			func() {
				defer func() { recover() }()
				o.OnError(fmt.Errorf("observer panic in %s: %v", name, r), ctx)
			}()
		}
	}()
	fn()
}

func (om *ObserverManager) notifyStateEnter(state string, ctx *Context) {
	for _, o := range om.observers {
		o := o
		om.guard("OnStateEnter", o, ctx, func() { o.OnStateEnter(state, ctx) })
	}
}

func (om *ObserverManager) notifyStateExit(state string, ctx *Context) {
	for _, o := range om.observers {
		o := o
		om.guard("OnStateExit", o, ctx, func() { o.OnStateExit(state, ctx) })
	}
}

func (om *ObserverManager) notifyTransition(from, to string, event Event, ctx *Context) {
	for _, o := range om.observers {
		o := o
		om.guard("OnTransition", o, ctx, func() { o.OnTransition(from, to, event, ctx) })
	}
}

func (om *ObserverManager) notifyEventProcessed(event Event, ctx *Context) {
	for _, o := range om.observers {
		o := o
		om.guard("OnEventProcessed", o, ctx, func() { o.OnEventProcessed(event, ctx) })
	}
}

func (om *ObserverManager) notifyEventMissed(event Event, ctx *Context) {
	for _, o := range om.observers {
		o := o
		om.guard("OnEventMissed", o, ctx, func() { o.OnEventMissed(event, ctx) })
	}
}

func (om *ObserverManager) notifyMachineStarted(ctx *Context) {
	for _, o := range om.observers {
		o := o
		om.guard("OnMachineStarted", o, ctx, func() { o.OnMachineStarted(ctx) })
	}
}

func (om *ObserverManager) notifyMachineStopped(ctx *Context) {
	for _, o := range om.observers {
		o := o
		om.guard("OnMachineStopped", o, ctx, func() { o.OnMachineStopped(ctx) })
	}
}

func (om *ObserverManager) notifyError(err error, ctx *Context) {
	for _, o := range om.observers {
		o := o
		om.guard("OnError", o, ctx, func() { o.OnError(err, ctx) })
	}
}
