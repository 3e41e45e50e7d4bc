package corestate

import (
	"context"
	"fmt"
	"sync"
)

// Machine is a built, runnable statechart: an arena of nodes plus the
// transition table declared over them. Build it with Statechart and the
// constructor functions in builder.go, then Start it and Dispatch Events
// into it. A Machine is safe for concurrent callers of Dispatch/Enqueue —
// dispatch itself always runs single-threaded and non-reentrant, serialized
// behind an internal mutex, exactly like the single-threaded cooperative
// dispatcher it is.
type Machine struct {
	name     string
	nodes    []node
	root     handle
	buildErr error

	transitions []transitionEdge
	outEdges    map[handle][]int

	active        map[handle]bool
	historyMemory map[handle]handle

	// doActivities tracks the long-running goroutine (if any) spawned for
	// each currently active node's do-activity, keyed by node handle.
	doActivities map[handle]*runningDo

	queue []Event

	observers *ObserverManager

	started     bool
	dispatching bool
	finished    bool

	mu sync.Mutex
}

// Name returns the statechart's declared name.
func (m *Machine) Name() string { return m.name }

// Root returns a Handle to the implicit top-level composite.
func (m *Machine) Root() Handle { return Handle{m: m, idx: m.root} }

// AddObserver registers an Observer to be notified of lifecycle events from
// this point forward.
func (m *Machine) AddObserver(o Observer) {
	m.observers.Add(o)
}

// RemoveObserver unregisters a previously added Observer.
func (m *Machine) RemoveObserver(o Observer) {
	m.observers.Remove(o)
}

func (m *Machine) buildIndex() {
	m.outEdges = make(map[handle][]int, len(m.transitions))
	for i := range m.transitions {
		s := m.transitions[i].source
		m.outEdges[s] = append(m.outEdges[s], i)
	}
}

// validate walks the built tree checking the invariants Start depends on:
// every Composite/Root/region has a resolvable Initial, every Choice has at
// least one declared branch, every Concurrent has at least one region.
func (m *Machine) validate() error {
	if m.buildErr != nil {
		return m.buildErr
	}
	for h := range m.nodes {
		nd := &m.nodes[h]
		switch nd.kind {
		case KindRoot, KindComposite:
			if !m.hasResolvableInitial(handle(h)) {
				return NewMissingInitialError(nd.name)
			}
		case KindConcurrent:
			if len(nd.children) == 0 {
				return &ModelError{Code: ErrCodeMissingInitial, Subject: nd.name, Message: "concurrent state has no regions"}
			}
		case KindChoice:
			if len(nd.choiceBranches) == 0 {
				return &ModelError{Code: ErrCodeMissingInitial, Subject: nd.name, Message: "choice has no declared branches"}
			}
		}
	}
	return nil
}

func (m *Machine) hasResolvableInitial(h handle) bool {
	for _, c := range m.nodes[h].children {
		if m.nodes[c].kind == KindInitial && m.nodes[c].initialTarget != invalidHandle {
			return true
		}
	}
	return false
}

// Start validates the built statechart and performs the initial entry
// cascade from the root down through every Initial pseudostate (and any
// Concurrent regions) it finds along the way. Start fails without altering
// the Machine's state if the model is invalid or already started.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return NewAlreadyStartedError()
	}
	if err := m.validate(); err != nil {
		return err
	}
	m.buildIndex()

	ctx := newContext(nil, Event{})
	m.dispatching = true
	err := m.enterInto(m.root, ctx)
	m.dispatching = false
	if err != nil {
		m.observers.notifyError(err, ctx)
		return err
	}
	if err := m.processCompletions(ctx); err != nil {
		m.observers.notifyError(err, ctx)
		return err
	}
	m.started = true
	m.observers.notifyMachineStarted(ctx)
	return nil
}

// Stop exits every currently active node, innermost first, and marks the
// Machine as no longer started. A stopped Machine can be Start-ed again,
// re-running the initial entry cascade from scratch (shallow history
// recorded before Stop is preserved and will be honored on the next Start
// if a ShallowHistory pseudostate is reached again).
func (m *Machine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return NewMachineNotStartedError("stop")
	}
	ctx := newContext(nil, Event{})
	exitList := m.exitDescendantsOnly(m.root)
	m.recordHistory(exitList)
	m.recordHistory([]handle{m.root})
	exitList = append(exitList, m.root)
	for _, h := range exitList {
		if err := m.exitNode(h, ctx); err != nil {
			return err
		}
	}
	m.started = false
	m.finished = false
	m.observers.notifyMachineStopped(ctx)
	return nil
}

// IsActive reports whether h is part of the current active configuration.
func (m *Machine) IsActive(h Handle) bool {
	if h.m != m || !h.valid() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[h.idx]
}

// IsFinished reports whether the root composite's active child is a Final
// state — the whole statechart has run to completion.
func (m *Machine) IsFinished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

// ActiveStates returns the current active configuration as an ordered
// sequence (outermost first, following declaration order among siblings),
// including the root and every active composite/concurrent/region on the
// way down to each active leaf.
func (m *Machine) ActiveStates() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Handle
	for _, h := range m.activeStatesOrdered() {
		out = append(out, Handle{m: m, idx: h})
	}
	return out
}

func (m *Machine) activeStatesOrdered() []handle {
	var out []handle
	var walk func(h handle)
	walk = func(h handle) {
		out = append(out, h)
		nd := &m.nodes[h]
		switch nd.kind {
		case KindConcurrent:
			for _, r := range nd.children {
				if m.active[r] {
					walk(r)
				}
			}
		case KindRoot, KindComposite:
			for _, c := range nd.children {
				if m.active[c] {
					walk(c)
					break
				}
			}
		}
	}
	if m.active[m.root] {
		walk(m.root)
	}
	return out
}

// Enqueue appends event to the Machine's internal FIFO queue without
// dispatching it. Draining the queue (typically between or after
// synchronous Dispatch calls) is left to the embedding; see the equeue
// package for an optional convenience loop.
func (m *Machine) Enqueue(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return NewMachineNotStartedError("enqueue")
	}
	m.queue = append(m.queue, event)
	return nil
}

// PopQueued removes and returns the oldest enqueued Event, if any.
func (m *Machine) PopQueued() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return Event{}, false
	}
	e := m.queue[0]
	m.queue = m.queue[1:]
	return e, true
}

// Pending reports how many events are currently enqueued.
func (m *Machine) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Dispatch fires event synchronously against the current active
// configuration using inside-out routing: the innermost active state gets
// the first chance to handle it, each enclosing composite gets the next
// chance only if nothing below it matched, and an active Concurrent state
// broadcasts the event to every one of its regions (sequentially, in
// declaration order — never interleaved) before falling back to its own
// transitions if none of them matched either. Dispatch returns false, with
// a nil error, if no declared transition anywhere matched — that is not a
// failure. A non-nil error means a guard or action callback failed (or
// panicked); the active configuration is left exactly where that callback
// interrupted it.
func (m *Machine) Dispatch(event Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return false, NewMachineNotStartedError("dispatch")
	}
	if m.dispatching {
		return false, NewReentrantDispatchError()
	}

	m.dispatching = true
	defer func() { m.dispatching = false }()

	ctx := newContext(nil, event)
	fired, err := m.tryFire(m.root, event.Name, ctx)
	if err != nil {
		m.observers.notifyError(err, ctx)
		return false, err
	}
	if !fired {
		m.observers.notifyEventMissed(event, ctx)
		return false, nil
	}
	m.observers.notifyEventProcessed(event, ctx)
	if err := m.processCompletions(ctx); err != nil {
		m.observers.notifyError(err, ctx)
		return true, err
	}
	return true, nil
}

// tryFire implements inside-out dispatch with composite forwarding and
// concurrent broadcasting, rooted at n.
func (m *Machine) tryFire(n handle, eventName string, ctx *Context) (bool, error) {
	nd := &m.nodes[n]
	switch nd.kind {
	case KindConcurrent:
		anyFired := false
		for _, r := range nd.children {
			if !m.active[r] {
				continue
			}
			fired, err := m.tryFire(r, eventName, ctx)
			if err != nil {
				return false, err
			}
			if fired {
				anyFired = true
			}
		}
		if anyFired {
			return true, nil
		}
	case KindRoot, KindComposite:
		for _, c := range nd.children {
			if m.active[c] {
				fired, err := m.tryFire(c, eventName, ctx)
				if err != nil {
					return false, err
				}
				if fired {
					return true, nil
				}
				break
			}
		}
	}

	edge, err := m.selectEdge(n, eventName, ctx)
	if err != nil {
		return false, err
	}
	if edge == nil {
		return false, nil
	}
	if err := m.fireEdge(edge, ctx); err != nil {
		return false, err
	}
	return true, nil
}

// selectEdge picks the outgoing edge of n that fires for eventName: the
// first declared guarded edge whose guard passes, or, if none passed, the
// first declared unguarded edge.
func (m *Machine) selectEdge(n handle, eventName string, ctx *Context) (*transitionEdge, error) {
	var guardedMatch, unguardedMatch *transitionEdge
	for _, idx := range m.outEdges[n] {
		e := &m.transitions[idx]
		if !e.matches(eventName) {
			continue
		}
		if e.guard != nil {
			if guardedMatch != nil {
				continue
			}
			ok, err := m.evalGuard(e.guard, ctx)
			if err != nil {
				return nil, err
			}
			if ok {
				guardedMatch = e
			}
		} else if unguardedMatch == nil {
			unguardedMatch = e
		}
	}
	if guardedMatch != nil {
		return guardedMatch, nil
	}
	return unguardedMatch, nil
}

func (m *Machine) evalGuard(g GuardFunc, ctx *Context) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = NewActionError("guard", "", fmt.Errorf("panic: %v", r))
		}
	}()
	return g(ctx), nil
}

func (m *Machine) runCallback(a Action, phase, stateName string, ctx *Context) (err error) {
	if a == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = NewActionError(phase, stateName, fmt.Errorf("panic: %v", r))
		}
	}()
	if e := a(ctx); e != nil {
		return NewActionError(phase, stateName, e)
	}
	return nil
}

// fireEdge performs the full exit/action/entry sequence for a single
// transition edge. Internal transitions skip exit/entry entirely.
func (m *Machine) fireEdge(e *transitionEdge, ctx *Context) error {
	if e.internal {
		return m.runCallback(e.action, "action", m.nodes[e.source].name, ctx)
	}

	source, target := e.source, e.target
	lca := m.lowestCommonAncestor(source, target)
	effectiveLCA := lca
	if !e.local && (lca == source || lca == target) {
		effectiveLCA = m.nodes[lca].parent
	}

	fromName, toName := m.nodes[source].name, m.nodes[target].name
	m.observers.notifyTransition(fromName, toName, ctx.event, ctx)

	exitList := m.exitDescendantsOnly(source)
	if effectiveLCA != source {
		exitList = append(exitList, source)
		for cur := m.nodes[source].parent; cur != effectiveLCA; cur = m.nodes[cur].parent {
			exitList = append(exitList, cur)
		}
	}
	m.recordHistory(exitList)
	for _, h := range exitList {
		if err := m.exitNode(h, ctx); err != nil {
			return err
		}
	}

	if err := m.runCallback(e.action, "action", fromName, ctx); err != nil {
		return err
	}

	if effectiveLCA != target {
		var down []handle
		for cur := m.nodes[target].parent; cur != effectiveLCA; cur = m.nodes[cur].parent {
			down = append(down, cur)
		}
		for i := len(down) - 1; i >= 0; i-- {
			if err := m.enterPlain(down[i], ctx); err != nil {
				return err
			}
		}
		if err := m.enterInto(target, ctx); err != nil {
			return err
		}
	} else if e.local {
		// Local transition resolving into an enclosing composite: target was
		// never exited (it's effectiveLCA, not in exitList) so it isn't
		// re-entered either, but the exit cascade above just removed its
		// previous active child. Give it a fresh one via its own
		// initial/region cascade, same as a first-time entry would.
		if err := m.cascadeChildren(target, ctx); err != nil {
			return err
		}
	}
	return nil
}

// cascadeChildren resolves h's default active descendants without entering h
// itself: a Composite/Root cascades into its Initial pseudostate, a
// Concurrent cascades into every one of its regions. Used both for a node's
// first-time entry (via enterInto) and for a local transition that resolves
// into an enclosing composite without re-entering it.
func (m *Machine) cascadeChildren(h handle, ctx *Context) error {
	nd := &m.nodes[h]
	switch nd.kind {
	case KindRoot, KindComposite:
		for _, c := range nd.children {
			if m.nodes[c].kind == KindInitial {
				return m.enterInto(c, ctx)
			}
		}
		return NewMissingInitialError(nd.name)
	case KindConcurrent:
		for _, r := range nd.children {
			if err := m.enterInto(r, ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// exitDescendantsOnly returns, innermost first, the currently active
// descendants strictly below h (never including h itself).
func (m *Machine) exitDescendantsOnly(h handle) []handle {
	nd := &m.nodes[h]
	var seq []handle
	switch nd.kind {
	case KindConcurrent:
		for _, r := range nd.children {
			if m.active[r] {
				seq = append(seq, m.exitDescendantsOnly(r)...)
				seq = append(seq, r)
			}
		}
	case KindRoot, KindComposite:
		for _, c := range nd.children {
			if m.active[c] {
				seq = append(seq, m.exitDescendantsOnly(c)...)
				seq = append(seq, c)
				break
			}
		}
	}
	return seq
}

// recordHistory captures, for every Composite/Root node about to be exited,
// which of its children is currently active, so a later ShallowHistory
// entry can restore it. Must run before any node in nodes is actually
// exited.
func (m *Machine) recordHistory(nodes []handle) {
	for _, h := range nodes {
		nd := &m.nodes[h]
		if nd.kind != KindRoot && nd.kind != KindComposite {
			continue
		}
		for _, c := range nd.children {
			if m.active[c] {
				m.historyMemory[h] = c
				break
			}
		}
	}
}

func (m *Machine) exitNode(h handle, ctx *Context) error {
	nd := &m.nodes[h]
	m.cancelDoActivity(h)
	if err := m.runCallback(nd.exit, "exit", nd.name, ctx); err != nil {
		return err
	}
	m.observers.notifyStateExit(nd.name, ctx)
	delete(m.active, h)
	return nil
}

func (m *Machine) enterPlain(h handle, ctx *Context) error {
	nd := &m.nodes[h]
	m.active[h] = true
	if err := m.runCallback(nd.entry, "entry", nd.name, ctx); err != nil {
		return err
	}
	m.observers.notifyStateEnter(nd.name, ctx)
	m.startDoActivity(h, ctx)
	return nil
}

// runningDo tracks one active node's do-activity goroutine: cancel signals
// it to stop, done closes once it actually has.
type runningDo struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startDoActivity spawns h's do-activity, if it declared one, as a goroutine
// fed a *Context whose Done channel closes the moment cancelDoActivity runs.
func (m *Machine) startDoActivity(h handle, ctx *Context) {
	nd := &m.nodes[h]
	if nd.doActivity == nil {
		return
	}
	activityCtx, cancel := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	m.doActivities[h] = &runningDo{cancel: cancel, done: done}
	childCtx := newContext(activityCtx, ctx.event)
	activity, name := nd.doActivity, nd.name
	go func() {
		defer close(done)
		if err := m.runCallback(activity, "do", name, childCtx); err != nil {
			m.observers.notifyError(err, childCtx)
		}
	}()
}

// cancelDoActivity signals h's running do-activity (if any) for cancellation
// and blocks until it has actually returned, which is what guarantees the
// do-activity contract's cancel-before-exit ordering.
func (m *Machine) cancelDoActivity(h handle) {
	run, ok := m.doActivities[h]
	if !ok {
		return
	}
	delete(m.doActivities, h)
	run.cancel()
	<-run.done
}

// enterInto marks h (and, recursively, whatever h resolves or cascades
// into) active. If h is a pseudostate it is resolved rather than entered:
// Initial and ShallowHistory each resolve to exactly one further handle;
// Choice evaluates its branches and resolves to whichever target's guard
// passed. A real state is entered normally, then — if it is a Composite —
// cascades into its Initial, or — if it is a Concurrent — cascades into
// every one of its regions in declaration order.
func (m *Machine) enterInto(h handle, ctx *Context) error {
	nd := &m.nodes[h]
	switch nd.kind {
	case KindInitial:
		if nd.initialTarget == invalidHandle {
			return NewMissingInitialError(m.nodes[nd.parent].name)
		}
		if err := m.runCallback(nd.cascadeAction, "action", nd.name, ctx); err != nil {
			return err
		}
		return m.enterInto(nd.initialTarget, ctx)

	case KindShallowHistory:
		target, ok := m.historyMemory[nd.parent]
		if !ok {
			target = nd.historyDefault
		}
		if target == invalidHandle {
			return NewMissingInitialError(m.nodes[nd.parent].name)
		}
		if err := m.runCallback(nd.cascadeAction, "action", nd.name, ctx); err != nil {
			return err
		}
		return m.enterInto(target, ctx)

	case KindChoice:
		edge, err := m.selectEdge(h, "", ctx)
		if err != nil {
			return err
		}
		if edge == nil {
			return NewChoiceUnresolvedError(nd.name)
		}
		if err := m.runCallback(edge.action, "action", nd.name, ctx); err != nil {
			return err
		}
		return m.enterInto(edge.target, ctx)

	default:
		if err := m.enterPlain(h, ctx); err != nil {
			return err
		}
		return m.cascadeChildren(h, ctx)
	}
}

// processCompletions synthesizes completion dispatches for every composite
// or concurrent state that has just reached completion (its active child is
// Final, or — for a Concurrent — every one of its regions has), repeating
// until a fixed point: firing one completion transition can itself
// immediately complete an enclosing state.
func (m *Machine) processCompletions(ctx *Context) error {
	seen := make(map[handle]bool)
	for {
		n, ok := m.findCompletedNode(seen)
		if !ok {
			break
		}
		seen[n] = true
		edge, err := m.selectEdge(n, "", ctx)
		if err != nil {
			return err
		}
		if edge == nil {
			continue
		}
		if err := m.fireEdge(edge, ctx); err != nil {
			return err
		}
	}
	m.finished = m.activeChildIsFinal(m.root)
	return nil
}

func (m *Machine) findCompletedNode(seen map[handle]bool) (handle, bool) {
	for i := 0; i < len(m.nodes); i++ {
		h := handle(i)
		if !m.active[h] || seen[h] {
			continue
		}
		nd := &m.nodes[h]
		if nd.kind != KindRoot && nd.kind != KindComposite {
			continue
		}
		if !m.activeChildIsFinal(h) {
			continue
		}
		parent := nd.parent
		if parent != invalidHandle && m.nodes[parent].kind == KindConcurrent {
			if seen[parent] || !m.allRegionsComplete(parent) {
				continue
			}
			return parent, true
		}
		return h, true
	}
	return invalidHandle, false
}

func (m *Machine) activeChildIsFinal(h handle) bool {
	for _, c := range m.nodes[h].children {
		if m.active[c] {
			return m.nodes[c].kind == KindFinal
		}
	}
	return false
}

func (m *Machine) allRegionsComplete(concurrent handle) bool {
	for _, r := range m.nodes[concurrent].children {
		if !m.active[r] || !m.activeChildIsFinal(r) {
			return false
		}
	}
	return true
}
