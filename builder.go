package corestate

import "fmt"

// Handle is an opaque reference to one node of a Statechart, returned by the
// build-time constructors below and consumed by Transition,
// InternalTransition, and the Machine's run-time inspection methods. A
// Handle is only valid for the Machine that created it.
type Handle struct {
	m   *Machine
	idx handle
}

func (h Handle) valid() bool {
	return h.m != nil && h.idx >= 0 && int(h.idx) < len(h.m.nodes)
}

// Statechart creates a new, empty statechart named name and returns its
// owning Machine together with a Handle to the implicit root composite.
// Every other node is built by passing a Handle — this one or one it is an
// ancestor of — to Composite, Concurrent, State, Final, Initial,
// ShallowHistory, or Choice.
func Statechart(name string) (*Machine, Handle) {
	m := &Machine{
		name:          name,
		active:        make(map[handle]bool),
		historyMemory: make(map[handle]handle),
		doActivities:  make(map[handle]*runningDo),
		observers:     newObserverManager(),
	}
	root := m.addNode(node{kind: KindRoot, name: name, parent: invalidHandle, initialTarget: invalidHandle})
	return m, Handle{m: m, idx: root}
}

func (m *Machine) addNode(n node) handle {
	m.nodes = append(m.nodes, n)
	return handle(len(m.nodes) - 1)
}

// recordErr remembers the first build-time error encountered. Subsequent
// build calls keep running (so a caller that ignores return Handles doesn't
// panic) but Start will refuse to run a machine with a non-nil build error.
func (m *Machine) recordErr(err error) {
	if m.buildErr == nil {
		m.buildErr = err
	}
}

func (m *Machine) checkParent(parent Handle, fn string) bool {
	if !parent.valid() {
		m.recordErr(&ModelError{Code: ErrCodeUnknownHandle, Subject: fn, Message: "parent handle does not belong to this statechart"})
		return false
	}
	return true
}

func (m *Machine) siblingNamed(parent handle, name string) bool {
	for _, c := range m.nodes[parent].children {
		if m.nodes[c].name == name {
			return true
		}
	}
	return false
}

// siblingOfKind reports whether parent already has a direct child of kind —
// used to reject a second Initial or ShallowHistory under the same
// composite/region.
func (m *Machine) siblingOfKind(parent handle, kind Kind) bool {
	for _, c := range m.nodes[parent].children {
		if m.nodes[c].kind == kind {
			return true
		}
	}
	return false
}

// checkRegionChild rejects declaring a non-Composite direct child of a
// Concurrent state: every direct child of a Concurrent is a region, and a
// region must itself be a Composite.
func (m *Machine) checkRegionChild(parent Handle, kind Kind) bool {
	if m.nodes[parent.idx].kind == KindConcurrent && kind != KindComposite {
		err := NewInvalidRegionError(m.nodes[parent.idx].name, kind)
		m.recordErr(err)
		return false
	}
	return true
}

func (m *Machine) addChild(parent, child handle) {
	m.nodes[parent].children = append(m.nodes[parent].children, child)
}

// newNamedChild is the shared implementation behind Composite/Concurrent/State.
func newNamedChild(parent Handle, name string, kind Kind) Handle {
	m := parent.m
	if !m.checkParent(parent, kind.String()) {
		return Handle{m: m, idx: invalidHandle}
	}
	if !m.checkRegionChild(parent, kind) {
		return Handle{m: m, idx: invalidHandle}
	}
	if m.siblingNamed(parent.idx, name) {
		m.recordErr(NewDuplicateNameError(name))
		return Handle{m: m, idx: invalidHandle}
	}
	idx := m.addNode(node{
		kind:          kind,
		name:          name,
		parent:        parent.idx,
		initialTarget: invalidHandle,
	})
	m.addChild(parent.idx, idx)
	return Handle{m: m, idx: idx}
}

// Composite declares an OR-decomposed child state of parent: exactly one of
// its own children is active whenever it is. A Composite must have an
// Initial pseudostate (and a Transition out of it) before Start.
func Composite(parent Handle, name string) Handle {
	return newNamedChild(parent, name, KindComposite)
}

// Concurrent declares an AND-decomposed child of parent: every region
// declared as one of its direct Composite children is active whenever it
// is, all running in the same single-threaded dispatch, processed
// sequentially in declaration order.
func Concurrent(parent Handle, name string) Handle {
	return newNamedChild(parent, name, KindConcurrent)
}

// State declares a simple (atomic) child state of parent.
func State(parent Handle, name string) Handle {
	return newNamedChild(parent, name, KindState)
}

func (m *Machine) anonName(parent handle, label string) string {
	return fmt.Sprintf("%s.%s#%d", m.nodes[parent].name, label, len(m.nodes[parent].children))
}

// Final declares a Final pseudo-child of parent (a Composite or a region).
// Entering it signals completion of parent: the dispatcher synthesizes a
// completion event against parent's own parent once every sibling region
// (if parent is one of several regions of a Concurrent) has also reached a
// Final child.
func Final(parent Handle) Handle {
	m := parent.m
	if !m.checkParent(parent, "Final") {
		return Handle{m: m, idx: invalidHandle}
	}
	if !m.checkRegionChild(parent, KindFinal) {
		return Handle{m: m, idx: invalidHandle}
	}
	idx := m.addNode(node{kind: KindFinal, name: m.anonName(parent.idx, "final"), parent: parent.idx, initialTarget: invalidHandle})
	m.addChild(parent.idx, idx)
	return Handle{m: m, idx: idx}
}

// Initial declares the default-entry pseudostate of parent. Exactly one
// Transition must be declared from the returned Handle, naming parent's
// default child; that Transition may not carry On or When (an initial
// transition is always unconditional, and Transition rejects either with a
// *ModelError) but its action, if any, still runs during the entry cascade.
func Initial(parent Handle) Handle {
	m := parent.m
	if !m.checkParent(parent, "Initial") {
		return Handle{m: m, idx: invalidHandle}
	}
	if !m.checkRegionChild(parent, KindInitial) {
		return Handle{m: m, idx: invalidHandle}
	}
	if m.siblingOfKind(parent.idx, KindInitial) {
		m.recordErr(NewDuplicatePseudostateError(m.nodes[parent.idx].name, KindInitial))
		return Handle{m: m, idx: invalidHandle}
	}
	idx := m.addNode(node{kind: KindInitial, name: m.anonName(parent.idx, "initial"), parent: parent.idx, initialTarget: invalidHandle})
	m.addChild(parent.idx, idx)
	return Handle{m: m, idx: idx}
}

// ShallowHistory declares a shallow-history pseudostate of parent. A
// Transition into parent that targets the returned Handle resolves, at
// entry time, to whichever direct child of parent was last active — or, the
// first time (or whenever no history has yet been recorded), to the child
// named by a Transition declared from the returned Handle. Only the direct
// child is remembered; if that child is itself composite, it re-enters
// through its own Initial rather than restoring any of its descendants.
func ShallowHistory(parent Handle) Handle {
	m := parent.m
	if !m.checkParent(parent, "ShallowHistory") {
		return Handle{m: m, idx: invalidHandle}
	}
	if !m.checkRegionChild(parent, KindShallowHistory) {
		return Handle{m: m, idx: invalidHandle}
	}
	if m.siblingOfKind(parent.idx, KindShallowHistory) {
		m.recordErr(NewDuplicatePseudostateError(m.nodes[parent.idx].name, KindShallowHistory))
		return Handle{m: m, idx: invalidHandle}
	}
	idx := m.addNode(node{kind: KindShallowHistory, name: m.anonName(parent.idx, "history"), parent: parent.idx, initialTarget: invalidHandle, historyDefault: invalidHandle})
	m.addChild(parent.idx, idx)
	return Handle{m: m, idx: idx}
}

// Choice declares a dynamic branch pseudostate of parent. One or more
// Transitions must be declared from the returned Handle; at entry time the
// guarded ones are evaluated in declaration order and the first whose guard
// passes decides where entry actually lands; if none passes, the first
// declared unguarded branch (the "else" branch) is taken, wherever it was
// declared among the guarded ones. If none is taken, Dispatch (or
// Start, if the choice sits on the initial path) fails with a
// *ConfigurationError.
func Choice(parent Handle) Handle {
	m := parent.m
	if !m.checkParent(parent, "Choice") {
		return Handle{m: m, idx: invalidHandle}
	}
	if !m.checkRegionChild(parent, KindChoice) {
		return Handle{m: m, idx: invalidHandle}
	}
	idx := m.addNode(node{kind: KindChoice, name: m.anonName(parent.idx, "choice"), parent: parent.idx, initialTarget: invalidHandle})
	m.addChild(parent.idx, idx)
	return Handle{m: m, idx: idx}
}

// TransitionOption configures an optional facet of a Transition or
// InternalTransition call: the triggering event name, a guard, an action,
// or (Transition only) locality.
type TransitionOption func(*transitionEdge)

// On sets the event name a transition fires on. Omitting On declares a
// completion transition, which the dispatcher fires automatically the
// instant parent's region or composite reaches a Final child. A completion
// transition matches the empty event name, so an Event with an empty Name
// passed to Dispatch also fires it.
func On(eventName string) TransitionOption {
	return func(e *transitionEdge) { e.event = eventName }
}

// When attaches a guard: the transition is only eligible while it returns
// true.
func When(guard GuardFunc) TransitionOption {
	return func(e *transitionEdge) { e.guard = guard }
}

// Do attaches an action, run once the transition has been chosen, after all
// exits and before any entries (or, for an internal transition, as the only
// effect).
func Do(action ActionFunc) TransitionOption {
	return func(e *transitionEdge) { e.action = action }
}

// Local marks a Transition as local: when one endpoint is an ancestor of
// the other, the ancestor is not exited and re-entered. Local has no effect
// between states with no ancestor relationship (the transition is then
// necessarily external) and none on InternalTransition, which accepts it but
// never exits or enters anything at all.
func Local() TransitionOption {
	return func(e *transitionEdge) { e.local = true }
}

// Transition declares an edge of the statechart from start to end,
// optionally guarded and/or bearing an action, firing either on a named
// event (On) or, if On is omitted, as a completion transition. When start
// is an Initial, ShallowHistory, or Choice pseudostate, end names (one of)
// its resolution target(s) instead of an event-triggered edge; see Initial,
// ShallowHistory, and Choice.
func Transition(start, end Handle, opts ...TransitionOption) error {
	m := start.m
	if m == nil {
		m = end.m
	}
	if !start.valid() || !end.valid() || start.m != end.m {
		err := NewUnknownHandleError("Transition")
		m.recordErr(err)
		return err
	}

	e := transitionEdge{source: start.idx, target: end.idx, declOrder: len(m.transitions)}
	for _, opt := range opts {
		opt(&e)
	}

	switch m.nodes[start.idx].kind {
	case KindFinal, KindRoot:
		err := NewInvalidTransitionSourceError(m.nodes[start.idx].name, m.nodes[start.idx].kind)
		m.recordErr(err)
		return err
	case KindInitial:
		if e.event != "" || e.guard != nil {
			err := NewGuardedPseudoTransitionError(m.nodes[start.idx].name, KindInitial)
			m.recordErr(err)
			return err
		}
		if m.nodes[start.idx].initialTarget != invalidHandle {
			err := NewAmbiguousInitialError(m.nodes[m.nodes[start.idx].parent].name)
			m.recordErr(err)
			return err
		}
		m.nodes[start.idx].initialTarget = end.idx
		m.nodes[start.idx].cascadeAction = e.action
		return nil
	case KindShallowHistory:
		if e.event != "" || e.guard != nil {
			err := NewGuardedPseudoTransitionError(m.nodes[start.idx].name, KindShallowHistory)
			m.recordErr(err)
			return err
		}
		m.nodes[start.idx].historyDefault = end.idx
		m.nodes[start.idx].cascadeAction = e.action
		return nil
	case KindChoice:
		idx := len(m.transitions)
		m.transitions = append(m.transitions, e)
		m.nodes[start.idx].choiceBranches = append(m.nodes[start.idx].choiceBranches, idx)
		return nil
	default:
		m.transitions = append(m.transitions, e)
		return nil
	}
}

// InternalTransition declares a transition that fires on an event (or, if
// On is omitted, never — an internal transition with no event is a no-op
// and is rejected) without exiting or re-entering state, leaving the active
// configuration untouched. Local has no effect here.
func InternalTransition(state Handle, opts ...TransitionOption) error {
	m := state.m
	if !state.valid() {
		err := NewUnknownHandleError("InternalTransition")
		m.recordErr(err)
		return err
	}
	e := transitionEdge{source: state.idx, target: invalidHandle, internal: true, declOrder: len(m.transitions)}
	for _, opt := range opts {
		opt(&e)
	}
	if e.event == "" {
		err := &ModelError{Code: ErrCodeDuplicateName, Subject: m.nodes[state.idx].name, Message: "internal transition requires On(event)"}
		m.recordErr(err)
		return err
	}
	m.transitions = append(m.transitions, e)
	return nil
}

// Name returns the declared (or auto-generated, for pseudostates and Final)
// name of the node h refers to.
func (h Handle) Name() string {
	if !h.valid() {
		return ""
	}
	return h.m.nodes[h.idx].name
}

// Kind returns the node kind h refers to.
func (h Handle) Kind() Kind {
	if !h.valid() {
		return KindState
	}
	return h.m.nodes[h.idx].kind
}

// WithEntry attaches an entry action to the state h refers to, run every
// time dispatch enters it.
func (h Handle) WithEntry(action Action) Handle {
	if h.valid() {
		if h.m.nodes[h.idx].kind == KindRoot {
			h.m.recordErr(NewRootRestrictedError("WithEntry"))
			return h
		}
		h.m.nodes[h.idx].entry = action
	}
	return h
}

// WithExit attaches an exit action to the state h refers to, run every time
// dispatch exits it.
func (h Handle) WithExit(action Action) Handle {
	if h.valid() {
		if h.m.nodes[h.idx].kind == KindRoot {
			h.m.recordErr(NewRootRestrictedError("WithExit"))
			return h
		}
		h.m.nodes[h.idx].exit = action
	}
	return h
}

// WithDo attaches a do-activity to the state h refers to: a long-running
// ActionFunc started (as a goroutine) the instant the state is entered and
// signalled for cancellation — via the *Context it receives — before its
// exit action runs. A do-activity is only meaningful on a real state, never
// the root.
func (h Handle) WithDo(activity ActionFunc) Handle {
	if h.valid() {
		if h.m.nodes[h.idx].kind == KindRoot {
			h.m.recordErr(NewRootRestrictedError("WithDo"))
			return h
		}
		h.m.nodes[h.idx].doActivity = activity
	}
	return h
}
