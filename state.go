package corestate

import "fmt"

// handle is a raw arena index, private to the Machine that owns the slice
// it indexes. The exported Handle type (in builder.go) pairs one of these
// with the owning *Machine so build-time functions can operate on a handle
// alone without a separate machine argument, matching the constructor-style
// build API.
type handle int

// invalidHandle marks the absence of a node reference (e.g. a composite with
// no declared initial pseudostate yet).
const invalidHandle handle = -1

// Kind identifies the role a node plays in the hierarchy. Five of these
// are "real" states in the UML sense that an active configuration can
// rest in (Root, State, Composite, Concurrent, Final); the rest are
// pseudostates, transient waypoints that a dispatch passes through but never
// lingers in.
type Kind int

const (
	// KindRoot is the implicit top-level composite every Statechart creates.
	KindRoot Kind = iota
	// KindState is a simple (atomic, non-decomposed) state.
	KindState
	// KindComposite is an OR-state: exactly one child is active at a time.
	KindComposite
	// KindConcurrent is an AND-state: every direct child (region) is active
	// whenever the concurrent state itself is active.
	KindConcurrent
	// KindFinal marks completion of the enclosing composite or region.
	KindFinal
	// KindInitial is the default-entry pseudostate of a composite/region.
	KindInitial
	// KindChoice is a dynamic branch point resolved by evaluating guards.
	KindChoice
	// KindShallowHistory restores a composite's most recently active direct
	// child instead of its declared initial child.
	KindShallowHistory
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindState:
		return "state"
	case KindComposite:
		return "composite"
	case KindConcurrent:
		return "concurrent"
	case KindFinal:
		return "final"
	case KindInitial:
		return "initial"
	case KindChoice:
		return "choice"
	case KindShallowHistory:
		return "shallow-history"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// isPseudo reports whether a node of this kind never appears in an active
// configuration on its own — dispatch always resolves through it to a real
// state before settling.
func (k Kind) isPseudo() bool {
	switch k {
	case KindInitial, KindChoice, KindShallowHistory:
		return true
	default:
		return false
	}
}

// node is one entry in a Machine's arena. Nodes never hold pointers to each
// other; every cross-reference is a Handle re-indexed through the owning
// Machine, which is what lets the hierarchy be built, copied, and inspected
// without reference cycles.
type node struct {
	kind   Kind
	name   string
	parent handle

	// children holds declared sub-nodes in declaration order. For KindRoot
	// and KindComposite this is the set of OR-decomposed children (including
	// any pseudostate children). For KindConcurrent this is the ordered list
	// of regions, each itself a KindComposite node.
	children []handle

	entry Action
	exit  Action

	// doActivity, if set, is a long-running ActionFunc started in its own
	// goroutine the instant this node is entered. It receives a *Context
	// whose Done channel closes the moment the state is slated to exit; the
	// runtime waits for it to return before running exit, per the do-activity
	// cancel-before-exit guarantee.
	doActivity ActionFunc

	// initialTarget is set on a KindInitial node once a Transition from it
	// has been declared; it names the default child a composite/region
	// enters when nothing else is remembered.
	initialTarget handle

	// historyDefault is set on a KindShallowHistory node the same way,
	// naming the child to use the first time no history has been recorded
	// yet for the owning composite.
	historyDefault handle

	// choiceBranches lists, in declaration order, the transition handles
	// defined out of a KindChoice node.
	choiceBranches []int

	// cascadeAction runs once, when a KindInitial or KindShallowHistory
	// pseudostate is resolved during an entry cascade — the UML equivalent
	// of an action on the initial/default transition itself.
	cascadeAction Action
}
