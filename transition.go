package corestate

// transitionEdge is one declared transition, internal to a Machine's
// transition table. Exported Transition/InternalTransition build functions
// construct these; the dispatcher is the only other reader.
type transitionEdge struct {
	source handle
	target handle // invalidHandle for internal transitions
	event  string // "" matches completion dispatches and any Event with an empty Name
	guard  GuardFunc
	action ActionFunc

	internal bool
	local    bool

	// declOrder is this edge's position in the overall declaration order.
	// The dispatcher does not read it: selectEdge breaks ties by walking
	// outEdges, which buildIndex fills in the same declaration order.
	declOrder int
}

// matches reports whether this edge is a candidate for the given event name.
func (t *transitionEdge) matches(eventName string) bool {
	return t.event == eventName
}

// ancestorChain returns h, parent(h), ..., root, inclusive of h.
func (m *Machine) ancestorChain(h handle) []handle {
	chain := make([]handle, 0, 8)
	for cur := h; cur != invalidHandle; cur = m.nodes[cur].parent {
		chain = append(chain, cur)
	}
	return chain
}

// lowestCommonAncestor finds the deepest node that is an ancestor of (or
// equal to) both a and b.
func (m *Machine) lowestCommonAncestor(a, b handle) handle {
	bAnc := m.ancestorChain(b)
	inB := make(map[handle]bool, len(bAnc))
	for _, h := range bAnc {
		inB[h] = true
	}
	for cur := a; cur != invalidHandle; cur = m.nodes[cur].parent {
		if inB[cur] {
			return cur
		}
	}
	return invalidHandle
}
