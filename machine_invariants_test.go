package corestate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corestate/corestate"
)

func buildTrafficLight(t *testing.T) (*corestate.Machine, map[string]corestate.Handle) {
	t.Helper()
	m, root := corestate.Statechart("traffic")
	h := map[string]corestate.Handle{}

	operating := corestate.Composite(root, "operating")
	h["operating"] = operating
	h["red"] = corestate.State(operating, "red")
	h["yellow"] = corestate.State(operating, "yellow")
	h["green"] = corestate.State(operating, "green")
	opInit := corestate.Initial(operating)

	require.NoError(t, corestate.Transition(opInit, h["red"]))
	require.NoError(t, corestate.Transition(h["red"], h["green"], corestate.On("next")))
	require.NoError(t, corestate.Transition(h["green"], h["yellow"], corestate.On("next")))
	require.NoError(t, corestate.Transition(h["yellow"], h["red"], corestate.On("next")))

	rootInit := corestate.Initial(root)
	require.NoError(t, corestate.Transition(rootInit, operating))

	return m, h
}

// Every state in the active configuration has every ancestor in the active
// configuration too.
func TestInvariantAncestorClosure(t *testing.T) {
	m, h := buildTrafficLight(t)
	require.NoError(t, m.Start())

	for i := 0; i < 3; i++ {
		_, err := m.Dispatch(corestate.NewEvent("next"))
		require.NoError(t, err)

		active := map[corestate.Handle]bool{}
		for _, a := range m.ActiveStates() {
			active[a] = true
		}
		require.True(t, active[h["operating"]])
		require.True(t, active[m.Root()])
	}
}

// Exactly one direct child of a composite is active at a time.
func TestInvariantExactlyOneActiveChildPerComposite(t *testing.T) {
	m, h := buildTrafficLight(t)
	require.NoError(t, m.Start())

	colors := []corestate.Handle{h["red"], h["yellow"], h["green"]}
	countActive := func() int {
		n := 0
		for _, c := range colors {
			if m.IsActive(c) {
				n++
			}
		}
		return n
	}

	require.Equal(t, 1, countActive())
	for i := 0; i < 5; i++ {
		_, err := m.Dispatch(corestate.NewEvent("next"))
		require.NoError(t, err)
		require.Equal(t, 1, countActive())
	}
}

// No pseudostate is ever part of the active configuration.
func TestInvariantNoPseudostatePersists(t *testing.T) {
	m, _ := buildTrafficLight(t)
	require.NoError(t, m.Start())

	checkNoPseudo := func() {
		for _, a := range m.ActiveStates() {
			require.False(t, a.IsPseudo(), "pseudostate %q must not persist in the active configuration", a.Name())
		}
	}
	checkNoPseudo()
	for i := 0; i < 4; i++ {
		_, err := m.Dispatch(corestate.NewEvent("next"))
		require.NoError(t, err)
		checkNoPseudo()
	}
}

// Round-trip: start; sequence; stop; start; sequence yields the same final
// active configuration.
func TestInvariantRoundTrip(t *testing.T) {
	run := func() ([]string, []string) {
		m, _ := buildTrafficLight(t)
		activeNames := func() []string {
			var names []string
			for _, a := range m.ActiveStates() {
				names = append(names, a.Name())
			}
			return names
		}
		require.NoError(t, m.Start())
		for _, ev := range []string{"next", "next", "next"} {
			_, err := m.Dispatch(corestate.NewEvent(ev))
			require.NoError(t, err)
		}
		names := activeNames()
		require.NoError(t, m.Stop())
		require.NoError(t, m.Start())
		for _, ev := range []string{"next", "next", "next"} {
			_, err := m.Dispatch(corestate.NewEvent(ev))
			require.NoError(t, err)
		}
		return names, activeNames()
	}

	first, second := run()
	require.Equal(t, []string{"traffic", "operating", "red"}, first)
	require.Equal(t, first, second)
}

// Dispatching an event with no matching transition leaves the active
// configuration unchanged and reports false, nil.
func TestInvariantIdempotenceOnMiss(t *testing.T) {
	m, h := buildTrafficLight(t)
	require.NoError(t, m.Start())

	before := m.ActiveStates()
	fired, err := m.Dispatch(corestate.NewEvent("no-such-event"))
	require.NoError(t, err)
	require.False(t, fired)

	after := m.ActiveStates()
	require.Equal(t, before, after)
	require.True(t, m.IsActive(h["red"]))
}

// Boundary: guarded edges are tried before guardless ones for the same
// source and event.
func TestBoundaryGuardBeforeGuardless(t *testing.T) {
	m, root := corestate.Statechart("tiebreak")
	a := corestate.State(root, "a")
	b := corestate.State(root, "b")
	c := corestate.State(root, "c")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))
	require.NoError(t, corestate.Transition(a, b)) // guardless, declared first
	require.NoError(t, corestate.Transition(a, c, corestate.When(func(ctx *corestate.Context) bool { return true })))

	require.NoError(t, m.Start())
	fired, err := m.Dispatch(corestate.NewEvent(""))
	require.NoError(t, err)
	require.True(t, fired)
	require.True(t, m.IsActive(c))
	require.False(t, m.IsActive(b))
}

// Boundary: a composite's own transition only fires if no active
// descendant's transition matched first.
func TestBoundaryDescendantPreemptsComposite(t *testing.T) {
	m, root := corestate.Statechart("preempt")
	outer := corestate.Composite(root, "outer")
	inner := corestate.State(outer, "inner")
	elsewhere := corestate.State(root, "elsewhere")
	fallback := corestate.State(root, "fallback")

	outerInit := corestate.Initial(outer)
	require.NoError(t, corestate.Transition(outerInit, inner))
	rootInit := corestate.Initial(root)
	require.NoError(t, corestate.Transition(rootInit, outer))

	require.NoError(t, corestate.Transition(inner, elsewhere, corestate.On("go")))
	require.NoError(t, corestate.Transition(outer, fallback, corestate.On("go")))

	require.NoError(t, m.Start())
	fired, err := m.Dispatch(corestate.NewEvent("go"))
	require.NoError(t, err)
	require.True(t, fired)
	require.True(t, m.IsActive(elsewhere))
	require.False(t, m.IsActive(fallback))
}

// Boundary: a shallow-history pseudostate with no recorded memory yet fires
// its declared default.
func TestBoundaryHistoryDefaultWhenUnrecorded(t *testing.T) {
	m, root := corestate.Statechart("freshhistory")
	csa := corestate.Composite(root, "csa")
	a := corestate.State(csa, "A")
	b := corestate.State(csa, "B")
	csaInit := corestate.Initial(csa)
	csaHist := corestate.ShallowHistory(csa)
	require.NoError(t, corestate.Transition(csaInit, a))
	require.NoError(t, corestate.Transition(csaHist, b)) // default child is B, never A

	csb := corestate.State(root, "csb")
	rootInit := corestate.Initial(root)
	// The machine starts in csb, so csa is never exited before "back" and no
	// history is recorded for it ("leave" finds csa inactive and misses).
	require.NoError(t, corestate.Transition(rootInit, csb))
	require.NoError(t, corestate.Transition(csa, csb, corestate.On("leave")))
	require.NoError(t, corestate.Transition(csb, csaHist, corestate.On("back")))

	require.NoError(t, m.Start())
	_, err := m.Dispatch(corestate.NewEvent("leave"))
	require.NoError(t, err)
	_, err = m.Dispatch(corestate.NewEvent("back"))
	require.NoError(t, err)

	require.True(t, m.IsActive(b))
	require.False(t, m.IsActive(a))
}
