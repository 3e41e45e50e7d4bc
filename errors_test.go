package corestate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corestate/corestate"
)

func TestMissingInitialFailsStart(t *testing.T) {
	m, root := corestate.Statechart("broken")
	corestate.State(root, "only")
	// no Initial declared

	err := m.Start()
	require.Error(t, err)
	require.True(t, corestate.IsConfigurationError(err))
	require.Equal(t, corestate.ErrCodeMissingInitial, corestate.GetErrorCode(err))
}

func TestDuplicateSiblingNameFailsStart(t *testing.T) {
	m, root := corestate.Statechart("dup")
	corestate.State(root, "a")
	corestate.State(root, "a")
	init := corestate.Initial(root)
	corestate.Transition(init, corestate.State(root, "b"))

	err := m.Start()
	require.Error(t, err)
	require.True(t, corestate.IsModelError(err))
	require.Equal(t, corestate.ErrCodeDuplicateName, corestate.GetErrorCode(err))
}

func TestAmbiguousInitialFailsAtDeclaration(t *testing.T) {
	_, root := corestate.Statechart("ambiguous")
	a := corestate.State(root, "a")
	b := corestate.State(root, "b")
	init := corestate.Initial(root)

	require.NoError(t, corestate.Transition(init, a))
	err := corestate.Transition(init, b)
	require.Error(t, err)
	require.True(t, corestate.IsModelError(err))
	require.Equal(t, corestate.ErrCodeAmbiguousInitial, corestate.GetErrorCode(err))
}

func TestDispatchBeforeStartFails(t *testing.T) {
	m, root := corestate.Statechart("notstarted")
	a := corestate.State(root, "a")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))

	_, err := m.Dispatch(corestate.NewEvent("go"))
	require.Error(t, err)
	require.True(t, corestate.IsConfigurationError(err))
	require.Equal(t, corestate.ErrCodeMachineNotStarted, corestate.GetErrorCode(err))
}

func TestDoubleStartFails(t *testing.T) {
	m, root := corestate.Statechart("twice")
	a := corestate.State(root, "a")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))

	require.NoError(t, m.Start())
	err := m.Start()
	require.Error(t, err)
	require.Equal(t, corestate.ErrCodeAlreadyStarted, corestate.GetErrorCode(err))
}

func TestReentrantDispatchFails(t *testing.T) {
	m, root := corestate.Statechart("reentrant")
	a := corestate.State(root, "a")
	b := corestate.State(root, "b")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))

	var innerErr error
	require.NoError(t, corestate.Transition(a, b, corestate.On("go"), corestate.Do(func(ctx *corestate.Context) error {
		_, innerErr = m.Dispatch(corestate.NewEvent("go"))
		return nil
	})))

	require.NoError(t, m.Start())
	_, err := m.Dispatch(corestate.NewEvent("go"))
	require.NoError(t, err)

	require.Error(t, innerErr)
	require.Equal(t, corestate.ErrCodeReentrantDispatch, corestate.GetErrorCode(innerErr))
}

func TestActionErrorWrapsPanicAndLeavesConfigurationInPlace(t *testing.T) {
	m, root := corestate.Statechart("panicky")
	a := corestate.State(root, "a")
	b := corestate.State(root, "b")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))
	require.NoError(t, corestate.Transition(a, b, corestate.On("go"), corestate.Do(func(ctx *corestate.Context) error {
		panic("boom")
	})))

	require.NoError(t, m.Start())
	_, err := m.Dispatch(corestate.NewEvent("go"))
	require.Error(t, err)

	var actionErr *corestate.ActionError
	require.True(t, errors.As(err, &actionErr))
	require.Equal(t, "action", actionErr.Phase)

	// a was already exited by the time the action ran; b was never entered.
	require.False(t, m.IsActive(a))
	require.False(t, m.IsActive(b))
}

func TestChoiceUnresolvedFails(t *testing.T) {
	m, root := corestate.Statechart("unresolved")
	choice := corestate.Choice(root)
	target := corestate.State(root, "target")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, choice))
	require.NoError(t, corestate.Transition(choice, target, corestate.When(func(ctx *corestate.Context) bool { return false })))

	err := m.Start()
	require.Error(t, err)
	require.Equal(t, corestate.ErrCodeChoiceUnresolved, corestate.GetErrorCode(err))
}

func TestDispatchMissReturnsFalseNilError(t *testing.T) {
	m, root := corestate.Statechart("miss")
	a := corestate.State(root, "a")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))
	require.NoError(t, m.Start())

	fired, err := m.Dispatch(corestate.NewEvent("nope"))
	require.NoError(t, err)
	require.False(t, fired)
}

func TestTransitionOutOfFinalFails(t *testing.T) {
	_, root := corestate.Statechart("finalsource")
	final := corestate.Final(root)
	a := corestate.State(root, "a")

	err := corestate.Transition(final, a)
	require.Error(t, err)
	require.True(t, corestate.IsModelError(err))
	require.Equal(t, corestate.ErrCodeInvalidTransitionSource, corestate.GetErrorCode(err))
}

func TestTransitionOutOfRootFails(t *testing.T) {
	_, root := corestate.Statechart("rootsource")
	a := corestate.State(root, "a")

	err := corestate.Transition(root, a)
	require.Error(t, err)
	require.True(t, corestate.IsModelError(err))
	require.Equal(t, corestate.ErrCodeInvalidTransitionSource, corestate.GetErrorCode(err))
}

func TestRootRestrictedActionsFailBuild(t *testing.T) {
	m, root := corestate.Statechart("rootrestricted")
	root.WithEntry(func(ctx *corestate.Context) error { return nil })
	a := corestate.State(root, "a")
	require.NoError(t, corestate.Transition(corestate.Initial(root), a))

	err := m.Start()
	require.Error(t, err)
	require.True(t, corestate.IsModelError(err))
	require.Equal(t, corestate.ErrCodeRootRestricted, corestate.GetErrorCode(err))
}

func TestRootWithExitRestrictedFailsBuild(t *testing.T) {
	m, root := corestate.Statechart("rootexitrestricted")
	root.WithExit(func(ctx *corestate.Context) error { return nil })
	a := corestate.State(root, "a")
	require.NoError(t, corestate.Transition(corestate.Initial(root), a))

	err := m.Start()
	require.Error(t, err)
	require.Equal(t, corestate.ErrCodeRootRestricted, corestate.GetErrorCode(err))
}

func TestDuplicateInitialFailsBuild(t *testing.T) {
	m, root := corestate.Statechart("dupinitial")
	composite := corestate.Composite(root, "composite")
	corestate.State(composite, "a")
	corestate.Initial(composite)
	corestate.Initial(composite)

	err := m.Start()
	require.Error(t, err)
	require.True(t, corestate.IsModelError(err))
	require.Equal(t, corestate.ErrCodeDuplicatePseudostate, corestate.GetErrorCode(err))
}

func TestDuplicateShallowHistoryFailsBuild(t *testing.T) {
	m, root := corestate.Statechart("duphistory")
	composite := corestate.Composite(root, "composite")
	corestate.State(composite, "a")
	corestate.ShallowHistory(composite)
	corestate.ShallowHistory(composite)

	err := m.Start()
	require.Error(t, err)
	require.Equal(t, corestate.ErrCodeDuplicatePseudostate, corestate.GetErrorCode(err))
}

func TestGuardedInitialTransitionFails(t *testing.T) {
	_, root := corestate.Statechart("guardedinitial")
	a := corestate.State(root, "a")
	init := corestate.Initial(root)

	err := corestate.Transition(init, a, corestate.On("go"))
	require.Error(t, err)
	require.True(t, corestate.IsModelError(err))
	require.Equal(t, corestate.ErrCodeGuardedPseudoTransition, corestate.GetErrorCode(err))
}

func TestGuardedShallowHistoryTransitionFails(t *testing.T) {
	_, root := corestate.Statechart("guardedhistory")
	composite := corestate.Composite(root, "composite")
	a := corestate.State(composite, "a")
	hist := corestate.ShallowHistory(composite)

	err := corestate.Transition(hist, a, corestate.When(func(ctx *corestate.Context) bool { return true }))
	require.Error(t, err)
	require.Equal(t, corestate.ErrCodeGuardedPseudoTransition, corestate.GetErrorCode(err))
}

func TestNonCompositeRegionFailsBuild(t *testing.T) {
	m, root := corestate.Statechart("badregion")
	concurrent := corestate.Concurrent(root, "concurrent")
	corestate.State(concurrent, "leaf")

	err := m.Start()
	require.Error(t, err)
	require.True(t, corestate.IsModelError(err))
	require.Equal(t, corestate.ErrCodeInvalidRegion, corestate.GetErrorCode(err))
}
