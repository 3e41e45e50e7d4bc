package corestate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corestate/corestate"
)

type recordingObserver struct {
	corestate.BaseObserver
	entered      []string
	exited       []string
	transitioned []string
	missed       []string
	errors       int
	started      bool
	stopped      bool
}

func (r *recordingObserver) OnStateEnter(state string, ctx *corestate.Context) {
	r.entered = append(r.entered, state)
}

func (r *recordingObserver) OnStateExit(state string, ctx *corestate.Context) {
	r.exited = append(r.exited, state)
}

func (r *recordingObserver) OnTransition(from, to string, event corestate.Event, ctx *corestate.Context) {
	r.transitioned = append(r.transitioned, from+"->"+to)
}

func (r *recordingObserver) OnEventMissed(event corestate.Event, ctx *corestate.Context) {
	r.missed = append(r.missed, event.Name)
}

func (r *recordingObserver) OnError(err error, ctx *corestate.Context) {
	r.errors++
}

func (r *recordingObserver) OnMachineStarted(ctx *corestate.Context) { r.started = true }
func (r *recordingObserver) OnMachineStopped(ctx *corestate.Context) { r.stopped = true }

func TestObserverSeesLifecycleEvents(t *testing.T) {
	m, root := corestate.Statechart("observed")
	a := corestate.State(root, "a")
	b := corestate.State(root, "b")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))
	require.NoError(t, corestate.Transition(a, b, corestate.On("go")))

	obs := &recordingObserver{}
	m.AddObserver(obs)

	require.NoError(t, m.Start())
	require.True(t, obs.started)
	require.Contains(t, obs.entered, "a")

	_, err := m.Dispatch(corestate.NewEvent("go"))
	require.NoError(t, err)
	require.Contains(t, obs.exited, "a")
	require.Contains(t, obs.entered, "b")
	require.Contains(t, obs.transitioned, "a->b")

	_, err = m.Dispatch(corestate.NewEvent("no-match"))
	require.NoError(t, err)
	require.Contains(t, obs.missed, "no-match")

	require.NoError(t, m.Stop())
	require.True(t, obs.stopped)
}

func TestObserverSeesActionErrors(t *testing.T) {
	m, root := corestate.Statechart("observederror")
	a := corestate.State(root, "a")
	b := corestate.State(root, "b")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))
	require.NoError(t, corestate.Transition(a, b, corestate.On("go"), corestate.Do(func(ctx *corestate.Context) error {
		return errors.New("boom")
	})))

	obs := &recordingObserver{}
	m.AddObserver(obs)
	require.NoError(t, m.Start())

	_, err := m.Dispatch(corestate.NewEvent("go"))
	require.Error(t, err)
	require.Equal(t, 1, obs.errors)
}

func TestRemoveObserverStopsNotifications(t *testing.T) {
	m, root := corestate.Statechart("removable")
	a := corestate.State(root, "a")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))

	obs := &recordingObserver{}
	m.AddObserver(obs)
	m.RemoveObserver(obs)

	require.NoError(t, m.Start())
	require.Empty(t, obs.entered)
}

// A panicking observer must never take the Machine down with it.
type panickingObserver struct {
	corestate.BaseObserver
}

func (panickingObserver) OnStateEnter(state string, ctx *corestate.Context) {
	panic("observer exploded")
}

func TestPanickingObserverIsContained(t *testing.T) {
	m, root := corestate.Statechart("survivesobserver")
	a := corestate.State(root, "a")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))

	m.AddObserver(panickingObserver{})
	require.NoError(t, m.Start())
	require.True(t, m.IsActive(a))
}

// A panicking observer's panic is not just swallowed — it is forwarded to
// that same observer's own OnError so it stays observable.
type selfReportingPanicObserver struct {
	corestate.BaseObserver
	reported []string
}

func (o *selfReportingPanicObserver) OnStateEnter(state string, ctx *corestate.Context) {
	panic("observer exploded")
}

func (o *selfReportingPanicObserver) OnError(err error, ctx *corestate.Context) {
	o.reported = append(o.reported, err.Error())
}

func TestPanickingObserverReportsThroughOnError(t *testing.T) {
	m, root := corestate.Statechart("panicreported")
	a := corestate.State(root, "a")
	init := corestate.Initial(root)
	require.NoError(t, corestate.Transition(init, a))

	obs := &selfReportingPanicObserver{}
	m.AddObserver(obs)
	require.NoError(t, m.Start())

	// Start enters the root and then a: two OnStateEnter panics, two reports.
	require.Len(t, obs.reported, 2)
	require.Contains(t, obs.reported[0], "OnStateEnter")
	require.Contains(t, obs.reported[0], "observer exploded")
}
