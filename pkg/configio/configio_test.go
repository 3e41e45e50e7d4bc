package configio_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corestate/corestate"
	"github.com/corestate/corestate/pkg/configio"
)

const turnstileYAML = `
name: turnstile
states:
  - name: locked
    initial: true
  - name: unlocked
transitions:
  - from: locked
    to: unlocked
    on: coin
  - from: unlocked
    to: locked
    on: pass
`

func TestLoadBuildsAndRuns(t *testing.T) {
	m, err := configio.Load([]byte(turnstileYAML), configio.Registry{})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	fired, err := m.Dispatch(corestate.NewEvent("coin"))
	require.NoError(t, err)
	require.True(t, fired)

	fired, err = m.Dispatch(corestate.NewEvent("pass"))
	require.NoError(t, err)
	require.True(t, fired)
}

const guardedYAML = `
name: decider
states:
  - name: start
    initial: true
  - name: a
  - name: b
choices:
  - parent: ""
    name: decision
    branches:
      - to: a
        guard: allowA
      - to: b
transitions:
  - from: start
    to: decision
    on: go
`

func TestLoadResolvesNamedGuards(t *testing.T) {
	calls := 0
	reg := configio.Registry{
		Guards: map[string]corestate.GuardFunc{
			"allowA": func(ctx *corestate.Context) bool {
				calls++
				return false
			},
		},
	}
	m, err := configio.Load([]byte(guardedYAML), reg)
	require.NoError(t, err)
	require.NoError(t, m.Start())

	fired, err := m.Dispatch(corestate.NewEvent("go"))
	require.NoError(t, err)
	require.True(t, fired)
	require.Equal(t, 1, calls)

	states := m.ActiveStates()
	require.Equal(t, "b", states[len(states)-1].Name())
}

func TestLoadRejectsUnknownGuard(t *testing.T) {
	_, err := configio.Load([]byte(guardedYAML), configio.Registry{})
	require.Error(t, err)
}

func TestLoadRejectsUndeclaredParent(t *testing.T) {
	const badYAML = `
name: broken
states:
  - name: child
    parent: nosuch
`
	_, err := configio.Load([]byte(badYAML), configio.Registry{})
	require.Error(t, err)
}

func TestLoadRejectsAmbiguousInitial(t *testing.T) {
	const badYAML = `
name: broken
states:
  - name: a
    initial: true
  - name: b
    initial: true
`
	_, err := configio.Load([]byte(badYAML), configio.Registry{})
	require.Error(t, err)
}

const historyYAML = `
name: player
states:
  - name: playing
    initial: true
    kind: composite
  - name: menu
  - name: running
    parent: playing
    initial: true
  - name: paused
    parent: playing
histories:
  - parent: playing
    default: running
transitions:
  - from: running
    to: paused
    on: pause
  - from: playing
    to: menu
    on: quit
  - from: menu
    to: playing.history
    on: resume
`

func TestLoadSupportsShallowHistory(t *testing.T) {
	m, err := configio.Load([]byte(historyYAML), configio.Registry{})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	_, err = m.Dispatch(corestate.NewEvent("pause"))
	require.NoError(t, err)
	_, err = m.Dispatch(corestate.NewEvent("quit"))
	require.NoError(t, err)
	_, err = m.Dispatch(corestate.NewEvent("resume"))
	require.NoError(t, err)

	var leafName string
	for _, h := range m.ActiveStates() {
		leafName = h.Name()
	}
	require.Equal(t, "paused", leafName)
}
