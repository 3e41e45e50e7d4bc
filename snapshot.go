package corestate

// Snapshot is the persisted form of a Machine's run-time state: the active
// configuration as an ordered tuple of state names, plus a map from every
// composite with recorded shallow history to the name of the child it last
// held active. It carries no reference to the Machine or its Handles, so it
// can be serialized (via gopkg.in/yaml.v3, or any encoding/* package) and later
// used to Restore a freshly built, structurally identical Machine.
type Snapshot struct {
	Active  []string          `yaml:"active" json:"active"`
	History map[string]string `yaml:"history,omitempty" json:"history,omitempty"`
}

// Snapshot captures the Machine's current active configuration and history
// memory. The Machine must be started.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{History: make(map[string]string)}
	for _, h := range m.activeStatesOrdered() {
		s.Active = append(s.Active, m.nodes[h].name)
	}
	for composite, child := range m.historyMemory {
		s.History[m.nodes[composite].name] = m.nodes[child].name
	}
	return s
}

// Restore replaces the Machine's active configuration and history memory
// with the one in s, without running any entry/exit callback — it is a raw
// state load, intended for a Machine that has not yet been Started (or has
// just been Stopped), not a substitute for Dispatch. Restore fails if any
// name in s cannot be resolved against this Machine's built hierarchy.
func (m *Machine) Restore(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byName := make(map[string]handle, len(m.nodes))
	for i := range m.nodes {
		byName[m.nodes[i].name] = handle(i)
	}

	active := make(map[handle]bool, len(s.Active))
	for _, name := range s.Active {
		h, ok := byName[name]
		if !ok {
			return &ModelError{Code: ErrCodeUnknownHandle, Subject: name, Message: "snapshot names a state this statechart does not have"}
		}
		active[h] = true
	}

	history := make(map[handle]handle, len(s.History))
	for compositeName, childName := range s.History {
		ch, ok := byName[compositeName]
		if !ok {
			return &ModelError{Code: ErrCodeUnknownHandle, Subject: compositeName, Message: "snapshot names a composite this statechart does not have"}
		}
		chch, ok := byName[childName]
		if !ok {
			return &ModelError{Code: ErrCodeUnknownHandle, Subject: childName, Message: "snapshot names a child this statechart does not have"}
		}
		history[ch] = chch
	}

	m.buildIndex()
	m.active = active
	m.historyMemory = history
	m.started = true
	m.finished = m.activeChildIsFinal(m.root)
	return nil
}
