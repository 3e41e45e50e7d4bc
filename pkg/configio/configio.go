// Package configio builds a corestate.Machine from a declarative YAML
// document instead of hand-written Go build calls — the hierarchy,
// pseudostates, and transitions are data; guards and actions are named
// callbacks supplied by the caller through a Registry, since YAML cannot
// carry Go closures itself.
package configio

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/corestate/corestate"
)

// Document is the top-level shape of a statechart YAML document. States
// must appear after their parent (the root is referenced by an empty
// Parent); Histories and Choices reference a Parent that must already have
// been declared as a state.
type Document struct {
	Name        string          `yaml:"name"`
	States      []StateDoc      `yaml:"states"`
	Histories   []HistoryDoc    `yaml:"histories,omitempty"`
	Choices     []ChoiceDoc     `yaml:"choices,omitempty"`
	Transitions []TransitionDoc `yaml:"transitions,omitempty"`
}

// StateDoc declares one real (non-pseudo) node: a simple state, a
// composite, a concurrent state, or a final.
type StateDoc struct {
	Name    string `yaml:"name"`
	Parent  string `yaml:"parent,omitempty"`
	Kind    string `yaml:"kind,omitempty"` // "state" (default), "composite", "concurrent", "final"
	Initial bool   `yaml:"initial,omitempty"`
}

// HistoryDoc declares a ShallowHistory pseudostate of Parent, defaulting to
// Default the first time no history has been recorded.
type HistoryDoc struct {
	Parent  string `yaml:"parent"`
	Name    string `yaml:"name,omitempty"`
	Default string `yaml:"default"`
}

// ChoiceDoc declares a Choice pseudostate of Parent, resolved by evaluating
// Branches in order.
type ChoiceDoc struct {
	Parent   string      `yaml:"parent"`
	Name     string      `yaml:"name,omitempty"`
	Branches []BranchDoc `yaml:"branches"`
}

// BranchDoc is one declaration-ordered branch of a ChoiceDoc.
type BranchDoc struct {
	To     string `yaml:"to"`
	Guard  string `yaml:"guard,omitempty"`
	Action string `yaml:"action,omitempty"`
}

// TransitionDoc declares an ordinary or internal transition edge.
type TransitionDoc struct {
	From     string `yaml:"from"`
	To       string `yaml:"to,omitempty"`
	On       string `yaml:"on,omitempty"`
	Guard    string `yaml:"guard,omitempty"`
	Action   string `yaml:"action,omitempty"`
	Internal bool   `yaml:"internal,omitempty"`
	Local    bool   `yaml:"local,omitempty"`
}

// Registry resolves the named guards and actions a Document refers to. A
// Document that names a guard or action missing from its Registry fails to
// Build.
type Registry struct {
	Guards  map[string]corestate.GuardFunc
	Actions map[string]corestate.ActionFunc
}

func (r Registry) guard(name string) (corestate.GuardFunc, error) {
	if name == "" {
		return nil, nil
	}
	g, ok := r.Guards[name]
	if !ok {
		return nil, fmt.Errorf("configio: undeclared guard %q", name)
	}
	return g, nil
}

func (r Registry) action(name string) (corestate.ActionFunc, error) {
	if name == "" {
		return nil, nil
	}
	a, ok := r.Actions[name]
	if !ok {
		return nil, fmt.Errorf("configio: undeclared action %q", name)
	}
	return a, nil
}

// Load parses data as a Document and Builds it.
func Load(data []byte, reg Registry) (*corestate.Machine, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("configio: parse yaml: %w", err)
	}
	return Build(doc, reg)
}

// Build constructs a *corestate.Machine from doc, resolving every named
// guard and action against reg. It does not call Start — the caller decides
// when to start the returned Machine.
func Build(doc Document, reg Registry) (*corestate.Machine, error) {
	m, root := corestate.Statechart(doc.Name)
	handles := map[string]corestate.Handle{"": root}
	initialOf := make(map[string]bool)

	for _, s := range doc.States {
		parent, ok := handles[s.Parent]
		if !ok {
			return nil, fmt.Errorf("configio: state %q: parent %q not yet declared", s.Name, s.Parent)
		}
		var h corestate.Handle
		switch s.Kind {
		case "", "state":
			h = corestate.State(parent, s.Name)
		case "composite":
			h = corestate.Composite(parent, s.Name)
		case "concurrent":
			h = corestate.Concurrent(parent, s.Name)
		case "final":
			h = corestate.Final(parent)
			handles[s.Name] = h
			continue
		default:
			return nil, fmt.Errorf("configio: state %q: unknown kind %q", s.Name, s.Kind)
		}
		handles[s.Name] = h
		if s.Initial {
			if initialOf[s.Parent] {
				return nil, fmt.Errorf("configio: parent %q already has an initial child", s.Parent)
			}
			initialOf[s.Parent] = true
			init := corestate.Initial(parent)
			if err := corestate.Transition(init, h); err != nil {
				return nil, fmt.Errorf("configio: state %q: %w", s.Name, err)
			}
		}
	}

	for _, h := range doc.Histories {
		parent, ok := handles[h.Parent]
		if !ok {
			return nil, fmt.Errorf("configio: history of %q: parent not declared", h.Parent)
		}
		def, ok := handles[h.Default]
		if !ok {
			return nil, fmt.Errorf("configio: history of %q: default child %q not declared", h.Parent, h.Default)
		}
		hist := corestate.ShallowHistory(parent)
		if err := corestate.Transition(hist, def); err != nil {
			return nil, fmt.Errorf("configio: history of %q: %w", h.Parent, err)
		}
		name := h.Name
		if name == "" {
			name = h.Parent + ".history"
		}
		handles[name] = hist
	}

	for _, c := range doc.Choices {
		parent, ok := handles[c.Parent]
		if !ok {
			return nil, fmt.Errorf("configio: choice of %q: parent not declared", c.Parent)
		}
		choice := corestate.Choice(parent)
		name := c.Name
		if name == "" {
			name = c.Parent + ".choice"
		}
		handles[name] = choice
		for _, b := range c.Branches {
			to, ok := handles[b.To]
			if !ok {
				return nil, fmt.Errorf("configio: choice of %q: branch target %q not declared", c.Parent, b.To)
			}
			opts, err := buildOptions(reg, "", b.Guard, b.Action, false)
			if err != nil {
				return nil, fmt.Errorf("configio: choice of %q: %w", c.Parent, err)
			}
			if err := corestate.Transition(choice, to, opts...); err != nil {
				return nil, fmt.Errorf("configio: choice of %q: %w", c.Parent, err)
			}
		}
	}

	for _, t := range doc.Transitions {
		from, ok := handles[t.From]
		if !ok {
			return nil, fmt.Errorf("configio: transition from %q: not declared", t.From)
		}
		if t.Internal {
			opts, err := buildOptions(reg, t.On, t.Guard, t.Action, false)
			if err != nil {
				return nil, fmt.Errorf("configio: internal transition on %q: %w", t.From, err)
			}
			if err := corestate.InternalTransition(from, opts...); err != nil {
				return nil, fmt.Errorf("configio: internal transition on %q: %w", t.From, err)
			}
			continue
		}
		to, ok := handles[t.To]
		if !ok {
			return nil, fmt.Errorf("configio: transition from %q: target %q not declared", t.From, t.To)
		}
		opts, err := buildOptions(reg, t.On, t.Guard, t.Action, t.Local)
		if err != nil {
			return nil, fmt.Errorf("configio: transition %q -> %q: %w", t.From, t.To, err)
		}
		if err := corestate.Transition(from, to, opts...); err != nil {
			return nil, fmt.Errorf("configio: transition %q -> %q: %w", t.From, t.To, err)
		}
	}

	return m, nil
}

func buildOptions(reg Registry, on, guardName, actionName string, local bool) ([]corestate.TransitionOption, error) {
	var opts []corestate.TransitionOption
	if on != "" {
		opts = append(opts, corestate.On(on))
	}
	if guardName != "" {
		g, err := reg.guard(guardName)
		if err != nil {
			return nil, err
		}
		opts = append(opts, corestate.When(g))
	}
	if actionName != "" {
		a, err := reg.action(actionName)
		if err != nil {
			return nil, err
		}
		opts = append(opts, corestate.Do(a))
	}
	if local {
		opts = append(opts, corestate.Local())
	}
	return opts, nil
}
