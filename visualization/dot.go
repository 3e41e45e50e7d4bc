// Package visualization renders a built corestate.Machine as a Graphviz DOT
// (and, via the dot binary, SVG) document for inspection and documentation.
package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/corestate/corestate"
)

// DOTGenerator generates Graphviz DOT representations of a Machine.
type DOTGenerator struct {
	machine *corestate.Machine
	options DOTOptions
}

// DOTOptions configures the DOT generation.
type DOTOptions struct {
	ShowGuardConditions bool
	ShowActions         bool
	ShowPseudostates    bool
	CompactMode         bool
	RankDirection       string // "TB", "LR", "BT", "RL"
	NodeShape           string
	TransitionStyle     string
	CompositeStateStyle string
	ConcurrentStyle     string
	PseudostateStyle    string
}

// DefaultDOTOptions returns sensible default options for DOT generation.
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowGuardConditions: true,
		ShowActions:         true,
		ShowPseudostates:    true,
		CompactMode:         false,
		RankDirection:       "TB",
		NodeShape:           "box",
		TransitionStyle:     "solid",
		CompositeStateStyle: "rounded,filled",
		ConcurrentStyle:     "rounded,filled",
		PseudostateStyle:    "circle",
	}
}

// NewDOTGenerator creates a DOT generator for machine.
func NewDOTGenerator(machine *corestate.Machine, options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	return &DOTGenerator{machine: machine, options: opts}
}

// Generate creates a DOT representation of the Machine.
func (g *DOTGenerator) Generate() (string, error) {
	var dot strings.Builder

	dot.WriteString("digraph StateMachine {\n")
	dot.WriteString(fmt.Sprintf("  rankdir=%s;\n", g.options.RankDirection))
	dot.WriteString("  node [shape=box];\n")
	dot.WriteString("  edge [fontsize=10];\n\n")

	dot.WriteString("  // States\n")
	g.generateNode(&dot, g.machine.Root())

	dot.WriteString("\n  // Transitions\n")
	g.generateTransitions(&dot)

	dot.WriteString("}\n")
	return dot.String(), nil
}

// generateNode emits h and recurses into its children.
func (g *DOTGenerator) generateNode(dot *strings.Builder, h corestate.Handle) {
	if h.IsPseudo() && !g.options.ShowPseudostates {
		for _, c := range h.Children() {
			g.generateNode(dot, c)
		}
		return
	}

	style, fillColor, label := g.nodeAppearance(h)
	dot.WriteString(fmt.Sprintf("  \"%s\" [shape=%s style=\"filled\" fillcolor=%s label=\"%s\"];\n",
		h.Name(), style, fillColor, label))

	for _, c := range h.Children() {
		g.generateNode(dot, c)
	}
}

func (g *DOTGenerator) nodeAppearance(h corestate.Handle) (style, fillColor, label string) {
	style = g.options.NodeShape
	fillColor = "lightblue"
	label = h.Name()

	switch h.Kind() {
	case corestate.KindRoot:
		fillColor = "lightgreen"
	case corestate.KindFinal:
		style = "doublecircle"
		fillColor = "lightcoral"
	case corestate.KindInitial, corestate.KindChoice, corestate.KindShallowHistory:
		style = g.options.PseudostateStyle
		label = fmt.Sprintf("%s\\n[%s]", h.Name(), g.pseudostateKindName(h.Kind()))
		fillColor = "lightyellow"
	case corestate.KindConcurrent:
		parts := strings.Split(g.options.ConcurrentStyle, ",")
		if len(parts) > 0 {
			style = parts[0]
		}
		fillColor = "lavender"
	case corestate.KindComposite:
		parts := strings.Split(g.options.CompositeStateStyle, ",")
		if len(parts) > 0 {
			style = parts[0]
		}
		fillColor = "lightcyan"
	}
	return style, fillColor, label
}

// generateTransitions emits DOT edges for every declared transition.
func (g *DOTGenerator) generateTransitions(dot *strings.Builder) {
	for _, t := range g.machine.Transitions() {
		if t.Internal {
			continue
		}
		label := g.transitionLabel(t)
		style := g.options.TransitionStyle
		if t.Local {
			style = "dashed"
		}
		if label != "" {
			dot.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [label=\"%s\" style=%s];\n", t.From, t.To, label, style))
		} else {
			dot.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [style=%s];\n", t.From, t.To, style))
		}
	}
}

func (g *DOTGenerator) transitionLabel(t corestate.TransitionInfo) string {
	var parts []string
	switch {
	case t.IsCompletion:
		parts = append(parts, "(completion)")
	case t.Event != "":
		parts = append(parts, t.Event)
	}
	if g.options.ShowGuardConditions && t.HasGuard {
		parts = append(parts, "[guard]")
	}
	if g.options.ShowActions && t.HasAction {
		parts = append(parts, "/ action")
	}
	return strings.Join(parts, " ")
}

func (g *DOTGenerator) pseudostateKindName(kind corestate.Kind) string {
	switch kind {
	case corestate.KindInitial:
		return "Initial"
	case corestate.KindChoice:
		return "Choice"
	case corestate.KindShallowHistory:
		return "History"
	default:
		return "Pseudo"
	}
}

// GenerateToFile writes the DOT representation to a file.
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(content), 0644)
}

// SVGGenerator renders a Machine to SVG by shelling out to the Graphviz dot
// binary.
type SVGGenerator struct {
	dotGenerator *DOTGenerator
}

// NewSVGGenerator creates an SVG generator for machine.
func NewSVGGenerator(machine *corestate.Machine, options ...DOTOptions) *SVGGenerator {
	return &SVGGenerator{dotGenerator: NewDOTGenerator(machine, options...)}
}

// Generate creates an SVG representation of the state machine.
func (g *SVGGenerator) Generate() (string, error) {
	dotContent, err := g.dotGenerator.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}
	return out.String(), nil
}

// GenerateSVG is a convenience method on DOTGenerator equivalent to
// NewSVGGenerator(...).Generate().
func (g *DOTGenerator) GenerateSVG() (string, error) {
	svgGen := &SVGGenerator{dotGenerator: g}
	return svgGen.Generate()
}
