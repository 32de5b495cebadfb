// Package layout places the nodes of a process graph in 3D world space:
// topological leveling along the x axis, even spreading within a level along
// the y axis. The result is derived state, recomputed from the document on
// every change and never transmitted.
package layout

import (
	"github.com/zeeshan-mehdi/ARISXR/bpmn"
)

// Default spacing in world units.
const (
	DefaultHorizontalSpacing float32 = 3
	DefaultVerticalSpacing   float32 = 2
)

// Node is the placement computed for one process element.
type Node struct {
	ID       string
	Element  *bpmn.Element
	Level    int
	Position [3]float32
}

// Engine computes layouts with configurable spacing. The zero value is not
// useful; use New or set both spacings.
type Engine struct {
	HorizontalSpacing float32
	VerticalSpacing   float32
}

// New returns an Engine with the default spacing.
func New() Engine {
	return Engine{
		HorizontalSpacing: DefaultHorizontalSpacing,
		VerticalSpacing:   DefaultVerticalSpacing,
	}
}

// Layout places a whole process with the default spacing.
func Layout(p *bpmn.Process) map[string]Node {
	if p == nil {
		return map[string]Node{}
	}
	return New().Layout(p.Elements, p.Flows)
}

// Layout assigns every node a level and a position. It is a deterministic
// pure function of its inputs: identical elements and flows always produce
// an identical map.
//
// Levels come from a depth-first walk over the flows, seeded at every
// startEvent (or, if the graph has none, the first node in input order).
// Each node's level is fixed at first visit; a visited set bounds the walk
// on cyclic graphs. Nodes the walk never reaches default to level 0.
// Flows whose sourceRef or targetRef dangles are ignored.
func (e Engine) Layout(elements, flows []*bpmn.Element) map[string]Node {
	nodes := make(map[string]Node, len(elements))
	if len(elements) == 0 {
		return nodes
	}

	levels := assignLevels(elements, flows)

	// Group nodes by level, preserving input order within each group.
	byLevel := make(map[int][]*bpmn.Element)
	for _, el := range elements {
		lvl := levels[el.ID]
		byLevel[lvl] = append(byLevel[lvl], el)
	}

	for lvl, group := range byLevel {
		for i, el := range group {
			// Center the group on y=0.
			offset := (float32(i) - float32(len(group)-1)/2) * e.VerticalSpacing
			nodes[el.ID] = Node{
				ID:      el.ID,
				Element: el,
				Level:   lvl,
				Position: [3]float32{
					float32(lvl) * e.HorizontalSpacing,
					offset,
					0,
				},
			}
		}
	}
	return nodes
}

func assignLevels(elements, flows []*bpmn.Element) map[string]int {
	levels := make(map[string]int, len(elements))
	visited := make(map[string]bool, len(elements))

	outgoing := make(map[string][]*bpmn.Element, len(flows))
	for _, f := range flows {
		if f.SourceRef == "" || f.TargetRef == "" {
			continue
		}
		outgoing[f.SourceRef] = append(outgoing[f.SourceRef], f)
	}

	var assign func(id string, level int)
	assign = func(id string, level int) {
		if visited[id] {
			return
		}
		visited[id] = true
		if level > levels[id] {
			levels[id] = level
		}
		for _, f := range outgoing[id] {
			assign(f.TargetRef, level+1)
		}
	}

	seeded := false
	for _, el := range elements {
		if el.Type == bpmn.StartEvent {
			assign(el.ID, 0)
			seeded = true
		}
	}
	if !seeded {
		assign(elements[0].ID, 0)
	}
	return levels
}
