// Package bpmn defines the shared process document model: the directed graph
// of process elements and flows that clients view and edit together.
package bpmn

// ElementType identifies the kind of a process element. SequenceFlow elements
// are directed edges; all other kinds are nodes.
type ElementType string

const (
	StartEvent   ElementType = "startEvent"
	EndEvent     ElementType = "endEvent"
	Task         ElementType = "task"
	Gateway      ElementType = "gateway"
	SequenceFlow ElementType = "sequenceFlow"
)

// Element is a single node or flow in a process. Field names match the wire
// representation exactly; the same struct travels over the sync channel.
type Element struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        ElementType    `json:"type"`
	Description string         `json:"description,omitempty"`
	SourceRef   string         `json:"sourceRef,omitempty"`
	TargetRef   string         `json:"targetRef,omitempty"`
	Incoming    []string       `json:"incoming,omitempty"`
	Outgoing    []string       `json:"outgoing,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// IsFlow reports whether the element is a directed edge rather than a node.
func (e *Element) IsFlow() bool {
	return e.Type == SequenceFlow
}

// Process is the shared document: nodes in Elements, directed edges in Flows.
// A flow whose SourceRef or TargetRef names a missing node is tolerated; the
// layout engine simply skips it.
type Process struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Elements []*Element `json:"elements"`
	Flows    []*Element `json:"flows"`
}

// ElementByID returns the node or flow with the given id, or nil.
func (p *Process) ElementByID(id string) *Element {
	for _, el := range p.Elements {
		if el.ID == id {
			return el
		}
	}
	for _, f := range p.Flows {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Rename sets the name of the element with the given id and reports whether
// such an element exists.
func (p *Process) Rename(id, name string) bool {
	el := p.ElementByID(id)
	if el == nil {
		return false
	}
	el.Name = name
	return true
}

// Clone returns a deep copy of the process. Replicas hold clones so that a
// local edit never mutates a document another component is still reading.
func (p *Process) Clone() *Process {
	if p == nil {
		return nil
	}
	out := &Process{ID: p.ID, Name: p.Name}
	out.Elements = cloneElements(p.Elements)
	out.Flows = cloneElements(p.Flows)
	return out
}

func cloneElements(els []*Element) []*Element {
	if els == nil {
		return nil
	}
	out := make([]*Element, len(els))
	for i, el := range els {
		c := *el
		if el.Incoming != nil {
			c.Incoming = append([]string(nil), el.Incoming...)
		}
		if el.Outgoing != nil {
			c.Outgoing = append([]string(nil), el.Outgoing...)
		}
		if el.Attributes != nil {
			c.Attributes = make(map[string]any, len(el.Attributes))
			for k, v := range el.Attributes {
				c.Attributes[k] = v
			}
		}
		out[i] = &c
	}
	return out
}
