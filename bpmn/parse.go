package bpmn

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrNoProcess is returned when the XML contains no process definition.
var ErrNoProcess = errors.New("bpmn: no process found in XML")

type xmlRefNode struct {
	ID       string     `xml:"id,attr"`
	Name     string     `xml:"name,attr"`
	Incoming []string   `xml:"incoming"`
	Outgoing []string   `xml:"outgoing"`
	Attrs    []xml.Attr `xml:",any,attr"`
}

type xmlFlow struct {
	ID        string     `xml:"id,attr"`
	Name      string     `xml:"name,attr"`
	SourceRef string     `xml:"sourceRef,attr"`
	TargetRef string     `xml:"targetRef,attr"`
	Attrs     []xml.Attr `xml:",any,attr"`
}

type xmlProcess struct {
	ID                string       `xml:"id,attr"`
	Name              string       `xml:"name,attr"`
	StartEvents       []xmlRefNode `xml:"startEvent"`
	EndEvents         []xmlRefNode `xml:"endEvent"`
	Tasks             []xmlRefNode `xml:"task"`
	UserTasks         []xmlRefNode `xml:"userTask"`
	ServiceTasks      []xmlRefNode `xml:"serviceTask"`
	ManualTasks       []xmlRefNode `xml:"manualTask"`
	ExclusiveGateways []xmlRefNode `xml:"exclusiveGateway"`
	ParallelGateways  []xmlRefNode `xml:"parallelGateway"`
	InclusiveGateways []xmlRefNode `xml:"inclusiveGateway"`
	Flows             []xmlFlow    `xml:"sequenceFlow"`
}

type xmlDefinitions struct {
	XMLName xml.Name
	Process *xmlProcess `xml:"process"`
}

// ParseXML parses a BPMN 2.0 XML document into a Process. It is
// namespace-agnostic: elements match by local name whether or not they carry
// a bpmn: prefix. Task variants (userTask, serviceTask, manualTask) collapse
// to Task, gateway variants to Gateway.
func ParseXML(data []byte) (*Process, error) {
	var defs xmlDefinitions
	if err := xml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("bpmn: parsing XML: %w", err)
	}
	xp := defs.Process
	if xp == nil && defs.XMLName.Local == "process" {
		// The document has <process> as its root rather than <definitions>.
		var proc xmlProcess
		if err := xml.Unmarshal(data, &proc); err != nil {
			return nil, fmt.Errorf("bpmn: parsing XML: %w", err)
		}
		xp = &proc
	}
	if xp == nil {
		return nil, ErrNoProcess
	}

	p := &Process{
		ID:   fallback(xp.ID, "process-1"),
		Name: fallback(xp.Name, "BPMN Process"),
	}

	addNodes := func(nodes []xmlRefNode, tag string, typ ElementType) {
		for _, n := range nodes {
			id := fallback(n.ID, fmt.Sprintf("%s-%d", tag, len(p.Elements)))
			p.Elements = append(p.Elements, &Element{
				ID:         id,
				Name:       fallback(n.Name, fallback(n.ID, "Unnamed")),
				Type:       typ,
				Incoming:   trimAll(n.Incoming),
				Outgoing:   trimAll(n.Outgoing),
				Attributes: attrMap(n.Attrs),
			})
		}
	}

	addNodes(xp.StartEvents, "startEvent", StartEvent)
	addNodes(xp.EndEvents, "endEvent", EndEvent)
	addNodes(xp.Tasks, "task", Task)
	addNodes(xp.UserTasks, "userTask", Task)
	addNodes(xp.ServiceTasks, "serviceTask", Task)
	addNodes(xp.ManualTasks, "manualTask", Task)
	addNodes(xp.ExclusiveGateways, "gateway", Gateway)
	addNodes(xp.ParallelGateways, "gateway", Gateway)
	addNodes(xp.InclusiveGateways, "gateway", Gateway)

	for _, f := range xp.Flows {
		p.Flows = append(p.Flows, &Element{
			ID:         fallback(f.ID, fmt.Sprintf("flow-%d", len(p.Flows))),
			Name:       f.Name,
			Type:       SequenceFlow,
			SourceRef:  f.SourceRef,
			TargetRef:  f.TargetRef,
			Attributes: attrMap(f.Attrs),
		})
	}

	return p, nil
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func trimAll(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func attrMap(attrs []xml.Attr) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]any, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}
