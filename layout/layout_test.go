package layout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeeshan-mehdi/ARISXR/bpmn"
	"github.com/zeeshan-mehdi/ARISXR/layout"
)

func node(id string, typ bpmn.ElementType) *bpmn.Element {
	return &bpmn.Element{ID: id, Name: id, Type: typ}
}

func flow(id, source, target string) *bpmn.Element {
	return &bpmn.Element{ID: id, Type: bpmn.SequenceFlow, SourceRef: source, TargetRef: target}
}

func approvalGraph() ([]*bpmn.Element, []*bpmn.Element) {
	elements := []*bpmn.Element{
		node("start", bpmn.StartEvent),
		node("review", bpmn.Task),
		node("approved", bpmn.Gateway),
		node("accept", bpmn.Task),
		node("reject", bpmn.Task),
		node("end", bpmn.EndEvent),
	}
	flows := []*bpmn.Element{
		flow("f1", "start", "review"),
		flow("f2", "review", "approved"),
		flow("f3", "approved", "accept"),
		flow("f4", "approved", "reject"),
		flow("f5", "accept", "end"),
		flow("f6", "reject", "end"),
	}
	return elements, flows
}

func TestLayoutDeterminism(t *testing.T) {
	elements, flows := approvalGraph()
	e := layout.New()
	first := e.Layout(elements, flows)
	second := e.Layout(elements, flows)
	require.Equal(t, first, second)
}

func TestLevelsFollowFlows(t *testing.T) {
	elements, flows := approvalGraph()
	nodes := layout.New().Layout(elements, flows)
	require.Len(t, nodes, 6)

	assert.Equal(t, 0, nodes["start"].Level)
	assert.Equal(t, 1, nodes["review"].Level)
	assert.Equal(t, 2, nodes["approved"].Level)
	assert.Equal(t, 3, nodes["accept"].Level)
	assert.Equal(t, 3, nodes["reject"].Level)
	assert.Equal(t, 4, nodes["end"].Level)

	for _, f := range flows {
		u, v := nodes[f.SourceRef], nodes[f.TargetRef]
		assert.GreaterOrEqual(t, v.Level, u.Level+1, "flow %s", f.ID)
	}

	// x advances by the horizontal spacing per level.
	assert.Equal(t, [3]float32{0, 0, 0}, nodes["start"].Position)
	assert.InDelta(t, 12, nodes["end"].Position[0], 1e-6)
}

func TestCenteringWithinLevel(t *testing.T) {
	elements := []*bpmn.Element{
		node("start", bpmn.StartEvent),
		node("a", bpmn.Task),
		node("b", bpmn.Task),
		node("c", bpmn.Task),
	}
	flows := []*bpmn.Element{
		flow("f1", "start", "a"),
		flow("f2", "start", "b"),
		flow("f3", "start", "c"),
	}
	nodes := layout.New().Layout(elements, flows)

	// Three nodes at level 1, spaced by the vertical spacing and symmetric
	// about y=0, in input order.
	assert.Equal(t, float32(-2), nodes["a"].Position[1])
	assert.Equal(t, float32(0), nodes["b"].Position[1])
	assert.Equal(t, float32(2), nodes["c"].Position[1])
	assert.Equal(t, float32(0), nodes["start"].Position[1])

	var sum float32
	for _, id := range []string{"a", "b", "c"} {
		sum += nodes[id].Position[1]
	}
	assert.Equal(t, float32(0), sum)
}

func TestCycleTerminates(t *testing.T) {
	elements := []*bpmn.Element{
		node("a", bpmn.StartEvent),
		node("b", bpmn.Task),
	}
	flows := []*bpmn.Element{
		flow("f1", "a", "b"),
		flow("f2", "b", "a"),
	}
	nodes := layout.New().Layout(elements, flows)
	require.Len(t, nodes, 2)
	assert.Equal(t, 0, nodes["a"].Level)
	assert.Equal(t, 1, nodes["b"].Level)
}

func TestEmptyInput(t *testing.T) {
	nodes := layout.New().Layout(nil, nil)
	assert.Empty(t, nodes)
	assert.Empty(t, layout.Layout(nil))
}

func TestNoStartEventSeedsFirstNode(t *testing.T) {
	elements := []*bpmn.Element{
		node("a", bpmn.Task),
		node("b", bpmn.Task),
	}
	flows := []*bpmn.Element{flow("f1", "a", "b")}
	nodes := layout.New().Layout(elements, flows)
	assert.Equal(t, 0, nodes["a"].Level)
	assert.Equal(t, 1, nodes["b"].Level)
}

func TestDanglingFlowIgnored(t *testing.T) {
	elements := []*bpmn.Element{node("start", bpmn.StartEvent)}
	flows := []*bpmn.Element{
		flow("f1", "start", "missing"),
		flow("f2", "", "start"),
	}
	nodes := layout.New().Layout(elements, flows)
	require.Len(t, nodes, 1)
	assert.Equal(t, 0, nodes["start"].Level)
}

func TestUnreachableNodeDefaultsToLevelZero(t *testing.T) {
	elements := []*bpmn.Element{
		node("start", bpmn.StartEvent),
		node("island", bpmn.Task),
	}
	nodes := layout.New().Layout(elements, nil)
	require.Len(t, nodes, 2)
	assert.Equal(t, 0, nodes["island"].Level)
}

func TestCustomSpacing(t *testing.T) {
	elements := []*bpmn.Element{
		node("start", bpmn.StartEvent),
		node("a", bpmn.Task),
	}
	flows := []*bpmn.Element{flow("f1", "start", "a")}
	e := layout.Engine{HorizontalSpacing: 5, VerticalSpacing: 1}
	nodes := e.Layout(elements, flows)
	assert.Equal(t, [3]float32{5, 0, 0}, nodes["a"].Position)
}

func TestLayoutWholeProcess(t *testing.T) {
	p, err := bpmn.SampleProcess()
	require.NoError(t, err)
	nodes := layout.Layout(p)
	require.Len(t, nodes, len(p.Elements))
	for _, el := range p.Elements {
		_, ok := nodes[el.ID]
		assert.True(t, ok, "element %s missing from layout", el.ID)
	}
}
