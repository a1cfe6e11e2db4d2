package instr

import (
	"fmt"
	"strings"
)

// Group is an instruction with multiple outputs.
// Outputs are addressed with GroupElement
type Group interface {
	Node
	// Size is the number of outputs
	Size() int

	isGroup()
}

// BasicGroup is a list of instructions
type BasicGroup struct {
	baseNode
	Items []Node
}

func NewBasicGroup(items ...Node) *BasicGroup {
	var e encoder
	e.kind(kindBasicGroup)
	e.nodes(items)
	return &BasicGroup{baseNode: baseNode{fp: e.sum()}, Items: append([]Node{}, items...)}
}

func (g *BasicGroup) Size() int { return len(g.Items) }

func (*BasicGroup) isGroup() {}

func (g *BasicGroup) String() string {
	return fmt.Sprintf("Group(%s)", joinNodes(g.Items))
}

// GroupElement is the Index-th output of a Group
type GroupElement struct {
	baseNode
	Group Group
	Index int
}

func NewElement(g Group, index int) *GroupElement {
	if g == nil {
		panic("nil group")
	}
	if index < 0 || index >= g.Size() {
		panic(fmt.Sprintf("group index %d out of range for group of size %d", index, g.Size()))
	}
	var e encoder
	e.kind(kindGroupElement)
	e.node(g)
	e.int(index)
	return &GroupElement{baseNode: baseNode{fp: e.sum()}, Group: g, Index: index}
}

func (ge *GroupElement) String() string {
	return fmt.Sprintf("%v.%d", ge.Group, ge.Index)
}

// Elements returns a GroupElement for each output of g
func Elements(g Group) []Node {
	ret := make([]Node, g.Size())
	for i := range ret {
		ret[i] = NewElement(g, i)
	}
	return ret
}

// Persist is a group whose state survives between invocations of the compiled function.
// Each output is the state after applying NewValue to the previous state.
type Persist struct {
	baseNode
	State    []*State
	NewValue []Node
}

// NewPersist creates a Persist with one state slot per initial value.
// newValue is called with the state, and must return one instruction per state slot.
func NewPersist(initial []Node, newValue BodyFunc) (*Persist, error) {
	var nv []Node
	state, err := resolveScope(initial, func(state []Node) ([]Node, error) {
		var err error
		if nv, err = evalBody(newValue, state); err != nil {
			return nil, err
		}
		return nv, nil
	})
	if err != nil {
		return nil, err
	}
	return makePersist(state, nv), nil
}

func makePersist(state []*State, newValue []Node) *Persist {
	checkStateCount(state, newValue)
	var e encoder
	e.kind(kindPersist)
	encodeState(&e, state)
	e.nodes(newValue)
	return &Persist{
		baseNode: baseNode{fp: e.sum()},
		State:    state,
		NewValue: newValue,
	}
}

// With returns a Persist with the same state slots, but new initial values and new value expressions.
func (p *Persist) With(initial []Node, newValue []Node) *Persist {
	return makePersist(rebindState(p.State, initial), newValue)
}

func (p *Persist) Size() int { return len(p.State) }

func (*Persist) isGroup() {}

// Scope returns the scope of the state slots.
func (p *Persist) Scope() int { return p.State[0].Scope }

func (p *Persist) String() string {
	return fmt.Sprintf("Persist(%s; %s)", stateListJoin(p.State), joinNodes(p.NewValue))
}

func checkStateCount(state []*State, body []Node) {
	if len(state) == 0 {
		panic("group must have at least one state slot")
	}
	if len(state) != len(body) {
		panic(fmt.Sprintf("iteration state counts are different: %d state, %d body", len(state), len(body)))
	}
}

func encodeState(e *encoder, state []*State) {
	e.int(len(state))
	for _, s := range state {
		e.node(s)
		e.node(s.Initial)
	}
}

func rebindState(state []*State, initial []Node) []*State {
	if len(initial) != len(state) {
		panic(fmt.Sprintf("rebinding %d state slots with %d initial values", len(state), len(initial)))
	}
	ret := make([]*State, len(state))
	for i, s := range state {
		ret[i] = NewState(s.ID, s.Scope, initial[i])
	}
	return ret
}

func stateListJoin(xs []*State) string {
	var sb strings.Builder
	for i, x := range xs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(x.Initial.String())
	}
	return sb.String()
}

func stateNodes(xs []*State) []Node {
	ret := make([]Node, len(xs))
	for i := range xs {
		ret[i] = xs[i]
	}
	return ret
}

func initialValues(xs []*State) []Node {
	ret := make([]Node, len(xs))
	for i := range xs {
		ret[i] = xs[i].Initial
	}
	return ret
}
