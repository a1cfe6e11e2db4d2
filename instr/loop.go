package instr

import (
	"fmt"

	"elementlang.org/numc/diag"
	"elementlang.org/numc/spec"
)

// ConditionFunc produces the loop condition from the state of an iteration.
type ConditionFunc = func(state []Node) (Node, error)

// BodyFunc produces the next state from the state of an iteration.
type BodyFunc = func(state []Node) ([]Node, error)

// DummyScope is the scope of the placeholder states used to check loop conditions.
const DummyScope = -1

// maxScopeRounds bounds the scope fixpoint.
// Each round can only be caused by a distinct enclosing scope, so this is a limit on nesting depth.
const maxScopeRounds = 256

// Loop is a group representing repeated iteration while Condition is true.
// The outputs of the loop are the final state.
type Loop struct {
	baseNode
	State     []*State
	Condition Node
	Body      []Node
}

// NewLoop creates a Loop with one state slot per initial value.
//
// cond and body are called with the iteration state and must build new instructions from it.
// If cond returns a true constant independent of the state, the loop can never terminate and
// an InfiniteLoop error is returned.
// The state slots are given a scope greater than the scope of any enclosing loop whose state
// is used by cond or body.
func NewLoop(initial []Node, cond ConditionFunc, body BodyFunc) (*Loop, error) {
	if len(initial) == 0 {
		panic("loop must have at least one state slot")
	}
	dummy := makeState(initial, DummyScope)
	dc, err := cond(stateNodes(dummy))
	if err != nil {
		return nil, err
	}
	if v, ok := ConstValue(dc); ok && spec.ToBool(v) {
		return nil, diag.Errorf(diag.InfiniteLoop, "loop condition function always returns true")
	}

	var b []Node
	var c Node
	state, err := resolveScope(initial, func(state []Node) ([]Node, error) {
		var err error
		if b, err = evalBody(body, state); err != nil {
			return nil, err
		}
		if c, err = cond(state); err != nil {
			return nil, err
		}
		return append(append([]Node{}, b...), c), nil
	})
	if err != nil {
		return nil, err
	}
	return makeLoop(state, c, b), nil
}

func makeLoop(state []*State, cond Node, body []Node) *Loop {
	checkStateCount(state, body)
	var e encoder
	e.kind(kindLoop)
	encodeState(&e, state)
	e.node(cond)
	e.nodes(body)
	return &Loop{
		baseNode:  baseNode{fp: e.sum()},
		State:     state,
		Condition: cond,
		Body:      append([]Node{}, body...),
	}
}

// With returns a Loop with the same state slots, but new initial values, condition and body.
// The condition and body must be expressed in terms of the loop's existing state.
func (l *Loop) With(initial []Node, cond Node, body []Node) *Loop {
	return makeLoop(rebindState(l.State, initial), cond, body)
}

func (l *Loop) Size() int { return len(l.State) }

func (*Loop) isGroup() {}

// Scope returns the scope of the state slots.
func (l *Loop) Scope() int { return l.State[0].Scope }

func (l *Loop) String() string {
	return fmt.Sprintf("Loop(%s; %v; %s)", stateListJoin(l.State), l.Condition, joinNodes(l.Body))
}

func makeState(initial []Node, scope int) []*State {
	ret := make([]*State, len(initial))
	for i, x := range initial {
		ret[i] = NewState(i, scope, x)
	}
	return ret
}

func evalBody(fn BodyFunc, state []Node) ([]Node, error) {
	b, err := fn(state)
	if err != nil {
		return nil, err
	}
	if len(b) != len(state) {
		panic(fmt.Sprintf("iteration state counts are different: %d state, %d body", len(state), len(b)))
	}
	return b, nil
}

// resolveScope finds a scope for a new group's state, which is greater than the scope of any state
// from an enclosing group referenced by the group's instructions or initial values,
// and different from the scope of any group nested in the instructions.
// eval is called with the candidate state, and returns the instructions of the group.
// Groups nested inside eval which use the candidate state see it as free, so they are given a greater scope.
// Nested groups which do not use it keep their own scope, and the candidate moves past them.
func resolveScope(initial []Node, eval func(state []Node) ([]Node, error)) ([]*State, error) {
	scope := 0
	for round := 0; round < maxScopeRounds; round++ {
		state := makeState(initial, scope)
		xs, err := eval(stateNodes(state))
		if err != nil {
			return nil, err
		}
		next := scope
		for _, s := range FreeStates(append(append([]Node{}, xs...), initial...)...) {
			if isOwnState(state, s) {
				continue
			}
			if s.Scope >= next {
				next = s.Scope + 1
			}
		}
		for _, x := range AllDependent(xs...) {
			if s, ok := x.(*State); ok && s.Scope == scope && !isOwnState(state, s) {
				next = max(next, scope+1)
				break
			}
		}
		if next == scope {
			return state, nil
		}
		scope = next
	}
	panic(fmt.Sprintf("state scope did not converge after %d rounds", maxScopeRounds))
}

func isOwnState(state []*State, s *State) bool {
	for _, s2 := range state {
		if s == s2 {
			return true
		}
	}
	return false
}
