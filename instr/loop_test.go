package instr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"elementlang.org/numc/diag"
	"elementlang.org/numc/spec"
)

// countTo builds a loop which counts from 0 to n, accumulating acc + i
func countTo(t testing.TB, n Node, acc Node) *Loop {
	l, err := NewLoop([]Node{Zero, acc},
		func(s []Node) (Node, error) {
			return NewBinary(spec.Lt, s[0], n), nil
		},
		func(s []Node) ([]Node, error) {
			return []Node{
				NewBinary(spec.Add, s[0], One),
				NewBinary(spec.Add, s[1], s[0]),
			}, nil
		},
	)
	require.NoError(t, err)
	return l
}

func TestLoopTautology(t *testing.T) {
	_, err := NewLoop([]Node{Zero},
		func(s []Node) (Node, error) { return Const(1), nil },
		func(s []Node) ([]Node, error) { return []Node{NewBinary(spec.Add, s[0], One)}, nil },
	)
	require.Error(t, err)
	require.Equal(t, diag.InfiniteLoop, diag.CodeOf(err))

	// any constant which is true, is always true
	_, err = NewLoop([]Node{Zero},
		func(s []Node) (Node, error) { return Const(7), nil },
		func(s []Node) ([]Node, error) { return s, nil },
	)
	require.Equal(t, diag.InfiniteLoop, diag.CodeOf(err))
}

func TestLoopFalseConstant(t *testing.T) {
	l, err := NewLoop([]Node{Zero},
		func(s []Node) (Node, error) { return False(), nil },
		func(s []Node) ([]Node, error) { return s, nil },
	)
	require.NoError(t, err)
	require.True(t, IsConst(l.Condition, 0))
}

func TestLoopErrors(t *testing.T) {
	myErr := errors.New("body failed")
	_, err := NewLoop([]Node{Zero},
		func(s []Node) (Node, error) { return NewBinary(spec.Lt, s[0], One), nil },
		func(s []Node) ([]Node, error) { return nil, myErr },
	)
	require.ErrorIs(t, err, myErr)
}

func TestLoopStateCountMismatch(t *testing.T) {
	require.Panics(t, func() {
		NewLoop([]Node{Zero, One},
			func(s []Node) (Node, error) { return NewBinary(spec.Lt, s[0], One), nil },
			func(s []Node) ([]Node, error) { return s[:1], nil },
		)
	})
}

func TestLoopSimple(t *testing.T) {
	n := NewInput(0, "n")
	l := countTo(t, n, Zero)
	require.Equal(t, 2, l.Size())
	require.Equal(t, 0, l.Scope())
	for i, s := range l.State {
		require.Equal(t, i, s.ID)
		require.Equal(t, 0, s.Scope)
	}
	require.Equal(t, "Loop(0, 0; Lt(state0@0, n); Add(state0@0, 1), Add(state1@0, state0@0))", l.String())
	require.True(t, Equal(l, countTo(t, n, Zero)))
	require.False(t, Equal(l, countTo(t, n, One)))
}

func TestLoopNested(t *testing.T) {
	n := NewInput(0, "n")
	var inner *Loop
	outer, err := NewLoop([]Node{Zero, Zero},
		func(s []Node) (Node, error) {
			return NewBinary(spec.Lt, s[0], n), nil
		},
		func(s []Node) ([]Node, error) {
			// the inner loop sums 0..s[0] and adds it to s[1]
			inner = countTo(t, s[0], s[1])
			return []Node{
				NewBinary(spec.Add, s[0], One),
				NewElement(inner, 1),
			}, nil
		},
	)
	require.NoError(t, err)
	require.Greater(t, inner.Scope(), outer.Scope())
	assertScopesBelow(t, outer)
}

func TestLoopTripleNested(t *testing.T) {
	n := NewInput(0, "n")
	var middle, inner *Loop
	outer, err := NewLoop([]Node{Zero},
		func(s []Node) (Node, error) { return NewBinary(spec.Lt, s[0], n), nil },
		func(s0 []Node) ([]Node, error) {
			var err error
			middle, err = NewLoop([]Node{s0[0]},
				func(s []Node) (Node, error) { return NewBinary(spec.Lt, s[0], n), nil },
				func(s1 []Node) ([]Node, error) {
					inner = countTo(t, s1[0], s0[0])
					return []Node{NewBinary(spec.Add, NewElement(inner, 1), s1[0])}, nil
				},
			)
			if err != nil {
				return nil, err
			}
			return []Node{NewBinary(spec.Add, NewElement(middle, 0), One)}, nil
		},
	)
	require.NoError(t, err)
	require.Less(t, outer.Scope(), middle.Scope())
	require.Less(t, middle.Scope(), inner.Scope())
	assertScopesBelow(t, outer)

	// every state referenced in the innermost loop is either its own, or from an enclosing loop
	for _, s := range FreeStates(inner.Body...) {
		if s.Scope != inner.Scope() {
			require.Less(t, s.Scope, inner.Scope())
		}
	}
}

// TestLoopNestedClosed checks loops nested in a body which do not use the enclosing loop's state.
func TestLoopNestedClosed(t *testing.T) {
	var inner *Loop
	outer, err := NewLoop([]Node{Zero},
		func(s []Node) (Node, error) { return NewBinary(spec.Lt, s[0], Const(10)), nil },
		func(s []Node) ([]Node, error) {
			inner = countTo(t, Const(3), Zero)
			return []Node{NewBinary(spec.Add, s[0], NewElement(inner, 1))}, nil
		},
	)
	require.NoError(t, err)
	require.Equal(t, 0, inner.Scope())
	require.NotEqual(t, inner.Scope(), outer.Scope())
	require.False(t, Equal(outer.State[0], inner.State[0]))
	for _, x := range AllDependent(outer.Body...) {
		if s, ok := x.(*State); ok && s.Scope == outer.Scope() {
			require.True(t, isOwnState(outer.State, s), "state %v collides with the outer loop", s)
		}
	}

	// the closed loop is nested two levels down, under a loop which does use the outer state
	var middle *Loop
	outer, err = NewLoop([]Node{Zero},
		func(s []Node) (Node, error) { return NewBinary(spec.Lt, s[0], Const(10)), nil },
		func(s0 []Node) ([]Node, error) {
			var err error
			middle, err = NewLoop([]Node{s0[0]},
				func(s []Node) (Node, error) { return NewBinary(spec.Lt, s[0], Const(20)), nil },
				func(s1 []Node) ([]Node, error) {
					inner = countTo(t, Const(3), Zero)
					return []Node{NewBinary(spec.Add, s1[0], NewElement(inner, 1))}, nil
				},
			)
			if err != nil {
				return nil, err
			}
			return []Node{NewElement(middle, 0)}, nil
		},
	)
	require.NoError(t, err)
	scopes := map[int]struct{}{outer.Scope(): {}, middle.Scope(): {}, inner.Scope(): {}}
	require.Len(t, scopes, 3)
	require.Less(t, outer.Scope(), middle.Scope())
}

func TestLoopSiblings(t *testing.T) {
	n := NewInput(0, "n")
	a := countTo(t, n, Zero)
	b := countTo(t, NewElement(a, 1), Zero)
	// a is nested in b's condition, so b moves to another scope
	require.Equal(t, 0, a.Scope())
	require.Greater(t, b.Scope(), a.Scope())
	require.Empty(t, FreeStates(NewElement(b, 1)))

	// siblings which only meet outside of either loop share a scope
	c := countTo(t, n, Zero)
	sum := NewBinary(spec.Add, NewElement(a, 1), NewElement(c, 1))
	require.Equal(t, a.Scope(), c.Scope())
	require.Empty(t, FreeStates(sum))
}

func TestPersist(t *testing.T) {
	p, err := NewPersist([]Node{Zero}, func(s []Node) ([]Node, error) {
		return []Node{NewBinary(spec.Add, s[0], One)}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, p.Size())
	require.Equal(t, 0, p.Scope())
	require.Equal(t, "Persist(0; Add(state0@0, 1))", p.String())

	// a loop inside a persist gets a higher scope
	var l *Loop
	p2, err := NewPersist([]Node{Zero}, func(s []Node) ([]Node, error) {
		l = countTo(t, Const(3), s[0])
		return []Node{NewElement(l, 1)}, nil
	})
	require.NoError(t, err)
	require.Greater(t, l.Scope(), p2.Scope())
}

func TestLoopWith(t *testing.T) {
	n := NewInput(0, "n")
	l := countTo(t, n, Zero)
	l2 := l.With([]Node{One, One}, l.Condition, l.Body)
	require.Equal(t, l.Scope(), l2.Scope())
	require.True(t, IsConst(l2.State[0].Initial, 1))
	require.False(t, Equal(l, l2))
	require.True(t, Equal(l.State[0], l2.State[0]))
}

func TestFreeStates(t *testing.T) {
	s := NewState(0, 0, Zero)
	s2 := NewState(0, 0, One)
	x := NewBinary(spec.Add, s, s2)
	// equal states which are distinct nodes are all returned
	require.Len(t, FreeStates(x), 2)

	l := countTo(t, s, Zero)
	require.Equal(t, []*State{s}, FreeStates(NewElement(l, 0)))
}

// assertScopesBelow checks that l's scope is below the scope of every other state found in its instructions.
func assertScopesBelow(t testing.TB, l *Loop) {
	deps := AllDependent(append(append([]Node{}, l.Body...), l.Condition)...)
	var found int
	for _, d := range deps {
		s, ok := d.(*State)
		if !ok || s.Scope == l.Scope() {
			continue
		}
		found++
		require.Less(t, l.Scope(), s.Scope, "state %v", s)
	}
	require.NotZero(t, found)
}
