// package delegate compiles instruction graphs to Go closures.
package delegate

import (
	"fmt"
	"sync"

	"elementlang.org/numc/diag"
	"elementlang.org/numc/instr"
	"elementlang.org/numc/spec"
)

const DefaultMaxIterations = 1 << 20

type config struct {
	maxIterations int
}

type Option func(*config)

// WithMaxIterations sets the maximum number of iterations of any single loop, in one call.
// A call which exceeds it fails.
func WithMaxIterations(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("max iterations must be >= 0, have %d", n))
	}
	return func(c *config) {
		c.maxIterations = n
	}
}

// Func is a compiled function.
// Calls are serialized, since a Func may hold state between calls.
type Func struct {
	inputs   int
	outputs  []*node
	persists []*persistSlot

	mu sync.Mutex
}

// Compile compiles outputs into a Func taking inputs arguments.
// The outputs should already be optimized, any instruction graph is accepted.
func Compile(inputs int, outputs []instr.Node, opts ...Option) (*Func, error) {
	cfg := config{maxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &compiler{
		cfg:    cfg,
		inputs: inputs,
		scan:   instr.NewStateScanner(),
		nodes:  make(map[instr.Node]*node),
		groups: make(map[instr.Group]*group),
	}
	if free := instr.FreeStates(outputs...); len(free) > 0 {
		return nil, diag.Errorf(diag.InvalidCompileTarget, "delegate: %v is not bound by any group", free[0])
	}
	f := &Func{inputs: inputs}
	for _, out := range outputs {
		n, err := c.compile(out)
		if err != nil {
			return nil, err
		}
		f.outputs = append(f.outputs, n)
	}
	f.persists = c.persists
	return f, nil
}

func (f *Func) Inputs() int {
	return f.inputs
}

func (f *Func) Outputs() int {
	return len(f.outputs)
}

// Call evaluates the function on args.
// Persisted state is only updated if the call succeeds.
func (f *Func) Call(args []float32) ([]float32, error) {
	out := make([]float32, len(f.outputs))
	if err := f.CallInto(out, args); err != nil {
		return nil, err
	}
	return out, nil
}

// CallInto evaluates the function on args, writing the outputs to out.
func (f *Func) CallInto(out, args []float32) error {
	if len(args) != f.inputs {
		return diag.Errorf(diag.ArgumentCountMismatch, "function takes %d arguments, have %d", f.inputs, len(args))
	}
	if len(out) != len(f.outputs) {
		return diag.Errorf(diag.ArgumentCountMismatch, "function returns %d values, have space for %d", len(f.outputs), len(out))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fr := newRoot(f, args)
	for i, n := range f.outputs {
		v, err := n.value(fr)
		if err != nil {
			return err
		}
		out[i] = v
	}
	for _, p := range f.persists {
		if next, exists := fr.call.pending[p]; exists {
			copy(p.current, next)
		}
	}
	return nil
}

// Reset returns all persisted state to its initial value.
func (f *Func) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.persists {
		copy(p.current, p.initial)
	}
}

type stateKey struct {
	id, scope int
}

func keyOf(s *instr.State) stateKey {
	return stateKey{id: s.ID, scope: s.Scope}
}

// call holds the data for a single call
type call struct {
	f       *Func
	args    []float32
	pending map[*persistSlot][]float32
}

// frame holds values which are fixed for some part of a call.
// The root frame holds values which do not depend on any state.
// Each loop iteration gets a frame binding the loop's state.
type frame struct {
	call   *call
	parent *frame
	keys   []stateKey
	vals   []float32

	memo   map[*node]float32
	groups map[*group][]float32
}

func newRoot(f *Func, args []float32) *frame {
	return &frame{
		call: &call{f: f, args: args, pending: make(map[*persistSlot][]float32)},
	}
}

func (fr *frame) child(keys []stateKey, vals []float32) *frame {
	return &frame{call: fr.call, parent: fr, keys: keys, vals: vals}
}

func (fr *frame) root() *frame {
	for fr.parent != nil {
		fr = fr.parent
	}
	return fr
}

func (fr *frame) lookup(k stateKey) float32 {
	for x := fr; x != nil; x = x.parent {
		for i := range x.keys {
			if x.keys[i] == k {
				return x.vals[i]
			}
		}
	}
	panic(fmt.Sprintf("state %v is not bound", k))
}

type node struct {
	// stateful nodes are cached in the frame they are evaluated in, everything else is cached in the root.
	stateful bool
	// leaves are cheaper to evaluate than to cache.
	leaf bool
	eval func(fr *frame) (float32, error)
}

func (n *node) value(fr *frame) (float32, error) {
	if n.leaf {
		return n.eval(fr)
	}
	if !n.stateful {
		fr = fr.root()
	}
	if v, exists := fr.memo[n]; exists {
		return v, nil
	}
	v, err := n.eval(fr)
	if err != nil {
		return 0, err
	}
	if fr.memo == nil {
		fr.memo = make(map[*node]float32)
	}
	fr.memo[n] = v
	return v, nil
}

type group struct {
	stateful bool
	eval     func(fr *frame) ([]float32, error)
}

func (g *group) value(fr *frame) ([]float32, error) {
	if !g.stateful {
		fr = fr.root()
	}
	if vs, exists := fr.groups[g]; exists {
		return vs, nil
	}
	vs, err := g.eval(fr)
	if err != nil {
		return nil, err
	}
	if fr.groups == nil {
		fr.groups = make(map[*group][]float32)
	}
	fr.groups[g] = vs
	return vs, nil
}

type persistSlot struct {
	initial []float32
	current []float32
}

type compiler struct {
	cfg    config
	inputs int
	scan   *instr.StateScanner

	nodes    map[instr.Node]*node
	groups   map[instr.Group]*group
	persists []*persistSlot
}

func (c *compiler) compile(x instr.Node) (*node, error) {
	if n, exists := c.nodes[x]; exists {
		return n, nil
	}
	n, err := c.compileNode(x)
	if err != nil {
		return nil, err
	}
	c.nodes[x] = n
	return n, nil
}

func (c *compiler) compileNode(x instr.Node) (*node, error) {
	stateful := len(c.scan.Free(x)) > 0
	switch x := x.(type) {
	case *instr.Constant:
		v := x.Value
		return &node{leaf: true, eval: func(*frame) (float32, error) { return v, nil }}, nil
	case *instr.Input:
		if x.Slot < 0 || x.Slot >= c.inputs {
			return nil, diag.Errorf(diag.ArgumentCountMismatch, "delegate: %v refers to input %d, function has %d inputs", x, x.Slot, c.inputs)
		}
		slot := x.Slot
		return &node{leaf: true, eval: func(fr *frame) (float32, error) { return fr.call.args[slot], nil }}, nil
	case *instr.State:
		k := keyOf(x)
		return &node{leaf: true, stateful: true, eval: func(fr *frame) (float32, error) { return fr.lookup(k), nil }}, nil
	case *instr.Cached:
		return c.compile(x.Value)
	case *instr.Unary:
		a, err := c.compile(x.X)
		if err != nil {
			return nil, err
		}
		op := x.Op
		return &node{stateful: stateful, eval: func(fr *frame) (float32, error) {
			av, err := a.value(fr)
			if err != nil {
				return 0, err
			}
			return spec.EvalUnary(op, av), nil
		}}, nil
	case *instr.Binary:
		a, err := c.compile(x.A)
		if err != nil {
			return nil, err
		}
		b, err := c.compile(x.B)
		if err != nil {
			return nil, err
		}
		op := x.Op
		return &node{stateful: stateful, eval: func(fr *frame) (float32, error) {
			av, err := a.value(fr)
			if err != nil {
				return 0, err
			}
			bv, err := b.value(fr)
			if err != nil {
				return 0, err
			}
			return spec.EvalBinary(op, av, bv), nil
		}}, nil
	case *instr.Mux:
		sel, err := c.compile(x.Selector)
		if err != nil {
			return nil, err
		}
		ops, err := c.compileList(x.Operands)
		if err != nil {
			return nil, err
		}
		return &node{stateful: stateful, eval: func(fr *frame) (float32, error) {
			s, err := sel.value(fr)
			if err != nil {
				return 0, err
			}
			return ops[spec.SelectIndex(s, len(ops))].value(fr)
		}}, nil
	case *instr.GroupElement:
		if bg, ok := x.Group.(*instr.BasicGroup); ok {
			return c.compile(bg.Items[x.Index])
		}
		g, err := c.compileGroup(x.Group)
		if err != nil {
			return nil, err
		}
		idx := x.Index
		return &node{stateful: stateful, eval: func(fr *frame) (float32, error) {
			vs, err := g.value(fr)
			if err != nil {
				return 0, err
			}
			return vs[idx], nil
		}}, nil
	default:
		return nil, diag.Errorf(diag.InvalidCompileTarget, "delegate: %v is not a scalar instruction", x)
	}
}

func (c *compiler) compileList(xs []instr.Node) ([]*node, error) {
	ret := make([]*node, len(xs))
	for i := range xs {
		n, err := c.compile(xs[i])
		if err != nil {
			return nil, err
		}
		ret[i] = n
	}
	return ret, nil
}

func (c *compiler) compileGroup(x instr.Group) (*group, error) {
	if g, exists := c.groups[x]; exists {
		return g, nil
	}
	var g *group
	var err error
	switch x := x.(type) {
	case *instr.Loop:
		g, err = c.compileLoop(x)
	case *instr.Persist:
		g, err = c.compilePersist(x)
	default:
		err = diag.Errorf(diag.InvalidCompileTarget, "delegate: unsupported group %v", x)
	}
	if err != nil {
		return nil, err
	}
	c.groups[x] = g
	return g, nil
}

func (c *compiler) compileLoop(l *instr.Loop) (*group, error) {
	initial, err := c.compileList(initialValues(l.State))
	if err != nil {
		return nil, err
	}
	cond, err := c.compile(l.Condition)
	if err != nil {
		return nil, err
	}
	body, err := c.compileList(l.Body)
	if err != nil {
		return nil, err
	}
	keys := stateKeys(l.State)
	maxIter := c.cfg.maxIterations
	return &group{
		stateful: len(c.scan.Free(l)) > 0,
		eval: func(fr *frame) ([]float32, error) {
			vals, err := evalList(fr, initial)
			if err != nil {
				return nil, err
			}
			for i := 0; ; i++ {
				iter := fr.child(keys, vals)
				cv, err := cond.value(iter)
				if err != nil {
					return nil, err
				}
				if !spec.ToBool(cv) {
					return vals, nil
				}
				if i >= maxIter {
					return nil, diag.Errorf(diag.InfiniteLoop, "loop did not finish after %d iterations", maxIter)
				}
				if vals, err = evalList(iter, body); err != nil {
					return nil, err
				}
			}
		},
	}, nil
}

func (c *compiler) compilePersist(p *instr.Persist) (*group, error) {
	if free := c.scan.Free(p); len(free) > 0 {
		return nil, diag.Errorf(diag.InvalidCompileTarget, "delegate: persisted state cannot depend on %v", free[0])
	}
	slot := &persistSlot{}
	for _, s := range p.State {
		v, ok := instr.ConstValue(s.Initial)
		if !ok {
			return nil, diag.Errorf(diag.InvalidCompileTarget, "delegate: persisted state %v has non-constant initial value %v", s, s.Initial)
		}
		slot.initial = append(slot.initial, v)
	}
	slot.current = append([]float32{}, slot.initial...)
	newValue, err := c.compileList(p.NewValue)
	if err != nil {
		return nil, err
	}
	c.persists = append(c.persists, slot)
	keys := stateKeys(p.State)
	return &group{
		eval: func(fr *frame) ([]float32, error) {
			fr = fr.child(keys, slot.current)
			vals, err := evalList(fr, newValue)
			if err != nil {
				return nil, err
			}
			fr.call.pending[slot] = vals
			return vals, nil
		},
	}, nil
}

func evalList(fr *frame, ns []*node) ([]float32, error) {
	ret := make([]float32, len(ns))
	for i, n := range ns {
		v, err := n.value(fr)
		if err != nil {
			return nil, err
		}
		ret[i] = v
	}
	return ret, nil
}

func initialValues(xs []*instr.State) []instr.Node {
	ret := make([]instr.Node, len(xs))
	for i := range xs {
		ret[i] = xs[i].Initial
	}
	return ret
}

func stateKeys(xs []*instr.State) []stateKey {
	ret := make([]stateKey, len(xs))
	for i := range xs {
		ret[i] = keyOf(xs[i])
	}
	return ret
}
