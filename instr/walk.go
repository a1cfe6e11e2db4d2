package instr

import "fmt"

// Dependent returns the direct children of n.
func Dependent(n Node) []Node {
	switch n := n.(type) {
	case *Constant, *Input, *State:
		return nil
	case *Unary:
		return []Node{n.X}
	case *Binary:
		return []Node{n.A, n.B}
	case *Mux:
		return append(append([]Node{}, n.Operands...), n.Selector)
	case *Cached:
		return []Node{n.Value}
	case *BasicGroup:
		return n.Items
	case *Loop:
		ret := initialValues(n.State)
		ret = append(ret, stateNodes(n.State)...)
		ret = append(ret, n.Condition)
		return append(ret, n.Body...)
	case *Persist:
		ret := initialValues(n.State)
		ret = append(ret, stateNodes(n.State)...)
		return append(ret, n.NewValue...)
	case *GroupElement:
		return []Node{n.Group}
	default:
		panic(fmt.Sprintf("unknown instruction %T", n))
	}
}

// Walk calls fn on n and every node reachable from n, in pre-order.
// Each distinct node is visited once.
// If fn returns false, the children of that node are not visited.
func Walk(n Node, fn func(Node) bool) {
	walk(n, make(map[Node]struct{}), fn)
}

func walk(n Node, visited map[Node]struct{}, fn func(Node) bool) {
	if _, exists := visited[n]; exists {
		return
	}
	visited[n] = struct{}{}
	if !fn(n) {
		return
	}
	for _, dep := range Dependent(n) {
		walk(dep, visited, fn)
	}
}

// AllDependent returns the transitive closure of Dependent, not including the roots themselves
// unless they are reachable from another root.
func AllDependent(roots ...Node) (ret []Node) {
	visited := make(map[Node]struct{})
	for _, root := range roots {
		for _, dep := range Dependent(root) {
			walk(dep, visited, func(x Node) bool {
				ret = append(ret, x)
				return true
			})
		}
	}
	return ret
}

// FreeStates returns the State nodes used by xs which are not bound by a group within xs.
// Each distinct State node is returned once, States which are equal but distinct nodes are all returned.
func FreeStates(xs ...Node) []*State {
	fs := freeStates{memo: make(map[Node][]*State)}
	var ret []*State
	seen := make(map[*State]struct{})
	for _, x := range xs {
		for _, s := range fs.of(x) {
			if _, exists := seen[s]; !exists {
				seen[s] = struct{}{}
				ret = append(ret, s)
			}
		}
	}
	return ret
}

// StateScanner finds the free states of many nodes in the same graph, sharing work between queries.
type StateScanner struct {
	fs freeStates
}

func NewStateScanner() *StateScanner {
	return &StateScanner{fs: freeStates{memo: make(map[Node][]*State)}}
}

// Free returns the free states of n.  The returned slice must not be modified.
func (s *StateScanner) Free(n Node) []*State {
	return s.fs.of(n)
}

type freeStates struct {
	memo map[Node][]*State
}

func (fs *freeStates) of(n Node) []*State {
	if ret, exists := fs.memo[n]; exists {
		return ret
	}
	var ret []*State
	switch n := n.(type) {
	case *State:
		ret = []*State{n}
	case *Loop:
		ret = fs.union(initialValues(n.State)...)
		inner := fs.union(append(append([]Node{}, n.Body...), n.Condition)...)
		ret = mergeStates(ret, unbind(inner, n.State))
	case *Persist:
		ret = fs.union(initialValues(n.State)...)
		ret = mergeStates(ret, unbind(fs.union(n.NewValue...), n.State))
	default:
		ret = fs.union(Dependent(n)...)
	}
	fs.memo[n] = ret
	return ret
}

func (fs *freeStates) union(xs ...Node) (ret []*State) {
	for _, x := range xs {
		ret = mergeStates(ret, fs.of(x))
	}
	return ret
}

func mergeStates(a, b []*State) []*State {
	if len(a) == 0 {
		return b
	}
	ret := append([]*State{}, a...)
	for _, s := range b {
		if !containsPtr(ret, s) {
			ret = append(ret, s)
		}
	}
	return ret
}

// unbind removes the states bound by a group
func unbind(xs []*State, bound []*State) (ret []*State) {
	for _, s := range xs {
		isBound := false
		for _, b := range bound {
			if Equal(s, b) {
				isBound = true
				break
			}
		}
		if !isBound {
			ret = append(ret, s)
		}
	}
	return ret
}

func containsPtr(xs []*State, s *State) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
