package lmnt

import (
	"elementlang.org/numc/diag"
)

// VM executes the function in an Archive.
// A VM is not safe for concurrent use, but can be used for many calls.
type VM struct {
	a     *Archive
	stack []float32
	steps uint64
}

func NewVM(a *Archive) *VM {
	return &VM{
		a:     a,
		stack: make([]float32, a.StackSize),
	}
}

// Run executes the function on args and returns the outputs.
func (vm *VM) Run(args []float32) ([]float32, error) {
	out := make([]float32, vm.a.Outputs)
	if err := vm.RunInto(out, args); err != nil {
		return nil, err
	}
	return out, nil
}

// RunInto executes the function on args, writing the outputs to out.
func (vm *VM) RunInto(out, args []float32) error {
	a := vm.a
	if len(args) != a.Inputs {
		return diag.Errorf(diag.ArgumentCountMismatch, "%s takes %d arguments, have %d", a.Name, a.Inputs, len(args))
	}
	if len(out) != a.Outputs {
		return diag.Errorf(diag.ArgumentCountMismatch, "%s returns %d values, have space for %d", a.Name, a.Outputs, len(out))
	}
	clear(vm.stack)
	copy(vm.stack, args)
	copy(vm.stack[a.ConstBase():], a.Constants)
	for _, r := range a.Code {
		vm.step(r)
	}
	copy(out, vm.stack[a.Inputs:a.Inputs+a.Outputs])
	return nil
}

func (vm *VM) step(r Record) {
	vm.steps++
	if r.Op == OpNoop {
		return
	}
	fn, ok := execTable[r.Op]
	if !ok {
		// Parse rejects unknown opcodes
		panic(r.Op)
	}
	vm.stack[r.Dst] = fn(vm.stack[r.A], vm.stack[r.B])
}

// Steps returns the number of records executed since the VM was created.
func (vm *VM) Steps() uint64 {
	return vm.steps
}
