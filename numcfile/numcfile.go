// package numcfile loads function descriptions from YAML.
//
// A description file looks like:
//
//	functions:
//	  - name: lerp
//	    inputs: [a, b, t]
//	    outputs:
//	      - name: out
//	        expr: add(a, mul(sub(b, a), t))
package numcfile

import (
	"fmt"
	"os"
	"slices"

	"go.brendoncarroll.net/exp/slices2"
	"gopkg.in/yaml.v3"

	"elementlang.org/numc/compiler"
	"elementlang.org/numc/instr"
)

// File is the contents of a description file.
type File struct {
	Functions []FuncDesc `yaml:"functions"`
}

// FuncDesc describes a function with scalar inputs and outputs.
type FuncDesc struct {
	Name    string       `yaml:"name"`
	Inputs  []string     `yaml:"inputs"`
	Outputs []OutputDesc `yaml:"outputs"`
}

type OutputDesc struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// Parse parses a description file.
// It does not parse the expressions, see FuncDesc.Function
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, fd := range f.Functions {
		if fd.Name == "" {
			return nil, fmt.Errorf("function without a name")
		}
		if _, exists := seen[fd.Name]; exists {
			return nil, fmt.Errorf("function %s is defined more than once", fd.Name)
		}
		seen[fd.Name] = struct{}{}
	}
	return &f, nil
}

// Load reads and parses the description file at p.
func Load(p string) (*File, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return f, nil
}

// Names returns the names of the functions in the file.
func (f *File) Names() []string {
	return slices2.Map(f.Functions, func(fd FuncDesc) string { return fd.Name })
}

// Lookup returns the function called name.
func (f *File) Lookup(name string) (compiler.Function, error) {
	i := slices.IndexFunc(f.Functions, func(fd FuncDesc) bool { return fd.Name == name })
	if i < 0 {
		return nil, fmt.Errorf("no function named %q", name)
	}
	return f.Functions[i].Function()
}

// All returns every function in the file.
func (f *File) All() ([]compiler.Function, error) {
	var ret []compiler.Function
	for _, fd := range f.Functions {
		fn, err := fd.Function()
		if err != nil {
			return nil, err
		}
		ret = append(ret, fn)
	}
	return ret, nil
}

// Function parses the output expressions and returns a Function computing them.
func (fd FuncDesc) Function() (compiler.Function, error) {
	if len(fd.Outputs) == 0 {
		return nil, fmt.Errorf("function %s has no outputs", fd.Name)
	}
	if err := checkNames("input", fd.Inputs); err != nil {
		return nil, fmt.Errorf("function %s: %w", fd.Name, err)
	}
	outNames := slices2.Map(fd.Outputs, func(od OutputDesc) string { return od.Name })
	if err := checkNames("output", outNames); err != nil {
		return nil, fmt.Errorf("function %s: %w", fd.Name, err)
	}
	exprs := make([]Expr, len(fd.Outputs))
	for i, od := range fd.Outputs {
		x, err := ParseExpr(od.Expr, fd.Inputs)
		if err != nil {
			return nil, fmt.Errorf("function %s: output %s: %w", fd.Name, od.Name, err)
		}
		exprs[i] = x
	}
	toPort := func(name string) compiler.Port { return compiler.Port{Name: name, Type: compiler.Num} }
	return compiler.FuncOf(fd.Name, slices2.Map(fd.Inputs, toPort), slices2.Map(outNames, toPort),
		func(args []compiler.Value) ([]compiler.Value, error) {
			xs := make([]instr.Node, len(args))
			for i, arg := range args {
				s, ok := arg.(compiler.Scalar)
				if !ok {
					return nil, fmt.Errorf("%s: argument %d is %v, not Num", fd.Name, i, arg.Type())
				}
				xs[i] = s.X
			}
			outs := make([]compiler.Value, len(exprs))
			for i, x := range exprs {
				outs[i] = compiler.Scalar{X: x.Build(xs)}
			}
			return outs, nil
		},
	), nil
}

func checkNames(kind string, names []string) error {
	seen := map[string]struct{}{}
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("empty %s name", kind)
		}
		if kind == "input" && IsKeyword(name) {
			return fmt.Errorf("%s name %q is reserved", kind, name)
		}
		if _, exists := seen[name]; exists {
			return fmt.Errorf("duplicate %s %q", kind, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
