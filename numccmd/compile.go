package numccmd

import (
	"fmt"
	"os"

	"go.brendoncarroll.net/star"

	"elementlang.org/numc/compiler"
	"elementlang.org/numc/diag"
)

var compileCmd = star.Command{
	Metadata: star.Metadata{
		Short: "compile functions to LMNT modules, and add them to the catalog",
	},
	Flags: []star.IParam{funcsParam, fnParam, outParam, DBParam},
	F: func(c star.Context) error {
		ctx := newContext(c)
		f := funcsParam.Load(c)
		cat := openCatalog(c)
		comp := compiler.New(compiler.WithStore(cat))

		var fns []compiler.Function
		if name := fnParam.Load(c); name != "" {
			fn, err := f.Lookup(name)
			if err != nil {
				return err
			}
			fns = append(fns, fn)
		} else {
			var err error
			if fns, err = f.All(); err != nil {
				return err
			}
		}
		out := outParam.Load(c)
		if out != "" && len(fns) != 1 {
			return fmt.Errorf("-o requires exactly one function, have %d. use -fn to pick one", len(fns))
		}
		results, err := comp.CompileAll(ctx, fns)
		if err != nil {
			return err
		}
		var failed int
		for i, res := range results {
			name := fns[i].Name()
			if res.Err != nil {
				failed++
				c.Printf("%-16s %v\n", name, diag.CodeOf(res.Err))
				continue
			}
			m := res.Module
			if _, err := cat.PutFunction(ctx, m.Name, m.Inputs, m.Outputs, m.Data); err != nil {
				return err
			}
			c.Printf("%-16s %v %d bytes\n", name, m.CID, len(m.Data))
			if out != "" {
				if err := os.WriteFile(out, m.Data, 0o644); err != nil {
					return err
				}
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d functions failed to compile", failed, len(fns))
		}
		return nil
	},
}

var outParam = star.Param[string]{
	Name:    "o",
	Default: star.Ptr(""),
	Parse:   star.ParseString,
}

var gosrcCmd = star.Command{
	Metadata: star.Metadata{
		Short: "print Go source code for a function",
	},
	Flags: []star.IParam{funcsParam, fnParam},
	F: func(c star.Context) error {
		ctx := newContext(c)
		fn, err := funcsParam.Load(c).Lookup(fnParam.Load(c))
		if err != nil {
			return err
		}
		return compiler.New().CompileSource(ctx, c.StdOut, fn)
	},
}

var evalCmd = star.Command{
	Metadata: star.Metadata{
		Short: "evaluate a function on arguments, without compiling to LMNT",
	},
	Flags: []star.IParam{funcsParam, fnParam},
	Pos:   []star.IParam{argsParam},
	F: func(c star.Context) error {
		ctx := newContext(c)
		fn, err := funcsParam.Load(c).Lookup(fnParam.Load(c))
		if err != nil {
			return err
		}
		d, err := compiler.New().CompileDelegate(ctx, fn)
		if err != nil {
			return err
		}
		outs, err := d.Call(argsParam.LoadAll(c))
		if err != nil {
			return err
		}
		for i, p := range fn.Outputs() {
			c.Printf("%s = %v\n", p.Name, outs[i])
		}
		return nil
	},
}
