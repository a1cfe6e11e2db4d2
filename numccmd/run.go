package numccmd

import (
	"fmt"
	"os"

	"go.brendoncarroll.net/star"

	"elementlang.org/numc/lmnt"
)

var dumpCmd = star.Command{
	Metadata: star.Metadata{
		Short: "print the disassembly of an LMNT module",
	},
	Pos: []star.IParam{modulePathParam},
	F: func(c star.Context) error {
		data, err := os.ReadFile(modulePathParam.Load(c))
		if err != nil {
			return err
		}
		a, err := lmnt.Parse(data)
		if err != nil {
			return err
		}
		return a.Disassemble(c.StdOut)
	},
}

var runCmd = star.Command{
	Metadata: star.Metadata{
		Short: "run an LMNT module from a file, or from the catalog with -fn",
	},
	Flags: []star.IParam{moduleFileParam, fnParam, DBParam},
	Pos:   []star.IParam{argsParam},
	F: func(c star.Context) error {
		ctx := newContext(c)
		var data []byte
		if p := moduleFileParam.Load(c); p != "" {
			var err error
			if data, err = os.ReadFile(p); err != nil {
				return err
			}
		} else if name := fnParam.Load(c); name != "" {
			var err error
			if _, data, err = openCatalog(c).Load(ctx, name); err != nil {
				return err
			}
		} else {
			return fmt.Errorf("one of -f or -fn is required")
		}
		a, err := lmnt.Parse(data)
		if err != nil {
			return err
		}
		outs, err := lmnt.NewVM(a).Run(argsParam.LoadAll(c))
		if err != nil {
			return err
		}
		for i, out := range outs {
			c.Printf("out%d = %v\n", i, out)
		}
		return nil
	},
}

var modulePathParam = star.Param[string]{
	Name:  "module",
	Parse: star.ParseString,
}

var moduleFileParam = star.Param[string]{
	Name:    "f",
	Default: star.Ptr(""),
	Parse:   star.ParseString,
}
