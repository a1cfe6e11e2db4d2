package numccmd

import (
	"go.brendoncarroll.net/star"
)

var catalogCmd = star.NewDir(star.Metadata{
	Short: "manage the catalog of compiled functions",
}, map[star.Symbol]star.Command{
	"list": catalogListCmd,
	"drop": catalogDropCmd,
})

var catalogListCmd = star.Command{
	Metadata: star.Metadata{
		Short: "list the functions in the catalog",
	},
	Flags: []star.IParam{DBParam},
	F: func(c star.Context) error {
		ents, err := openCatalog(c).Functions(c)
		if err != nil {
			return err
		}
		c.Printf("%-16s %-6s %-7s %s\n", "NAME", "INPUTS", "OUTPUTS", "MODULE")
		for _, ent := range ents {
			c.Printf("%-16s %-6d %-7d %v\n", ent.Name, ent.Inputs, ent.Outputs, ent.Module)
		}
		return nil
	},
}

var catalogDropCmd = star.Command{
	Metadata: star.Metadata{
		Short: "remove a function from the catalog",
	},
	Flags: []star.IParam{DBParam},
	Pos:   []star.IParam{nameParam},
	F: func(c star.Context) error {
		return openCatalog(c).DropFunction(c, nameParam.Load(c))
	},
}

var nameParam = star.Param[string]{
	Name:  "name",
	Parse: star.ParseString,
}
