// package numccmd implements the numc command line tool.
package numccmd

import (
	"context"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"elementlang.org/numc"
	"elementlang.org/numc/internal/catalog"
	"elementlang.org/numc/internal/dbutil"
	"elementlang.org/numc/numcfile"
)

func Root() star.Command {
	return root
}

var root = star.NewDir(star.Metadata{
	Short: "compile numeric expression graphs",
}, map[star.Symbol]star.Command{
	"compile": compileCmd,
	"dump":    dumpCmd,
	"run":     runCmd,
	"eval":    evalCmd,
	"gosrc":   gosrcCmd,
	"catalog": catalogCmd,
})

var DBParam = star.Param[*sqlx.DB]{
	Name:    "db",
	Default: star.Ptr(":memory:"),
	Parse: func(x string) (*sqlx.DB, error) {
		db, err := dbutil.Open(x)
		if err != nil {
			return nil, err
		}
		if err := catalog.Setup(context.Background(), db); err != nil {
			return nil, err
		}
		return db, nil
	},
}

// funcsParam is a function description file
var funcsParam = star.Param[*numcfile.File]{
	Name:  "f",
	Parse: numcfile.Load,
}

var fnParam = star.Param[string]{
	Name:    "fn",
	Default: star.Ptr(""),
	Parse:   star.ParseString,
}

var argsParam = star.Param[float32]{
	Name:     "args",
	Repeated: true,
	Parse: func(x string) (float32, error) {
		f, err := strconv.ParseFloat(x, 32)
		return float32(f), err
	},
}

func openCatalog(c star.Context) *catalog.Catalog {
	return catalog.New(DBParam.Load(c), numc.ModuleHash, numc.MaxModuleSize)
}

// newContext returns a context with a logger for the command.
func newContext(c star.Context) context.Context {
	ctx := c.Context
	l, err := zap.NewDevelopment()
	if err != nil {
		return ctx
	}
	return logctx.NewContext(ctx, l)
}
