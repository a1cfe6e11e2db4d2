package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"elementlang.org/numc"
	"elementlang.org/numc/internal/dbutil"
	"elementlang.org/numc/internal/stores"
)

func Context(t testing.TB) context.Context {
	ctx := context.Background()
	ctx, cf := context.WithCancel(ctx)
	t.Cleanup(cf)
	l, err := zap.NewDevelopment()
	require.NoError(t, err)
	ctx = logctx.NewContext(ctx, l)
	return ctx
}

// NewStore returns an in memory store for modules.
func NewStore(t testing.TB) *stores.Mem {
	return stores.NewMem(numc.ModuleHash, numc.MaxModuleSize)
}

func NewTestDB(t testing.TB) *sqlx.DB {
	return dbutil.NewTestDB(t)
}
