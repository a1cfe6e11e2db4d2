package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.brendoncarroll.net/state"

	"elementlang.org/numc"
	"elementlang.org/numc/internal/cadata"
	"elementlang.org/numc/internal/testutil"
)

func newCatalog(t testing.TB) *Catalog {
	ctx := testutil.Context(t)
	db := testutil.NewTestDB(t)
	require.NoError(t, Setup(ctx, db))
	return New(db, numc.ModuleHash, numc.MaxModuleSize)
}

func TestStore(t *testing.T) {
	ctx := testutil.Context(t)
	c := newCatalog(t)

	data := []byte("LMNT module bytes")
	id, err := c.Post(ctx, data)
	require.NoError(t, err)
	require.Equal(t, numc.ModuleHash(data), id)
	// posting twice is fine
	id2, err := c.Post(ctx, data)
	require.NoError(t, err)
	require.Equal(t, id, id2)

	exists, err := c.Exists(ctx, &id)
	require.NoError(t, err)
	require.True(t, exists)

	actual, err := cadata.GetBytes(ctx, c, id, numc.MaxModuleSize)
	require.NoError(t, err)
	require.Equal(t, data, actual)

	var ids []cadata.ID
	require.NoError(t, cadata.ForEach(ctx, c, state.TotalSpan[cadata.ID](), func(x cadata.ID) error {
		ids = append(ids, x)
		return nil
	}))
	require.Equal(t, []cadata.ID{id}, ids)

	require.NoError(t, c.Delete(ctx, &id))
	_, err = c.Get(ctx, &id, make([]byte, 100))
	require.True(t, cadata.IsNotFound(err))
}

func TestFunctions(t *testing.T) {
	ctx := testutil.Context(t)
	c := newCatalog(t)

	e1, err := c.PutFunction(ctx, "f", 2, 1, []byte("module f"))
	require.NoError(t, err)
	_, err = c.PutFunction(ctx, "g", 1, 3, []byte("module g"))
	require.NoError(t, err)

	ent, data, err := c.Load(ctx, "f")
	require.NoError(t, err)
	require.Equal(t, e1, ent)
	require.Equal(t, "module f", string(data))

	// replace f
	e3, err := c.PutFunction(ctx, "f", 2, 2, []byte("module f2"))
	require.NoError(t, err)
	ent, err = c.Lookup(ctx, "f")
	require.NoError(t, err)
	require.Equal(t, e3, ent)

	ents, err := c.Functions(ctx)
	require.NoError(t, err)
	require.Len(t, ents, 2)
	require.Equal(t, "f", ents[0].Name)
	require.Equal(t, "g", ents[1].Name)

	require.NoError(t, c.DropFunction(ctx, "g"))
	_, err = c.Lookup(ctx, "g")
	require.Error(t, err)
	require.Error(t, c.DropFunction(ctx, "g"))
}
