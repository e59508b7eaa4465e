package relpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solv/internal/types"
)

func TestRel2IdDedupes(t *testing.T) {
	p := New()
	id1 := p.Rel2Id(3, 5, types.RelGT|types.RelEQ, true)
	id2 := p.Rel2Id(3, 5, types.RelGT|types.RelEQ, true)
	assert.Equal(t, id1, id2)
	assert.True(t, id1.IsRel())
}

func TestRel2IdDistinguishesFlags(t *testing.T) {
	p := New()
	id1 := p.Rel2Id(3, 5, types.RelGT, true)
	id2 := p.Rel2Id(3, 5, types.RelLT, true)
	assert.NotEqual(t, id1, id2)
}

func TestRel2IdLookupWithoutCreate(t *testing.T) {
	p := New()
	got := p.Rel2Id(1, 1, types.RelEQ, false)
	assert.Equal(t, types.IdNull, got)
}

func TestGetReturnsStoredTriple(t *testing.T) {
	p := New()
	id := p.Rel2Id(10, 20, types.RelEQ, true)
	r := p.Get(id)
	assert.Equal(t, types.Id(10), r.Name)
	assert.Equal(t, types.Id(20), r.Evr)
	assert.Equal(t, types.RelEQ, r.Flags)
}

func TestGrowthPreservesLookups(t *testing.T) {
	p := New()
	type key struct {
		name, evr types.Id
		flags     types.RelFlags
	}
	ids := make(map[key]types.Id)
	for i := 0; i < 4000; i++ {
		k := key{types.Id(i), types.Id(i * 2), types.RelEQ}
		ids[k] = p.Rel2Id(k.name, k.evr, k.flags, true)
	}
	for k, id := range ids {
		require.Equal(t, id, p.Rel2Id(k.name, k.evr, k.flags, false))
	}
}
