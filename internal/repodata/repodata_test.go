package repodata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solv/internal/types"
)

const (
	keyName     = types.Id(3)
	keyProvides = types.Id(7)
	keyFilelist = types.Id(20)
)

func TestInternalizeAndLookupStr(t *testing.T) {
	rd := New(2, 3)
	rd.SetStr(2, keyName, "bash")
	require.NoError(t, rd.Internalize())

	got, ok := rd.LookupStr(2, keyName)
	require.True(t, ok)
	assert.Equal(t, "bash", got)
}

func TestInternalizeClearsUninternalizedState(t *testing.T) {
	rd := New(2, 3)
	rd.SetStr(2, keyName, "bash")
	require.NoError(t, rd.Internalize())
	assert.Empty(t, rd.attrs)
	assert.Empty(t, rd.metaAttrs)
}

func TestLookupIdArrayRoundTrip(t *testing.T) {
	rd := New(2, 3)
	ids := []types.Id{100, 15, 200}
	rd.AddIdArray(2, keyProvides, ids, false)
	require.NoError(t, rd.Internalize())

	got, ok := rd.LookupIdArray(2, keyProvides)
	require.True(t, ok)
	assert.Equal(t, ids, got)
}

func TestPrereqMarkerSurvivesRelIdArrayRoundTrip(t *testing.T) {
	rd := New(2, 3)
	// requires = [a, PREREQ(=15), b], encoded/decoded via the REL_IDARRAY
	// delta scheme where the marker must come back unchanged.
	ids := []types.Id{50, 15, 60}
	rd.AddIdArray(2, keyProvides, ids, true)
	require.NoError(t, rd.Internalize())

	got, ok := rd.LookupIdArray(2, keyProvides)
	require.True(t, ok)
	assert.Equal(t, ids, got)
}

type fakeDirs struct{ paths map[types.Id]string }

func (f fakeDirs) DirPath(d types.Id) string { return f.paths[d] }

func TestLookupPackedDirStrArray(t *testing.T) {
	rd := New(2, 3)
	rd.AddDirStrArray(2, keyFilelist, types.Id(1), "x")
	rd.AddDirStrArray(2, keyFilelist, types.Id(1), "y")
	require.NoError(t, rd.Internalize())

	dirs := fakeDirs{paths: map[types.Id]string{1: "/usr/bin/"}}
	got, ok := rd.LookupPackedDirStrArray(2, keyFilelist, dirs)
	require.True(t, ok)
	assert.Equal(t, []string{"/usr/bin/x", "/usr/bin/y"}, got)
}

func TestLookupMissingKeyReturnsFalse(t *testing.T) {
	rd := New(2, 3)
	rd.SetStr(2, keyName, "bash")
	require.NoError(t, rd.Internalize())

	_, ok := rd.LookupStr(2, types.Id(999))
	assert.False(t, ok)
}

func TestErrorStateShortCircuitsLookup(t *testing.T) {
	rd := New(2, 3)
	rd.SetStr(2, keyName, "bash")
	require.NoError(t, rd.Internalize())
	rd.State = StateError

	_, ok := rd.LookupStr(2, keyName)
	assert.False(t, ok)
}

func TestMultipleSolvablesKeepDistinctSchemas(t *testing.T) {
	rd := New(2, 4)
	rd.SetStr(2, keyName, "a")
	rd.SetStr(3, keyName, "b")
	rd.AddIdArray(3, keyProvides, []types.Id{1, 2}, false)
	require.NoError(t, rd.Internalize())

	a, _ := rd.LookupStr(2, keyName)
	b, _ := rd.LookupStr(3, keyName)
	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)

	_, hasProvidesA := rd.LookupIdArray(2, keyProvides)
	assert.False(t, hasProvidesA)
	provB, ok := rd.LookupIdArray(3, keyProvides)
	require.True(t, ok)
	assert.Equal(t, []types.Id{1, 2}, provB)
}
