package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solv/internal/types"
)

func runOf(r *Repo, off int) []types.Id {
	var out []types.Id
	data := r.IdArrayData()
	for data[off] != types.IdNull {
		out = append(out, data[off])
		off++
	}
	return out
}

func TestAddIdDepCreatesRun(t *testing.T) {
	r := New("test")
	off := r.AddIdDep(0, types.Id(10), NoMarker)
	assert.Equal(t, []types.Id{10}, runOf(r, off))
}

func TestAddIdDepFastAppend(t *testing.T) {
	r := New("test")
	off := r.AddIdDep(0, types.Id(10), NoMarker)
	off = r.AddIdDep(off, types.Id(11), NoMarker)
	off = r.AddIdDep(off, types.Id(12), NoMarker)
	assert.Equal(t, []types.Id{10, 11, 12}, runOf(r, off))
}

func TestAddIdDepSkipsDuplicate(t *testing.T) {
	r := New("test")
	off := r.AddIdDep(0, types.Id(10), NoMarker)
	off = r.AddIdDep(off, types.Id(11), NoMarker)
	other := r.AddIdDep(off, types.Id(10), NoMarker)
	require.Equal(t, off, other)
	assert.Equal(t, []types.Id{10, 11}, runOf(r, other))
}

func TestAddIdDepWithMarkerPartitionsPrereq(t *testing.T) {
	r := New("test")
	const prereqMarker = types.Id(15)
	off := r.AddIdDep(0, types.Id(1), NoMarker)
	off = r.AddIdDep(off, types.Id(2), types.Id(prereqMarker)) // adds after marker
	assert.Contains(t, runOf(r, off), prereqMarker)
	assert.Contains(t, runOf(r, off), types.Id(2))
}

func TestAddIdDepRelocatesWhenNotLastRun(t *testing.T) {
	r := New("test")
	off1 := r.AddIdDep(0, types.Id(1), NoMarker)
	// Start a second run so off1 is no longer r.lastoff.
	off2 := r.AddIdDep(0, types.Id(100), NoMarker)
	require.NotEqual(t, off1, off2)

	newOff := r.AddIdDep(off1, types.Id(2), NoMarker)
	assert.Equal(t, []types.Id{1, 2}, runOf(r, newOff))
	// Original run's own data is untouched by the relocation (new space
	// was appended, not overwritten in place).
	assert.Equal(t, []types.Id{100}, runOf(r, off2))
}
