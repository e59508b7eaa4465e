// Package repo implements the id-array arena a Repo uses to store every
// solvable's dependency lists, and the Repo container itself. The
// allocator follows addid_dep's amortized append and marker-aware
// insertion; an id already in a run is never moved across the marker.
package repo

import (
	"github.com/standardbeagle/solv/internal/alloc"
	"github.com/standardbeagle/solv/internal/types"
)

const idarrayBlock = 4096 / 4 // 4 KiB blocks of types.Id (4 bytes each)

// runAllocator supplies the scratch buffer insertAt uses to splice a
// relocated dependency run before it's copied into the arena, so the
// common small-run case (a handful of requires/provides entries) reuses
// a pooled slice instead of allocating fresh on every relocation.
var runAllocator = alloc.NewSlabAllocator[types.Id](alloc.IdArrayTierConfigs)

// Repo groups solvables that share one id-array arena and a stack of
// Repodatas. Pool assigns Name/Start/End/solvid space; Repo itself only
// owns the idarray.
type Repo struct {
	Name  string
	Start int // first solvid (inclusive)
	End   int // one past last solvid

	idarraydata []types.Id
	lastoff     int // offset most recently appended to, for the fast path

	RpmdbId []uint32 // optional, parallel to solvid - Start
}

// New returns an empty Repo spanning no solvables yet; Start/End are set
// by the owning Pool when solvables are added.
func New(name string) *Repo {
	return &Repo{Name: name, idarraydata: make([]types.Id, 1, idarrayBlock)}
}

// IdArrayData exposes the backing arena read-only, e.g. for the writer to
// walk dependency runs.
func (r *Repo) IdArrayData() []types.Id { return r.idarraydata }

// Marker values for AddIdDep: a nonzero marker is the sentinel id
// (PREREQ/FILE) after which id is inserted; zero means the list has no
// partition. types.Id is unsigned, so there is no negative "insert before
// the marker" form, and the marker < 0 branches below never run.
const (
	NoMarker = 0
)

// AddIdDep appends id to the dependency run starting at olddeps (0 means
// "no existing run"), honoring the marker partition, and returns the
// (possibly new) offset of the run's start.
//
// This mirrors repo_addid_dep: the common case (appending right after the
// array we last grew, with no marker) is amortized O(1); anything else
// falls back to a linear scan and a copy of the run to the arena end. An
// id already in the run is left where it is, on whichever side of the
// marker it sits. If the run does not yet contain the marker, the marker
// is appended first and id after it.
func (r *Repo) AddIdDep(olddeps int, id types.Id, marker types.Id) int {
	if olddeps == 0 {
		return r.newRun(id, marker)
	}
	if olddeps == r.lastoff && marker == NoMarker {
		// Fast path: we're extending the run we just appended to. The
		// terminating 0 is still at the end; overwrite it and push a
		// fresh terminator.
		for i := olddeps; r.idarraydata[i] != types.IdNull; i++ {
			if r.idarraydata[i] == id {
				return olddeps // already present
			}
		}
		r.idarraydata[len(r.idarraydata)-1] = id
		r.idarraydata = append(r.idarraydata, types.IdNull)
		r.lastoff = olddeps
		return olddeps
	}

	end := olddeps
	for r.idarraydata[end] != types.IdNull {
		if r.idarraydata[end] == id {
			return olddeps // already present
		}
		end++
	}

	if marker == NoMarker {
		return r.insertAt(olddeps, end, id)
	}

	// Find the marker's position (if any) to decide which half id
	// belongs in.
	markerPos := -1
	wantAfter := marker > 0
	markerID := marker
	if marker < 0 {
		markerID = -marker
	}
	for i := olddeps; i < end; i++ {
		if r.idarraydata[i] == markerID {
			markerPos = i
			break
		}
	}
	if markerPos < 0 && wantAfter {
		// No marker in the run yet: append it, then id after it.
		return r.AddIdDep(r.insertAt(olddeps, end, markerID), id, NoMarker)
	}
	insertPos := end
	if markerPos >= 0 && wantAfter {
		// id is not in the run (checked above), so appending it at end
		// places it after the marker, since markerPos < end.
		insertPos = end
	} else if markerPos >= 0 && !wantAfter {
		insertPos = markerPos
	}
	return r.insertAt(olddeps, insertPos, id)
}

func (r *Repo) newRun(id types.Id, marker types.Id) int {
	off := len(r.idarraydata)
	if marker != NoMarker {
		markerID := marker
		if marker < 0 {
			markerID = -marker
		}
		if marker > 0 {
			r.idarraydata = append(r.idarraydata, markerID, id, types.IdNull)
		} else {
			r.idarraydata = append(r.idarraydata, id, markerID, types.IdNull)
		}
	} else {
		r.idarraydata = append(r.idarraydata, id, types.IdNull)
	}
	r.lastoff = off
	return off
}

// insertAt copies the run starting at start to the end of the arena with
// id spliced in at pos, and returns the copy's start. The run is never
// grown in place; the old copy stays in the arena unused.
func (r *Repo) insertAt(start, pos int, id types.Id) int {
	end := start
	for r.idarraydata[end] != types.IdNull {
		end++
	}
	run := runAllocator.Get(end - start + 2)
	run = append(run, r.idarraydata[start:pos]...)
	run = append(run, id)
	run = append(run, r.idarraydata[pos:end]...)
	run = append(run, types.IdNull)

	newStart := len(r.idarraydata)
	r.idarraydata = append(r.idarraydata, run...)
	runAllocator.Put(run)
	r.lastoff = newStart
	return newStart
}
