// Package pool implements the Pool façade (§4.5): the single owner of a
// process's string/rel/dir pools, its flat solvables array, its repos,
// and the whatprovides/id2arch indexes built on top of them. Every other
// package in this module is reached through a Pool rather than holding
// its own copy of shared state, the same ownership shape repo.c and
// pool.h give the C original.
package pool

import (
	"github.com/standardbeagle/solv/internal/dirpool"
	solverrors "github.com/standardbeagle/solv/internal/errors"
	"github.com/standardbeagle/solv/internal/evr"
	"github.com/standardbeagle/solv/internal/relpool"
	"github.com/standardbeagle/solv/internal/repo"
	"github.com/standardbeagle/solv/internal/repodata"
	"github.com/standardbeagle/solv/internal/strpool"
	"github.com/standardbeagle/solv/internal/types"
)

// Solvable is the fixed package record described in §3: a name/arch/evr/
// vendor scalar quad plus eight dependency-list offsets into its owning
// repo's id-array arena.
type Solvable struct {
	Repo int // index into Pool.Repos, or -1 for the sentinel/unused slots

	Name   types.Id
	Arch   types.Id
	Evr    types.Id
	Vendor types.Id

	Provides, Obsoletes, Conflicts, Requires types.Id // arena offsets (0 = none)
	Recommends, Suggests, Supplements        types.Id
	Enhances                                 types.Id
}

// Pool owns every pool/repo/solvable in a process. Exactly one goroutine
// may touch a given Pool at a time; neither the Pool nor the pools, repos
// and repodatas it owns do any internal locking.
type Pool struct {
	Strings *strpool.Pool
	Rels    *relpool.Pool
	Dirs    *dirpool.Pool

	Solvables []Solvable
	Repos     []*repo.Repo

	Disttype     evr.Dialect
	PromoteEpoch bool

	whatprovides map[types.Id][]int // name id -> solvids providing it
	id2arch      map[types.Id]uint32

	errs *solverrors.Ring
}

// New returns a Pool with its built-in keyname prelude already interned
// and the two reserved sentinel solvable slots in place (solvables[0] is
// the system solvable, solvables[1] is reserved, matching §3's
// invariants).
func New(disttype evr.Dialect) *Pool {
	p := &Pool{
		Strings:  strpool.New(),
		Rels:     relpool.New(),
		Dirs:     dirpool.New(),
		Disttype: disttype,
		id2arch:  make(map[types.Id]uint32),
		errs:     solverrors.NewRing(16),
	}
	p.internPrelude()
	p.Solvables = append(p.Solvables, Solvable{Repo: -1}, Solvable{Repo: -1})
	return p
}

// keynamePrelude lists the built-in keyname strings in exactly the id
// order §6.3 requires (ids 3..16), followed by the src/nosrc arch
// sentinels (ids 17 and 18). Entries 0 and 1 stand for the string pool's
// own reserved null/empty ids and are skipped; "<pad>" is interned as id 2
// so SOLVABLE_NAME lands on 3.
var keynamePrelude = []string{
	"<NULL>", "<empty>", "<pad>", // 0,1 reserved by the string pool; 2 is padding
	"solvable:name", "solvable:arch", "solvable:evr", "solvable:vendor",
	"solvable:provides", "solvable:obsoletes", "solvable:conflicts",
	"solvable:requires", "solvable:recommends", "solvable:suggests",
	"solvable:supplements", "solvable:enhances",
	"solvable:prereqmarker", "solvable:filemarker",
	"src", "nosrc",
}

func (p *Pool) internPrelude() {
	for i, name := range keynamePrelude {
		if i < 2 {
			continue
		}
		got := p.Strings.Str2Id(name, true)
		if got != types.Id(i) {
			panic("pool: built-in keyname prelude ids out of sync with types package constants")
		}
	}
}

// Str2Id interns str into the pool's string table.
func (p *Pool) Str2Id(str string, create bool) types.Id { return p.Strings.Str2Id(str, create) }

// Id2Str returns the string (recursing through a rel's name if id is a
// relation) named by id.
func (p *Pool) Id2Str(id types.Id) string {
	for id.IsRel() {
		id = p.Rels.Get(id).Name
	}
	return p.Strings.String(id)
}

// Rel2Id interns a (name, evr, flags) dependency triple.
func (p *Pool) Rel2Id(name, evrID types.Id, flags types.RelFlags, create bool) types.Id {
	return p.Rels.Rel2Id(name, evrID, flags, create)
}

// DirPath materializes dir's full path, satisfying repodata.DirStringer
// so Repodata.LookupPackedDirStrArray can be driven straight off a Pool.
func (p *Pool) DirPath(dir types.Id) string {
	d := dirpool.DirId(dir)
	comps := p.Dirs.Components(d)
	s := "/"
	for i, c := range comps {
		if i > 0 {
			s += "/"
		}
		s += p.Strings.String(c)
	}
	if len(comps) > 0 {
		s += "/"
	}
	return s
}

// EvrCmp compares two interned evr ids under the pool's configured
// dialect and mode.
func (p *Pool) EvrCmp(evr1, evr2 types.Id, mode evr.Mode) int {
	if evr1 == evr2 {
		return 0
	}
	return evr.CompareStr(p.Disttype, p.Strings.String(evr1), p.Strings.String(evr2), mode, p.PromoteEpoch)
}

// AddRepo creates and registers a new, empty Repo.
func (p *Pool) AddRepo(name string) *repo.Repo {
	r := repo.New(name)
	p.Repos = append(p.Repos, r)
	return r
}

// AddSolvable appends a new solvable to repoIdx's range, returning its
// solvid. Repo Start/End bookkeeping is updated so later lookups know
// which repo owns which solvid range.
func (p *Pool) AddSolvable(repoIdx int) int {
	solvid := len(p.Solvables)
	p.Solvables = append(p.Solvables, Solvable{Repo: repoIdx})
	r := p.Repos[repoIdx]
	if r.Start == 0 {
		r.Start = solvid
	}
	r.End = solvid + 1
	p.whatprovides = nil // any solvable-visible mutation invalidates it
	return solvid
}

// EnsureSelfProvides enforces the §3 invariant that every solvable whose
// arch isn't SRC/NOSRC carries a self-provide `name = evr`. It appends
// that provide to the given repodata's staged attrs if it isn't already
// present; callers call this once per solvable before internalizing.
func (p *Pool) EnsureSelfProvides(solvid int, rd *repodata.Repodata, providesKey types.Id) {
	s := &p.Solvables[solvid]
	if s.Arch == types.ArchSrc || s.Arch == types.ArchNoSrc {
		return
	}
	self := p.Rel2Id(s.Name, s.Evr, types.RelEQ, true)
	existing, _ := rd.LookupIdArray(solvid, providesKey)
	for _, id := range existing {
		if id == self {
			return
		}
	}
	rd.AddIdArray(solvid, providesKey, append(existing, self), false)
}

// CreateWhatProvides (re)builds the name -> providing-solvids index by
// scanning every solvable's provides list, matching pool_createwhatprovides's
// lazy, invalidate-on-mutation contract.
func (p *Pool) CreateWhatProvides(rds map[int]*repodata.Repodata, providesKey types.Id) {
	wp := make(map[types.Id][]int)
	for solvid := 2; solvid < len(p.Solvables); solvid++ {
		s := &p.Solvables[solvid]
		if s.Repo < 0 {
			continue
		}
		rd, ok := rds[solvid]
		if !ok {
			continue
		}
		ids, _ := rd.LookupIdArray(solvid, providesKey)
		for _, id := range ids {
			name := id
			if name.IsRel() {
				name = p.Rels.Get(name).Name
			}
			wp[name] = append(wp[name], solvid)
		}
	}
	p.whatprovides = wp
}

// WhatProvides returns the solvids providing name, or nil if
// CreateWhatProvides hasn't run (or nothing provides it).
func (p *Pool) WhatProvides(name types.Id) []int { return p.whatprovides[name] }

// SetArchScore assigns id2arch's compatibility score for an architecture
// id; 0 (the default for any arch never assigned one) means "not
// installable on this pool".
func (p *Pool) SetArchScore(arch types.Id, score uint32) { p.id2arch[arch] = score }

// Installable reports whether s's arch has a nonzero id2arch score.
func (p *Pool) Installable(s *Solvable) bool { return p.id2arch[s.Arch] != 0 }

// Errorf records a formatted error on the pool's ring buffer and returns
// ret unchanged, mirroring pool_error's return-for-convenience contract.
func (p *Pool) Errorf(ret int, format string, args ...interface{}) int {
	return p.errs.Push(ret, format, args...)
}

// LastError returns the most recently recorded error message, or "".
func (p *Pool) LastError() string { return p.errs.Last() }
