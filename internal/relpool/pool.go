// Package relpool interns relational dependency triples (name, evr,
// flags) — "bash >= 4.0" — the same way strpool interns plain strings.
// Structure and growth policy are a direct port of pool_rel2id /
// pool_resize_rels_hash in poolid.c: an open hash table over a dense
// array of triples, rehashed whenever it crosses 50% load, with id 0
// reserved so a missing/absent rel reads as types.IdNull.
package relpool

import (
	"github.com/standardbeagle/solv/internal/types"
)

const relBlock = 1023 // growth granularity, matches REL_BLOCK

// Rel is one interned (name, evr, flags) triple.
type Rel struct {
	Name  types.Id
	Evr   types.Id
	Flags types.RelFlags
}

// Pool interns Rel triples, returning relation-tagged ids (types.Id with
// the top bit set) that index back into this table via RelIndex.
type Pool struct {
	rels []Rel // rels[0] is an unused placeholder, same as libsolv's Reldep 0

	hash     []int32
	hashMask uint32
}

func New() *Pool {
	p := &Pool{rels: make([]Rel, 1, relBlock)}
	p.growHash(relBlock)
	return p
}

func relHash(name, evr types.Id, flags types.RelFlags) uint32 {
	// Mirrors relhash()'s odd-multiplier mix from poolid_private.h-adjacent
	// code: distinct primes per field keep (name,evr) transpositions from
	// colliding trivially.
	h := uint32(name)*7 + uint32(evr)*31 + uint32(flags)*23
	h ^= h >> 15
	h *= 0x2c1b3c6d
	h ^= h >> 12
	return h
}

// Rel2Id looks up the (name, evr, flags) triple, interning it if create is
// true and it's not already present.
func (p *Pool) Rel2Id(name, evr types.Id, flags types.RelFlags, create bool) types.Id {
	if len(p.rels)*2 >= int(p.hashMask) {
		p.growHash(len(p.rels) * 2)
	}
	h := relHash(name, evr, flags)
	mask := p.hashMask
	slot := h & mask
	for {
		idx := p.hash[slot]
		if idx == 0 {
			break
		}
		r := p.rels[idx]
		if r.Name == name && r.Evr == evr && r.Flags == flags {
			return types.MakeRelId(uint32(idx))
		}
		slot = (slot + 1) & mask
	}
	if !create {
		return types.IdNull
	}
	idx := uint32(len(p.rels))
	p.rels = append(p.rels, Rel{Name: name, Evr: evr, Flags: flags})
	p.hash[slot] = int32(idx)
	return types.MakeRelId(idx)
}

// Get returns the triple named by a relation id produced by Rel2Id.
func (p *Pool) Get(id types.Id) Rel { return p.rels[id.RelIndex()] }

// NumRels returns the number of interned relations, including the unused
// placeholder at index 0.
func (p *Pool) NumRels() int { return len(p.rels) }

func (p *Pool) growHash(minEntries int) {
	size := uint32(4)
	for int(size) < minEntries*2 {
		size <<= 1
	}
	p.hash = make([]int32, size)
	p.hashMask = size - 1
	for idx := 1; idx < len(p.rels); idx++ {
		r := p.rels[idx]
		h := relHash(r.Name, r.Evr, r.Flags)
		slot := h & p.hashMask
		for p.hash[slot] != 0 {
			slot = (slot + 1) & p.hashMask
		}
		p.hash[slot] = int32(idx)
	}
}
