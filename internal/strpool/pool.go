// Package strpool implements the dense string interning table shared by a
// Pool: every distinct string (package name, version, vendor, ...) is
// stored once in a contiguous byte arena and referred to everywhere else
// by a small integer id. The table structure — growable arena plus an
// open-addressed hash index rebuilt on growth — mirrors libsolv's
// Stringpool (driven from pool_str2id/pool_strn2id in poolid.c); the hash
// function itself is xxhash rather than the C original's bespoke mix,
// since nothing downstream depends on the exact hash values, only on
// str2id being stable within one process.
package strpool

import (
	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/solv/internal/types"
)

const stringBlock = 2047 // arena growth granularity, matches STRING_BLOCK

// Pool is an append-only string interning table. Id 0 is reserved
// (types.IdNull) and id 1 is always the empty string (types.IdEmpty), so a
// freshly constructed Pool already has two entries.
type Pool struct {
	arena   []byte  // concatenated NUL-terminated string bytes
	offsets []int32 // offsets[id] = byte offset of string id within arena

	hash     []int32 // open-addressed index: hash(str)&mask -> id, 0 = empty slot
	hashMask uint32
}

// New returns an initialized Pool with the reserved null and empty-string
// ids already populated.
func New() *Pool {
	p := &Pool{
		arena:   make([]byte, 0, stringBlock),
		offsets: make([]int32, 2, stringBlock),
	}
	p.arena = append(p.arena, 0)   // id 0: empty bytes (unused, reserved)
	p.offsets[0] = 0
	p.arena = append(p.arena, 0)   // id 1: the empty string, NUL-terminated
	p.offsets[1] = 1
	p.growHash(stringBlock)
	return p
}

// NumStrings returns the number of interned strings, including the two
// reserved ids.
func (p *Pool) NumStrings() int { return len(p.offsets) }

// String returns the string named by id. It panics if id is out of range,
// the same contract as indexing a slice: callers are expected to only
// pass ids this Pool (or a reader restoring its state) produced.
func (p *Pool) String(id types.Id) string {
	off := p.offsets[id]
	end := off
	for p.arena[end] != 0 {
		end++
	}
	return string(p.arena[off:end])
}

// Str2Id looks up str, interning it (and growing the arena/hash table) if
// create is true and it isn't already present. With create false, a miss
// returns types.IdNull.
func (p *Pool) Str2Id(str string, create bool) types.Id {
	if str == "" {
		return types.IdEmpty
	}
	h := uint32(xxhash.Sum64String(str))
	mask := p.hashMask
	slot := h & mask
	for {
		id := p.hash[slot]
		if id == 0 {
			break
		}
		if p.String(types.Id(id)) == str {
			return types.Id(id)
		}
		slot = (slot + 1) & mask
	}
	if !create {
		return types.IdNull
	}
	return p.insert(str, h)
}

// StrN2Id is Str2Id for a byte slice that may not be NUL-terminated, the
// common case when interning a substring view out of a larger buffer
// without allocating first.
func (p *Pool) StrN2Id(b []byte, create bool) types.Id {
	return p.Str2Id(string(b), create)
}

func (p *Pool) insert(str string, h uint32) types.Id {
	if len(p.offsets)*2 >= int(p.hashMask) {
		p.growHash(len(p.offsets) * 2)
	}
	id := types.Id(len(p.offsets))
	off := int32(len(p.arena))
	p.arena = append(p.arena, str...)
	p.arena = append(p.arena, 0)
	p.offsets = append(p.offsets, off)

	mask := p.hashMask
	slot := h & mask
	for p.hash[slot] != 0 {
		slot = (slot + 1) & mask
	}
	p.hash[slot] = int32(id)
	return id
}

// growHash rebuilds the index at a size that keeps load factor under 50%
// for at least minEntries more insertions, mirroring pool_resize_rels_hash
// except rehashing a string table instead of a rel table.
func (p *Pool) growHash(minEntries int) {
	size := uint32(4)
	for int(size) < minEntries*2 {
		size <<= 1
	}
	p.hash = make([]int32, size)
	p.hashMask = size - 1
	for id := 2; id < len(p.offsets); id++ {
		s := p.String(types.Id(id))
		h := uint32(xxhash.Sum64String(s))
		slot := h & p.hashMask
		for p.hash[slot] != 0 {
			slot = (slot + 1) & p.hashMask
		}
		p.hash[slot] = int32(id)
	}
}

// Shrink trims the arena and offsets slices to their exact used length,
// releasing growth slack once a pool is known to be done growing (the
// point at which a writer calls it, mirroring pool_shrink_strings).
func (p *Pool) Shrink() {
	arena := make([]byte, len(p.arena))
	copy(arena, p.arena)
	p.arena = arena
	offsets := make([]int32, len(p.offsets))
	copy(offsets, p.offsets)
	p.offsets = offsets
}

// Arena exposes the raw interned-string bytes for the writer's prefix
// compression pass; it must not be mutated by callers.
func (p *Pool) Arena() []byte { return p.arena }

// LoadFrom rebuilds a Pool from count NUL-separated strings read off the
// wire (a .solv string section never stores the two reserved ids, so
// arena holds exactly the strings for ids 2..count+1). The hash index is
// rebuilt so subsequent interning still dedupes against the loaded set.
func LoadFrom(arena []byte, count int) *Pool {
	p := &Pool{
		arena:   make([]byte, 0, 2+len(arena)),
		offsets: make([]int32, 0, count+2),
	}
	p.arena = append(p.arena, 0, 0)
	p.offsets = append(p.offsets, 0, 1)

	off := 0
	for i := 0; i < count; i++ {
		start := off
		for off < len(arena) && arena[off] != 0 {
			off++
		}
		p.offsets = append(p.offsets, int32(len(p.arena)))
		p.arena = append(p.arena, arena[start:off]...)
		p.arena = append(p.arena, 0)
		off++ // skip NUL
	}
	p.growHash(len(p.offsets) * 2)
	return p
}
