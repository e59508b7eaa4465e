package repodata

import "github.com/standardbeagle/solv/internal/types"

// schemaCacheBuckets matches the open question in the design notes:
// addschema's cache is a fixed 256-bucket table with no probing, so a
// collision just forces a full linear scan rather than a rehash.
const schemaCacheBuckets = 256

// schemaPool interns ordered, zero-terminated key-id sequences. Schema id
// 0 is reserved for "no schema" (an empty entry).
type schemaPool struct {
	data    []types.Id // concatenated zero-terminated key-sequences
	offsets []int      // offsets[schemaid] = start index into data

	cache [schemaCacheBuckets]int // schemaid hint per bucket, 0 = empty
}

func newSchemaPool() *schemaPool {
	sp := &schemaPool{
		data:    []types.Id{0},
		offsets: []int{0},
	}
	return sp
}

func schemaHash(keys []types.Id) int {
	h := 0
	for _, k := range keys {
		h = h*7 + int(k)
	}
	if h < 0 {
		h = -h
	}
	return h & (schemaCacheBuckets - 1)
}

// intern returns the schema id for keys (a key-index sequence, not yet
// zero-terminated), creating a new entry if none matches. The cache slot
// is checked first; on a miss or mismatch it falls back to a full linear
// scan, exactly as repodata_schema2id's comment describes.
func (sp *schemaPool) intern(keys []types.Id) int {
	bucket := schemaHash(keys)
	if cand := sp.cache[bucket]; cand != 0 && sp.equals(cand, keys) {
		return cand
	}
	for id := 1; id < len(sp.offsets); id++ {
		if sp.equals(id, keys) {
			sp.cache[bucket] = id
			return id
		}
	}
	id := len(sp.offsets)
	sp.offsets = append(sp.offsets, len(sp.data))
	sp.data = append(sp.data, keys...)
	sp.data = append(sp.data, types.IdNull)
	sp.cache[bucket] = id
	return id
}

func (sp *schemaPool) equals(id int, keys []types.Id) bool {
	got := sp.Keys(id)
	if len(got) != len(keys) {
		return false
	}
	for i := range got {
		if got[i] != keys[i] {
			return false
		}
	}
	return true
}

// Keys returns the key-index sequence for schema id (without the
// trailing zero terminator).
func (sp *schemaPool) Keys(id int) []types.Id {
	start := sp.offsets[id]
	end := start
	for sp.data[end] != types.IdNull {
		end++
	}
	return sp.data[start:end]
}

// NumSchemata returns the number of interned schemas, including the
// reserved empty schema 0.
func (sp *schemaPool) NumSchemata() int { return len(sp.offsets) }

// Data exposes the raw concatenated, zero-terminated schema data for the
// writer's schema-table section.
func (sp *schemaPool) Data() []types.Id { return sp.data }
