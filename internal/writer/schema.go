package writer

import "github.com/standardbeagle/solv/internal/types"

// schemaBuilder interns the ordered key-id sequences the writer assigns
// to each solvid. It's a plain Go map keyed on the encoded key sequence
// (unlike repodata's 256-bucket cache with its linear-scan fallback),
// since a single write pass only ever interns as many distinct schemas as
// there are distinct attribute shapes among the solvables being written.
type schemaBuilder struct {
	schemas [][]types.Id
	index   map[string]int
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{schemas: [][]types.Id{nil}, index: make(map[string]int)}
}

func (b *schemaBuilder) intern(keys []types.Id) int {
	k := schemaKey(keys)
	if id, ok := b.index[k]; ok {
		return id
	}
	id := len(b.schemas)
	cp := append([]types.Id(nil), keys...)
	b.schemas = append(b.schemas, cp)
	b.index[k] = id
	return id
}

func (b *schemaBuilder) Keys(id int) []types.Id { return b.schemas[id] }

func (b *schemaBuilder) NumSchemata() int { return len(b.schemas) }

func schemaKey(keys []types.Id) string {
	buf := make([]byte, len(keys)*4)
	for i, k := range keys {
		buf[i*4] = byte(k >> 24)
		buf[i*4+1] = byte(k >> 16)
		buf[i*4+2] = byte(k >> 8)
		buf[i*4+3] = byte(k)
	}
	return string(buf)
}
