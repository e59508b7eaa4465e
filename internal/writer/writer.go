// Package writer serializes a Pool's solvables (plus their repodata
// attributes) into the `.solv` wire format described by the on-disk
// header/strings/rels/dirs/keys/schemata/incore-blob grammar. It mirrors
// repo_write.c's two-pass shape: pass 1 walks every solvid's decoded
// attributes to build the union key table, each solvid's schema, and a
// needed-id reference count per string/rel; pass 2 renumbers strings and
// rels by descending need and emits the sections in file order, spilling
// vertical-storage keys (DIRSTRARRAY in particular) into a separate
// paged, LZ-compressed blob instead of the incore stream.
//
// Renumbering only covers what pass 1 can see without any extra value
// decoding beyond what DecodeEntry already does: builtin scalar columns,
// ID/IDARRAY/REL_IDARRAY elements, rel name/evr fields (propagated from
// each rel's own need), dir-table path components, and key names. Dir
// ids themselves are not renumbered (this pass's scope is strings and
// rels, matching the reference count data already visited); see
// DESIGN.md for the justification.
package writer

import (
	"io"
	"sort"

	"github.com/standardbeagle/solv/internal/compress"
	"github.com/standardbeagle/solv/internal/dirpool"
	solverrors "github.com/standardbeagle/solv/internal/errors"
	"github.com/standardbeagle/solv/internal/pool"
	"github.com/standardbeagle/solv/internal/repodata"
	"github.com/standardbeagle/solv/internal/types"
	"github.com/standardbeagle/solv/internal/wire"
)

// Flag bits for Config.Flags, matching the writer flags named in the
// format description.
const (
	FlagLegacy            = 1 << 0
	FlagNoStorageSolvable = 1 << 1
	FlagKeepTypeDeleted   = 1 << 2
)

// KeyFilter lets a caller drop a key from the union table or override its
// storage class before pass 1 commits to a schema. Returning ok=false
// drops the key entirely.
type KeyFilter func(key types.Repokey) (out types.Repokey, ok bool)

// Config holds the per-write options a Repowriter carries in the source
// material: flags, an optional keyfilter, and userdata to embed in the
// header.
type Config struct {
	Flags     uint32
	KeyFilter KeyFilter
	UserData  []byte
}

// builtinScalar describes one of the four always-present solvable
// columns (name/arch/evr/vendor), which are stored inline per solvid
// rather than going through a solvid's repodata schema.
type builtinScalar struct {
	keyName types.Id
	get     func(s *pool.Solvable) types.Id
}

func builtinScalars() []builtinScalar {
	return []builtinScalar{
		{types.SolvableName, func(s *pool.Solvable) types.Id { return s.Name }},
		{types.SolvableArch, func(s *pool.Solvable) types.Id { return s.Arch }},
		{types.SolvableEvr, func(s *pool.Solvable) types.Id { return s.Evr }},
		{types.SolvableVendor, func(s *pool.Solvable) types.Id { return s.Vendor }},
	}
}

// Writer serializes [Start, End) of p's solvables, reading each solvid's
// single attribute layer out of repodatas (solvid -> its Repodata).
type Writer struct {
	Pool       *pool.Pool
	Repodatas  map[int]*repodata.Repodata
	Start, End int
	Config     Config
}

// New returns a Writer covering the solvid range [start, end).
func New(p *pool.Pool, repodatas map[int]*repodata.Repodata, start, end int) *Writer {
	return &Writer{Pool: p, Repodatas: repodatas, Start: start, End: end}
}

// globalKeys is the union key table built in pass 1: index 0 is the
// reserved empty key, indexes 1..4 are the built-in scalar columns in
// builtinScalars order, and the rest are every repodata's keys deduped
// by (name, type).
type globalKeys struct {
	keys    []types.Repokey
	byLocal map[*repodata.Repodata]map[types.Id]types.Id // repodata-local key idx -> global key idx
}

func (w *Writer) buildKeyTable() *globalKeys {
	gk := &globalKeys{
		keys:    []types.Repokey{{}},
		byLocal: make(map[*repodata.Repodata]map[types.Id]types.Id),
	}
	if w.Config.Flags&FlagNoStorageSolvable == 0 {
		for _, sc := range builtinScalars() {
			gk.keys = append(gk.keys, types.Repokey{Name: sc.keyName, Type: types.Id(types.TypeId), Storage: types.KeyStorageSolvable})
		}
	}

	index := make(map[[2]types.Id]types.Id) // (name,type) -> global key idx
	for i, k := range gk.keys {
		if i == 0 {
			continue
		}
		index[[2]types.Id{k.Name, types.Id(k.Type)}] = types.Id(i)
	}

	for solvid := w.Start; solvid < w.End; solvid++ {
		rd, ok := w.Repodatas[solvid]
		if !ok {
			continue
		}
		if gk.byLocal[rd] != nil {
			continue // already mapped this repodata's keys
		}
		local := make(map[types.Id]types.Id)
		for i, k := range rd.Keys {
			if i == 0 {
				continue
			}
			if w.Config.Flags&FlagKeepTypeDeleted == 0 && types.KeyType(k.Type) == types.TypeDeleted {
				continue
			}
			out := k
			if w.Config.KeyFilter != nil {
				var keep bool
				out, keep = w.Config.KeyFilter(k)
				if !keep {
					continue
				}
			}
			dedupKey := [2]types.Id{out.Name, types.Id(out.Type)}
			global, exists := index[dedupKey]
			if !exists {
				gk.keys = append(gk.keys, out)
				global = types.Id(len(gk.keys) - 1)
				index[dedupKey] = global
			}
			local[types.Id(i)] = global
		}
		gk.byLocal[rd] = local
	}
	return gk
}

// decodedAttr is one repodata-derived key/value pair already translated
// to its global key id, carried between pass 1 (collect needed) and
// pass 2 (renumber and emit).
type decodedAttr struct {
	globalKey types.Id
	kind      types.KeyType
	storage   types.KeyStorage
	val       types.KeyValue
}

// solvEntry is one solvid's pass-1 result: its interned schema plus the
// raw (pre-renumber) scalar and attribute values needed to re-encode it
// in pass 2.
type solvEntry struct {
	schema    int
	scalarIDs []types.Id // parallel to builtinScalars(), only if solvable storage is in use
	attrs     []decodedAttr
}

func isMarkerID(id types.Id) bool {
	return id == types.SolvablePrereqMarker || id == types.SolvableFileMarker
}

// WriteTo emits the full `.solv` stream for the writer's configured
// solvid range.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	gk := w.buildKeyTable()

	nstrings := w.Pool.Strings.NumStrings()
	nrels := w.Pool.Rels.NumRels()
	ndirs := w.Pool.Dirs.NumDirs()

	scalars := builtinScalars()
	useSolvableStorage := w.Config.Flags&FlagNoStorageSolvable == 0

	// ---- pass 1: decode every solvid's attributes, intern its schema,
	// and count how often every string/rel id is referenced. ----
	needStr := make([]uint32, nstrings)
	needRel := make([]uint32, nrels)

	bumpStr := func(id types.Id) {
		if int(id) < len(needStr) {
			needStr[id]++
		}
	}
	bumpArrayID := func(id types.Id) {
		if isMarkerID(id) {
			return
		}
		if id.IsRel() {
			if idx := id.RelIndex(); int(idx) < len(needRel) {
				needRel[idx]++
			}
			return
		}
		bumpStr(id)
	}

	schemas := newSchemaBuilder()
	entries := make([]solvEntry, w.End-w.Start)

	for solvid := w.Start; solvid < w.End; solvid++ {
		e := &entries[solvid-w.Start]
		var keySeq []types.Id

		if useSolvableStorage {
			s := &w.Pool.Solvables[solvid]
			e.scalarIDs = make([]types.Id, len(scalars))
			for i, sc := range scalars {
				keySeq = append(keySeq, types.Id(i+1))
				id := sc.get(s)
				e.scalarIDs[i] = id
				bumpStr(id)
			}
		}

		if rd, ok := w.Repodatas[solvid]; ok {
			if decoded, has := rd.DecodeEntry(solvid); has {
				for _, de := range decoded {
					global, known := gk.byLocal[rd][de.Key]
					if !known {
						continue // dropped by the key filter
					}
					kt := types.KeyType(rd.Keys[de.Key].Type)
					switch kt {
					case types.TypeId:
						bumpArrayID(de.Value.ID)
					case types.TypeIdArray, types.TypeRelIdArray:
						for _, id := range de.Value.Ids {
							bumpArrayID(id)
						}
					}
					keySeq = append(keySeq, global)
					e.attrs = append(e.attrs, decodedAttr{
						globalKey: global,
						kind:      kt,
						storage:   gk.keys[global].Storage,
						val:       de.Value,
					})
				}
			}
		}
		e.schema = schemas.intern(keySeq)
	}

	for d := 2; d < ndirs; d++ {
		bumpStr(w.Pool.Dirs.Compid(dirpool.DirId(d)))
	}
	for _, k := range gk.keys {
		bumpStr(k.Name)
	}
	for i := 1; i < nrels; i++ {
		if needRel[i] == 0 {
			continue
		}
		r := w.Pool.Rels.Get(types.MakeRelId(uint32(i)))
		needStr[r.Name] += needRel[i]
		needStr[r.Evr] += needRel[i]
	}

	// ---- pass 2: renumber strings/rels by descending need, then emit
	// every section using the new numbering. ----
	stringRemap := renumberByNeed(nstrings, needStr, 2) // ids 0 (null) and 1 (empty) keep their position
	relRemap := renumberByNeed(nrels, needRel, 1)        // rel index 0 (unused placeholder) keeps its position

	remapStr := func(id types.Id) types.Id {
		if int(id) < len(stringRemap) {
			return stringRemap[id]
		}
		return id
	}
	remapArrayID := func(id types.Id) types.Id {
		if isMarkerID(id) {
			return id
		}
		if id.IsRel() {
			if idx := id.RelIndex(); int(idx) < len(relRemap) {
				return types.MakeRelId(uint32(relRemap[idx]))
			}
			return id
		}
		return remapStr(id)
	}

	invStr := make([]types.Id, nstrings)
	for old, nw := range stringRemap {
		invStr[nw] = types.Id(old)
	}
	invRel := make([]types.Id, nrels)
	for old, nw := range relRemap {
		invRel[nw] = types.Id(old)
	}

	// The header's nkeys/nschemata fields already carry these counts; the
	// body only needs the per-entry payloads for i = 1 .. n-1 (index 0 in
	// each table is the reserved empty entry and is never written).
	var body []byte
	for i, k := range gk.keys {
		if i == 0 {
			continue
		}
		body = wire.AppendVarint(body, uint32(remapStr(k.Name)))
		body = wire.AppendVarint(body, uint32(k.Type))
		body = wire.AppendVarint(body, k.Size)
		body = append(body, byte(k.Storage))
	}

	for i := 1; i < schemas.NumSchemata(); i++ {
		keys := schemas.Keys(i)
		body = wire.AppendVarint(body, uint32(len(keys)))
		for _, k := range keys {
			body = wire.AppendVarint(body, uint32(k))
		}
	}

	var incore []byte
	var vertical []byte
	for _, e := range entries {
		incore = wire.AppendVarint(incore, uint32(e.schema))
		for _, id := range e.scalarIDs {
			incore = wire.AppendVarint(incore, uint32(remapStr(id)))
		}
		for _, a := range e.attrs {
			val := remapValue(a.kind, a.val, remapStr, remapArrayID)
			if a.storage == types.KeyStorageVerticalOffset {
				enc, err := repodata.EncodeValue(a.kind, val)
				if err != nil {
					return 0, solverrors.Wrap(solverrors.KindCaller, "writer.WriteTo", err)
				}
				off := len(vertical)
				vertical = append(vertical, enc...)
				incore = wire.AppendVarint(incore, uint32(off))
				incore = wire.AppendVarint(incore, uint32(len(enc)))
				continue
			}
			enc, err := repodata.EncodeValue(a.kind, val)
			if err != nil {
				return 0, solverrors.Wrap(solverrors.KindCaller, "writer.WriteTo", err)
			}
			incore = append(incore, enc...)
		}
	}

	header := make([]byte, 0, 32)
	version := uint32(types.Version8)
	if len(w.Config.UserData) > 0 {
		version = types.Version9
	}
	header = appendU32(header, uint32(types.Magic0)<<24|uint32(types.Magic1)<<16|uint32(types.Magic2)<<8|uint32(types.Magic3))
	header = appendU32(header, version)
	header = appendU32(header, uint32(nstrings))
	header = appendU32(header, uint32(nrels))
	header = appendU32(header, uint32(ndirs))
	header = appendU32(header, uint32(w.End-w.Start))
	header = appendU32(header, uint32(len(gk.keys)))
	header = appendU32(header, uint32(schemas.NumSchemata()))
	flags := uint32(types.FlagPrefixPool)
	if len(w.Config.UserData) > 0 {
		flags |= types.FlagUserdata
	}
	header = appendU32(header, flags)

	if len(w.Config.UserData) > 0 {
		header = appendU32(header, uint32(len(w.Config.UserData)))
		header = append(header, w.Config.UserData...)
	}

	var strSection []byte
	totalBytes := 0
	for i := 0; i < nstrings; i++ {
		totalBytes += len(w.Pool.Strings.String(invStr[i])) + 1
	}
	strSection = appendU32(strSection, uint32(totalBytes))
	var packed []byte
	prev := ""
	for i := 1; i < nstrings; i++ {
		s := w.Pool.Strings.String(invStr[i])
		shared := commonPrefixLen(prev, s)
		if shared > 254 {
			shared = 254
		}
		packed = append(packed, byte(shared))
		packed = append(packed, s[shared:]...)
		packed = append(packed, 0)
		prev = s
	}
	strSection = appendU32(strSection, uint32(len(packed)))
	strSection = append(strSection, packed...)

	var relSection []byte
	for i := 1; i < nrels; i++ {
		r := w.Pool.Rels.Get(types.MakeRelId(uint32(invRel[i])))
		relSection = wire.AppendVarint(relSection, uint32(remapStr(r.Name)))
		relSection = wire.AppendVarint(relSection, uint32(remapStr(r.Evr)))
		relSection = append(relSection, byte(r.Flags))
	}

	// Dir table: (parent, component) varint pairs for every dir beyond
	// the sentinel/root pair. Parents stay dir-numbered (dirs aren't
	// renumbered by this pass); components are string ids and must track
	// the same renumbering the string table underwent. See SPEC_FULL.md
	// §6.1 for why the dir link direction deviates from the literal
	// back-link encoding.
	var dirSection []byte
	for d := 2; d < ndirs; d++ {
		id := dirpool.DirId(d)
		dirSection = wire.AppendVarint(dirSection, uint32(w.Pool.Dirs.Parent(id)))
		dirSection = wire.AppendVarint(dirSection, uint32(remapStr(w.Pool.Dirs.Compid(id))))
	}

	var buf []byte
	buf = append(buf, header...)
	buf = append(buf, strSection...)
	buf = append(buf, relSection...)
	buf = append(buf, dirSection...)
	buf = append(buf, body...)
	buf = wire.AppendVarint(buf, 0) // maxdata hint, unused by this implementation
	buf = wire.AppendVarint(buf, uint32(len(incore)))
	buf = append(buf, incore...)
	buf = appendU32(buf, types.PageSize)
	buf = appendVerticalPages(buf, vertical)

	n, err := out.Write(buf)
	if err != nil {
		return int64(n), solverrors.Wrap(solverrors.KindIO, "writer.WriteTo", err)
	}
	return int64(n), nil
}

// renumberByNeed returns an old-id -> new-id table for the [reserved, n)
// range, sorted by descending need (stable, so ties keep their original
// relative order for determinism); ids below reserved map to themselves.
func renumberByNeed(n int, need []uint32, reserved int) []types.Id {
	type item struct {
		old  int
		need uint32
	}
	list := make([]item, 0, n-reserved)
	for i := reserved; i < n; i++ {
		list = append(list, item{i, need[i]})
	}
	sort.SliceStable(list, func(a, b int) bool { return list[a].need > list[b].need })

	remap := make([]types.Id, n)
	for i := 0; i < reserved && i < n; i++ {
		remap[i] = types.Id(i)
	}
	for newID, it := range list {
		remap[it.old] = types.Id(reserved + newID)
	}
	return remap
}

// remapValue rewrites a decoded value's id-typed fields under the
// renumbering remapStr/remapArrayID describe; other value kinds (Str,
// Num, DirStrArray's dir ids and raw name bytes) pass through unchanged,
// since this pass only renumbers strings and rels.
func remapValue(t types.KeyType, v types.KeyValue, remapStr, remapArrayID func(types.Id) types.Id) types.KeyValue {
	switch t {
	case types.TypeId:
		return types.KeyValue{ID: remapStr(v.ID)}
	case types.TypeIdArray, types.TypeRelIdArray:
		ids := make([]types.Id, len(v.Ids))
		for i, id := range v.Ids {
			ids[i] = remapArrayID(id)
		}
		return types.KeyValue{Ids: ids}
	default:
		return v
	}
}

// appendVerticalPages splits vertical into PageSize chunks, LZ-compresses
// each (falling back to a raw copy when compression doesn't shrink it),
// and appends the page count plus every page's (length<<1|compressed,
// bytes) record.
func appendVerticalPages(buf []byte, vertical []byte) []byte {
	pageCount := 0
	if len(vertical) > 0 {
		pageCount = (len(vertical) + types.PageSize - 1) / types.PageSize
	}
	buf = wire.AppendVarint(buf, uint32(pageCount))
	for i := 0; i < pageCount; i++ {
		start := i * types.PageSize
		end := start + types.PageSize
		if end > len(vertical) {
			end = len(vertical)
		}
		chunk := vertical[start:end]
		cbuf := make([]byte, len(chunk))
		n := compress.Compress(chunk, cbuf)
		if n > 0 && n < len(chunk) {
			buf = wire.AppendVarint(buf, uint32(n)<<1|1)
			buf = append(buf, cbuf[:n]...)
		} else {
			buf = wire.AppendVarint(buf, uint32(len(chunk))<<1)
			buf = append(buf, chunk...)
		}
	}
	return buf
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
