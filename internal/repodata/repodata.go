// Package repodata implements one attribute stratum attached to a repo:
// keys, interned schemas, and the per-solvable values themselves, first
// staged in an uninternalized side table and then packed into a compact
// incore (and, for large array values, vertical) form by Internalize.
// This follows repodata.c's attrs/incoredata split; the vertical/paged
// half is handled by the page package once a repodata has been read back
// off disk.
package repodata

import (
	"sort"

	solverrors "github.com/standardbeagle/solv/internal/errors"
	"github.com/standardbeagle/solv/internal/page"
	"github.com/standardbeagle/solv/internal/types"
	"github.com/standardbeagle/solv/internal/wire"
)

// MetaSolvid is the pseudo solvid (-1 in the original) used for repodata-
// wide attributes that aren't attached to any one solvable.
const MetaSolvid = -1

type rawAttr struct {
	key types.Id
	val types.KeyValue
}

// State tracks whether a repodata's incore form is current or has been
// marked as poisoned; lookups short-circuit on StateError. The reader does
// not set StateError: a failed read returns no repodata at all.
type State int

const (
	StateOK State = iota
	StateError
)

// Repodata is one layer of attributes for a contiguous solvid range
// [Start, End) within a repo.
type Repodata struct {
	Start, End int
	State      State

	Keys   []types.Repokey // Keys[0] is the reserved empty key
	schema *schemaPool

	// uninternalized staging: attrs[solvid-Start] and the -1 meta slot
	// (stored separately since Start may be 0).
	attrs     map[int][]rawAttr
	metaAttrs []rawAttr

	// internalized form: incoredata[solvid-Start] is schema-id varint
	// followed by encoded key values, in schema order.
	incoredata map[int][]byte
	metaIncore []byte
	schemaOf   map[int]int // solvid-Start -> schema id (cached for lookups)
	metaSchema int

	// vertical storage: keys whose values live in a paged blob rather
	// than incoredata, populated by the reader.
	pageStore  *page.Store
	vertKeyOff map[types.Id]map[int]int64 // keyid -> solvid -> byte offset within the vertical blob
	vertKeyLen map[types.Id]map[int]int
}

// New returns an empty Repodata covering [start, end).
func New(start, end int) *Repodata {
	return &Repodata{
		Start:  start,
		End:    end,
		Keys:   []types.Repokey{{}},
		schema: newSchemaPool(),
		attrs:  make(map[int][]rawAttr),
	}
}

func (rd *Repodata) keyIndex(k types.Repokey) types.Id {
	for i, existing := range rd.Keys {
		if i == 0 {
			continue
		}
		if existing.Name == k.Name && existing.Type == k.Type {
			return types.Id(i)
		}
	}
	rd.Keys = append(rd.Keys, k)
	return types.Id(len(rd.Keys) - 1)
}

func (rd *Repodata) addAttr(solvid int, keyIdx types.Id, v types.KeyValue) {
	entry := rawAttr{key: keyIdx, val: v}
	if solvid == MetaSolvid {
		rd.metaAttrs = append(rd.metaAttrs, entry)
		return
	}
	idx := solvid - rd.Start
	rd.attrs[idx] = append(rd.attrs[idx], entry)
}

// SetStr stages a string-valued attribute.
func (rd *Repodata) SetStr(solvid int, name types.Id, s string) {
	k := rd.keyIndex(types.Repokey{Name: name, Type: types.Id(types.TypeStr), Storage: types.KeyStorageIncore})
	rd.addAttr(solvid, k, types.KeyValue{Str: s})
}

// SetID stages an id-valued scalar attribute.
func (rd *Repodata) SetID(solvid int, name types.Id, id types.Id) {
	k := rd.keyIndex(types.Repokey{Name: name, Type: types.Id(types.TypeId), Storage: types.KeyStorageIncore})
	rd.addAttr(solvid, k, types.KeyValue{ID: id})
}

// SetNum stages a u64 numeric attribute.
func (rd *Repodata) SetNum(solvid int, name types.Id, n uint64) {
	k := rd.keyIndex(types.Repokey{Name: name, Type: types.Id(types.TypeNum), Storage: types.KeyStorageIncore})
	rd.addAttr(solvid, k, types.KeyValue{Num: n})
}

// AddIdArray stages (or appends to) an IDARRAY-typed attribute, in
// insertion order; ids is the full array's contents for this call (use
// repeated calls to build it incrementally, the way the uninternalized
// side table accumulates them).
func (rd *Repodata) AddIdArray(solvid int, name types.Id, ids []types.Id, rel bool) {
	kt := types.TypeIdArray
	if rel {
		kt = types.TypeRelIdArray
	}
	k := rd.keyIndex(types.Repokey{Name: name, Type: types.Id(kt), Storage: types.KeyStorageIncore})
	if existing := rd.findDirStrArray(solvid, k); existing != nil {
		existing.Ids = append(existing.Ids[:len(existing.Ids):len(existing.Ids)], ids...)
		return
	}
	rd.addAttr(solvid, k, types.KeyValue{Ids: ids})
}

// AddDirStrArray stages a (dirid, filename) pair used by filelist-style
// attributes; storage defaults to vertical, matching libsolv's usual
// choice for these (they tend to be large).
func (rd *Repodata) AddDirStrArray(solvid int, name types.Id, dir types.Id, file string) {
	k := rd.keyIndex(types.Repokey{Name: name, Type: types.Id(types.TypeDirStrArray), Storage: types.KeyStorageVerticalOffset})
	entries := rd.findDirStrArray(solvid, k)
	if entries != nil {
		entries.Ids = append(entries.Ids, dir)
		entries.Str += "\x00" + file
		return
	}
	rd.addAttr(solvid, k, types.KeyValue{Ids: []types.Id{dir}, Str: file})
}

func (rd *Repodata) findDirStrArray(solvid int, k types.Id) *types.KeyValue {
	var list []rawAttr
	if solvid == MetaSolvid {
		list = rd.metaAttrs
	} else {
		list = rd.attrs[solvid-rd.Start]
	}
	for i := range list {
		if list[i].key == k {
			return &list[i].val
		}
	}
	return nil
}

// Internalize packs every staged attribute into the compact incore form,
// sorting each solvable's keys, interning a schema, and emitting encoded
// values. It mirrors repodata_internalize's single-pass-per-solvid
// structure; after it returns, attrs is empty and lookups go through the
// incore form exclusively.
func (rd *Repodata) Internalize() error {
	rd.incoredata = make(map[int][]byte)
	rd.schemaOf = make(map[int]int)

	if len(rd.metaAttrs) > 0 {
		data, schemaID, err := rd.encodeEntry(rd.metaAttrs)
		if err != nil {
			return err
		}
		rd.metaIncore = data
		rd.metaSchema = schemaID
	}

	ids := make([]int, 0, len(rd.attrs))
	for idx := range rd.attrs {
		ids = append(ids, idx)
	}
	sort.Ints(ids)
	for _, idx := range ids {
		data, schemaID, err := rd.encodeEntry(rd.attrs[idx])
		if err != nil {
			return err
		}
		rd.incoredata[idx] = data
		rd.schemaOf[idx] = schemaID
	}
	rd.attrs = make(map[int][]rawAttr)
	rd.metaAttrs = nil
	return nil
}

func (rd *Repodata) encodeEntry(attrsList []rawAttr) ([]byte, int, error) {
	sorted := append([]rawAttr(nil), attrsList...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].key < sorted[j].key })

	keys := make([]types.Id, 0, len(sorted))
	seen := make(map[types.Id]bool)
	for _, a := range sorted {
		if !seen[a.key] {
			keys = append(keys, a.key)
			seen[a.key] = true
		}
	}
	schemaID := rd.schema.intern(keys)

	var buf []byte
	buf = wire.AppendVarint(buf, uint32(schemaID))
	for _, a := range sorted {
		key := rd.Keys[a.key]
		enc, err := encodeValue(types.KeyType(key.Type), a.val)
		if err != nil {
			return nil, 0, err
		}
		buf = append(buf, enc...)
	}
	return buf, schemaID, nil
}

func encodeValue(t types.KeyType, v types.KeyValue) ([]byte, error) {
	switch t {
	case types.TypeId, types.TypeDir:
		return wire.AppendVarint(nil, uint32(v.ID)), nil
	case types.TypeNum, types.TypeU32:
		return wire.AppendVarint(nil, uint32(v.Num)), nil
	case types.TypeStr:
		return append([]byte(v.Str), 0), nil
	case types.TypeIdArray:
		buf := make([]uint32, len(v.Ids))
		for i, id := range v.Ids {
			buf[i] = uint32(id)
		}
		return wire.AppendIdArray(nil, buf), nil
	case types.TypeRelIdArray:
		return encodeRelIdArray(v.Ids), nil
	case types.TypeDirStrArray:
		buf := wire.AppendVarint(nil, uint32(len(v.Ids)))
		names := splitNUL(v.Str)
		for i, dir := range v.Ids {
			buf = wire.AppendVarint(buf, uint32(dir))
			if i < len(names) {
				buf = append(buf, names[i]...)
			}
			buf = append(buf, 0)
		}
		return buf, nil
	default:
		return append([]byte(v.Str), 0), nil
	}
}

func splitNUL(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// encodeRelIdArray applies the REL_IDARRAY delta scheme: ids are assumed
// already renumbered/sorted by the caller (the writer does this as part
// of its pass 2); successive differences (plus 1) are emitted so small
// deltas pack into one or two bytes, with a difference of 0 reserved for
// the PREREQ/FILE marker entries that must not shift.
func isMarkerID(id types.Id) bool {
	return id == types.SolvablePrereqMarker || id == types.SolvableFileMarker
}

func encodeRelIdArray(ids []types.Id) []byte {
	var buf []uint32
	prev := types.Id(0)
	for _, id := range ids {
		if isMarkerID(id) {
			// The marker is emitted verbatim as a 0 delta and does not
			// participate in the running difference; the next real id's
			// delta is still taken against the last non-marker id.
			buf = append(buf, 0)
			continue
		}
		delta := int64(id) - int64(prev) + 1
		buf = append(buf, uint32(delta))
		prev = id
	}
	return wire.AppendIdArray(nil, buf)
}

// decodeRelIdArray inverts encodeRelIdArray. Since a 0 delta always means
// "the marker that was here", and which marker it was is recoverable only
// from context (prereq vs file lists), callers needing the concrete
// marker value must supply it themselves; here we default to the prereq
// marker, since AddIdArray's rel=true path is used exclusively for
// requires lists in this module.
func decodeRelIdArray(deltas []uint32) []types.Id {
	out := make([]types.Id, len(deltas))
	prev := types.Id(0)
	for i, d := range deltas {
		if d == 0 {
			out[i] = types.SolvablePrereqMarker
			continue
		}
		id := prev + types.Id(int64(d)-1)
		out[i] = id
		prev = id
	}
	return out
}

// LookupStr returns a string-typed attribute for solvid, or ("", false)
// if absent or the repodata is in an error state.
func (rd *Repodata) LookupStr(solvid int, name types.Id) (string, bool) {
	v, ok := rd.lookup(solvid, name, types.TypeStr)
	if !ok {
		return "", false
	}
	return v.Str, true
}

// LookupID returns an id-typed attribute for solvid.
func (rd *Repodata) LookupID(solvid int, name types.Id) (types.Id, bool) {
	v, ok := rd.lookup(solvid, name, types.TypeId)
	if !ok {
		return types.IdNull, false
	}
	return v.ID, true
}

// LookupIdArray returns an IDARRAY/RELIDARRAY attribute's element list.
func (rd *Repodata) LookupIdArray(solvid int, name types.Id) ([]types.Id, bool) {
	for _, kt := range []types.KeyType{types.TypeIdArray, types.TypeRelIdArray} {
		if v, ok := rd.lookup(solvid, name, kt); ok {
			return v.Ids, true
		}
	}
	return nil, false
}

// LookupPackedDirStrArray returns the stringified (full-path) form of a
// DIRSTRARRAY attribute, materializing each entry's dir id against dirs.
// If this key was read off disk as a vertical-storage attribute, its
// bytes are fetched from the page store on demand instead of decoding an
// inline incoredata copy.
func (rd *Repodata) LookupPackedDirStrArray(solvid int, name types.Id, dirs DirStringer) ([]string, bool) {
	if rd.pageStore != nil {
		if offs, ok := rd.vertKeyOff[name]; ok {
			if off, ok2 := offs[solvid]; ok2 {
				length := rd.vertKeyLen[name][solvid]
				raw, err := readVerticalRange(rd.pageStore, off, length)
				if err != nil {
					return nil, false
				}
				v, _, err := decodeValue(types.TypeDirStrArray, raw, 0)
				if err != nil {
					return nil, false
				}
				return MaterializeDirStrArray(v, dirs), true
			}
		}
	}
	v, ok := rd.lookup(solvid, name, types.TypeDirStrArray)
	if !ok {
		return nil, false
	}
	return MaterializeDirStrArray(v, dirs), true
}

// MaterializeDirStrArray expands a decoded DIRSTRARRAY value's parallel
// dir-id/name-suffix lists into full slash-joined paths, shared by the
// incore and vertical lookup paths and by internal/dataiter.
func MaterializeDirStrArray(v types.KeyValue, dirs DirStringer) []string {
	names := splitNUL(v.Str)
	out := make([]string, len(v.Ids))
	for i, dir := range v.Ids {
		base := ""
		if i < len(names) {
			base = names[i]
		}
		out[i] = dirs.DirPath(dir) + base
	}
	return out
}

// RegisterPageStore attaches the paged, compressed blob backing this
// repodata's vertical-storage keys. Called once by the reader after it
// has parsed the trailing page table, for every repodata that received
// at least one SetVerticalRange call.
func (rd *Repodata) RegisterPageStore(store *page.Store) {
	rd.pageStore = store
}

// SetVerticalRange records where solvid's name-keyed vertical attribute
// lives within the paged blob: byte offset and length in the
// pre-paging vertical stream the writer built. Lookups resolve these
// lazily through the page store rather than eagerly decoding every
// vertical value at read time.
func (rd *Repodata) SetVerticalRange(solvid int, name types.Id, offset int64, length int) {
	if rd.vertKeyOff == nil {
		rd.vertKeyOff = make(map[types.Id]map[int]int64)
		rd.vertKeyLen = make(map[types.Id]map[int]int)
	}
	if rd.vertKeyOff[name] == nil {
		rd.vertKeyOff[name] = make(map[int]int64)
		rd.vertKeyLen[name] = make(map[int]int)
	}
	rd.vertKeyOff[name][solvid] = offset
	rd.vertKeyLen[name][solvid] = length
}

// readVerticalRange copies [offset, offset+length) out of store's
// logical page stream, crossing page boundaries as needed.
func readVerticalRange(store *page.Store, offset int64, length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	out := make([]byte, 0, length)
	remaining := length
	pos := offset
	for remaining > 0 {
		pnum := int(pos / page.PageSize)
		within := int(pos % page.PageSize)
		buf, err := store.Page(pnum)
		if err != nil {
			return nil, err
		}
		n := page.PageSize - within
		if n > remaining {
			n = remaining
		}
		out = append(out, buf[within:within+n]...)
		remaining -= n
		pos += int64(n)
	}
	return out, nil
}

// DirStringer materializes a dir id into a full slash-terminated path;
// implemented by the dirpool wrapper the owning pool keeps.
type DirStringer interface {
	DirPath(dir types.Id) string
}

// The methods below expose the internalized incore form to the writer
// package, which walks every solvid's already-encoded bytes directly
// rather than re-deriving them from the staged attrs (which Internalize
// discards).

// NumSchemata returns the number of interned schemas, including the
// reserved empty one at id 0.
func (rd *Repodata) NumSchemata() int { return rd.schema.NumSchemata() }

// SchemaKeys returns the key-index sequence belonging to schema id.
func (rd *Repodata) SchemaKeys(id int) []types.Id { return rd.schema.Keys(id) }

// IncoreBytes returns solvid's already-internalized schemaid+values blob
// and the schema id it was built with, or (nil, 0, false) if solvid has
// no attributes in this repodata.
func (rd *Repodata) IncoreBytes(solvid int) ([]byte, int, bool) {
	data, ok := rd.incoredata[solvid-rd.Start]
	if !ok {
		return nil, 0, false
	}
	return data, rd.schemaOf[solvid-rd.Start], true
}

// MetaBytes returns the repodata-wide (SOLVID_META) incore blob, if any
// meta attributes were staged.
func (rd *Repodata) MetaBytes() ([]byte, int, bool) {
	if rd.metaIncore == nil {
		return nil, 0, false
	}
	return rd.metaIncore, rd.metaSchema, true
}

// DecodedEntry is one decoded key/value pair read back out of a solvid's
// (or the meta slot's) internalized form, keyed by local key index (an
// index into rd.Keys).
type DecodedEntry struct {
	Key   types.Id
	Value types.KeyValue
}

// DecodeEntry walks solvid's already-internalized incore bytes and
// returns every key/value pair in schema order. Unlike the single-key
// Lookup* helpers, it hands back the full decoded entry in one pass, for
// callers (the writer's needed-id/renumbering pass, internal/dataiter)
// that must see every value rather than one named attribute.
func (rd *Repodata) DecodeEntry(solvid int) ([]DecodedEntry, bool) {
	if rd.State == StateError {
		return nil, false
	}
	var data []byte
	if solvid == MetaSolvid {
		data = rd.metaIncore
	} else {
		data = rd.incoredata[solvid-rd.Start]
	}
	if data == nil {
		return nil, false
	}
	schemaID, off, err := wire.ReadVarint(data, 0)
	if err != nil {
		return nil, false
	}
	keys := rd.schema.Keys(int(schemaID))
	out := make([]DecodedEntry, 0, len(keys))
	for _, keyIdx := range keys {
		key := rd.Keys[keyIdx]
		v, next, derr := decodeValue(types.KeyType(key.Type), data, off)
		if derr != nil {
			return nil, false
		}
		out = append(out, DecodedEntry{Key: keyIdx, Value: v})
		off = next
	}
	return out, true
}

// EncodeValue encodes a single decoded value back into its wire form for
// a key of the given type; the inverse of decodeValue. Exported so the
// writer can re-encode values under a renumbered id scheme without
// duplicating the type-dispatch table.
func EncodeValue(t types.KeyType, v types.KeyValue) ([]byte, error) {
	return encodeValue(t, v)
}

// DecodeRelIdArrayDeltas inverts the REL_IDARRAY delta scheme for callers
// (the reader package) that need the raw pre-remap id sequence before
// translating file-local ids into their own pool's numbering.
func DecodeRelIdArrayDeltas(deltas []uint32) []types.Id {
	return decodeRelIdArray(deltas)
}

func (rd *Repodata) lookup(solvid int, name types.Id, t types.KeyType) (types.KeyValue, bool) {
	if rd.State == StateError {
		return types.KeyValue{}, false
	}
	var data []byte
	if solvid == MetaSolvid {
		data = rd.metaIncore
	} else {
		data = rd.incoredata[solvid-rd.Start]
	}
	if data == nil {
		return types.KeyValue{}, false
	}
	schemaID, off, err := wire.ReadVarint(data, 0)
	if err != nil {
		return types.KeyValue{}, false
	}
	keys := rd.schema.Keys(int(schemaID))
	for _, keyIdx := range keys {
		key := rd.Keys[keyIdx]
		v, next, derr := decodeValue(types.KeyType(key.Type), data, off)
		if derr != nil {
			return types.KeyValue{}, false
		}
		if key.Name == name && types.KeyType(key.Type) == t {
			return v, true
		}
		off = next
	}
	return types.KeyValue{}, false
}

func decodeValue(t types.KeyType, data []byte, off int) (types.KeyValue, int, error) {
	switch t {
	case types.TypeId, types.TypeDir:
		v, next, err := wire.ReadVarint(data, off)
		return types.KeyValue{ID: types.Id(v)}, next, err
	case types.TypeNum, types.TypeU32:
		v, next, err := wire.ReadVarint(data, off)
		return types.KeyValue{Num: uint64(v)}, next, err
	case types.TypeStr:
		end := off
		for end < len(data) && data[end] != 0 {
			end++
		}
		if end >= len(data) {
			return types.KeyValue{}, off, solverrors.Malformed("repodata.decodeValue", "unterminated string")
		}
		return types.KeyValue{Str: string(data[off:end])}, end + 1, nil
	case types.TypeIdArray:
		raw, next, err := wire.ReadIdArray(data, off)
		if err != nil {
			return types.KeyValue{}, off, err
		}
		ids := make([]types.Id, len(raw))
		for i, r := range raw {
			ids[i] = types.Id(r)
		}
		return types.KeyValue{Ids: ids}, next, nil
	case types.TypeRelIdArray:
		raw, next, err := wire.ReadIdArray(data, off)
		if err != nil {
			return types.KeyValue{}, off, err
		}
		return types.KeyValue{Ids: decodeRelIdArray(raw)}, next, nil
	case types.TypeDirStrArray:
		count, next, err := wire.ReadVarint(data, off)
		if err != nil {
			return types.KeyValue{}, off, err
		}
		off = next
		ids := make([]types.Id, count)
		var names []byte
		for i := uint32(0); i < count; i++ {
			dir, next, err := wire.ReadVarint(data, off)
			if err != nil {
				return types.KeyValue{}, off, err
			}
			ids[i] = types.Id(dir)
			off = next
			end := off
			for end < len(data) && data[end] != 0 {
				end++
			}
			if end >= len(data) {
				return types.KeyValue{}, off, solverrors.Malformed("repodata.decodeValue", "unterminated dirstrarray entry")
			}
			if i > 0 {
				names = append(names, 0)
			}
			names = append(names, data[off:end]...)
			off = end + 1
		}
		return types.KeyValue{Ids: ids, Str: string(names)}, off, nil
	default:
		end := off
		for end < len(data) && data[end] != 0 {
			end++
		}
		return types.KeyValue{Str: string(data[off:end])}, end + 1, nil
	}
}
