// Package reader deserializes a `.solv` stream written by internal/writer
// back into a Pool and a set of per-solvid Repodata attribute layers. It
// is the direct inverse of writer.WriteTo's section order. The writer
// renumbers strings and rels by descending need before emitting them,
// but this reader never has to invert that renumbering: it rebuilds a
// fresh pool by interning each wire string/rel in file order via
// p.Str2Id/p.Rel2Id, so whatever numbering scheme the writer used
// internally is irrelevant once every id has been translated through
// strIDs/relIDs below.
package reader

import (
	"bytes"
	"io"

	"github.com/standardbeagle/solv/internal/dirpool"
	solverrors "github.com/standardbeagle/solv/internal/errors"
	"github.com/standardbeagle/solv/internal/page"
	"github.com/standardbeagle/solv/internal/pool"
	"github.com/standardbeagle/solv/internal/repodata"
	"github.com/standardbeagle/solv/internal/types"
	"github.com/standardbeagle/solv/internal/wire"
)

// canMapPages bounds how many vertical pages the reader keeps resident
// at once; kept small and fixed so a large vertical section always
// exercises real eviction rather than just slurping everything.
const canMapPages = 4

// Result is everything ReadAll recovers from a stream: the solvid range
// it populated and the per-solvid attribute layer built from the incore
// blob.
type Result struct {
	Start, End int
	Repodatas  map[int]*repodata.Repodata
}

type cursor struct {
	data []byte
	off  int
}

func (c *cursor) u32() (uint32, error) {
	if c.off+4 > len(c.data) {
		return 0, solverrors.Malformed("reader.u32", "truncated fixed-width field")
	}
	v := uint32(c.data[c.off])<<24 | uint32(c.data[c.off+1])<<16 | uint32(c.data[c.off+2])<<8 | uint32(c.data[c.off+3])
	c.off += 4
	return v, nil
}

func (c *cursor) varint() (uint32, error) {
	v, next, err := wire.ReadVarint(c.data, c.off)
	if err != nil {
		return 0, err
	}
	c.off = next
	return v, nil
}

func (c *cursor) byte() (byte, error) {
	if c.off >= len(c.data) {
		return 0, solverrors.Malformed("reader.byte", "truncated")
	}
	b := c.data[c.off]
	c.off++
	return b, nil
}

func (c *cursor) cstr() (string, error) {
	start := c.off
	for c.off < len(c.data) && c.data[c.off] != 0 {
		c.off++
	}
	if c.off >= len(c.data) {
		return "", solverrors.Malformed("reader.cstr", "unterminated string")
	}
	s := string(c.data[start:c.off])
	c.off++
	return s, nil
}

// ReadAll parses a full `.solv` stream produced by writer.WriteTo,
// interning every string/rel/dir into p (which should be freshly created
// via pool.New so its built-in prelude ids line up with the ones the
// writer assumed), and appending nsolvables fresh solvables to repo.
func ReadAll(r io.Reader, p *pool.Pool, repoName string) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, solverrors.Wrap(solverrors.KindIO, "reader.ReadAll", err)
	}
	c := &cursor{data: raw}

	magic, err := c.u32()
	if err != nil {
		return nil, err
	}
	wantMagic := uint32(types.Magic0)<<24 | uint32(types.Magic1)<<16 | uint32(types.Magic2)<<8 | uint32(types.Magic3)
	if magic != wantMagic {
		return nil, solverrors.Malformed("reader.ReadAll", "bad magic")
	}
	version, err := c.u32()
	if err != nil {
		return nil, err
	}
	if version != types.Version8 && version != types.Version9 {
		return nil, solverrors.Malformed("reader.ReadAll", "unsupported version")
	}

	nstrings, err := c.u32()
	if err != nil {
		return nil, err
	}
	nrels, err := c.u32()
	if err != nil {
		return nil, err
	}
	ndirs, err := c.u32()
	if err != nil {
		return nil, err
	}
	nsolvables, err := c.u32()
	if err != nil {
		return nil, err
	}
	nkeys, err := c.u32()
	if err != nil {
		return nil, err
	}
	nschemata, err := c.u32()
	if err != nil {
		return nil, err
	}
	flags, err := c.u32()
	if err != nil {
		return nil, err
	}

	if flags&types.FlagUserdata != 0 {
		ulen, err := c.u32()
		if err != nil {
			return nil, err
		}
		if c.off+int(ulen) > len(c.data) {
			return nil, solverrors.Malformed("reader.ReadAll", "truncated userdata")
		}
		c.off += int(ulen) // userdata contents aren't surfaced by this reader
	}

	if _, err := c.u32(); err != nil { // sizeid, informational only
		return nil, err
	}
	if _, err := c.u32(); err != nil { // packedsize, informational only
		return nil, err
	}
	strIDs := make([]types.Id, nstrings)
	prev := ""
	for i := uint32(1); i < nstrings; i++ {
		shared, err := c.byte()
		if err != nil {
			return nil, err
		}
		suffix, err := c.cstr()
		if err != nil {
			return nil, err
		}
		s := prev[:shared] + suffix
		strIDs[i] = p.Str2Id(s, true)
		prev = s
	}

	relIDs := make([]types.Id, nrels)
	for i := uint32(1); i < nrels; i++ {
		nameFileID, err := c.varint()
		if err != nil {
			return nil, err
		}
		evrFileID, err := c.varint()
		if err != nil {
			return nil, err
		}
		flagByte, err := c.byte()
		if err != nil {
			return nil, err
		}
		name := remapStr(strIDs, nameFileID)
		evrID := remapStr(strIDs, evrFileID)
		relIDs[i] = p.Rel2Id(name, evrID, types.RelFlags(flagByte), true)
	}

	dirIDs := make([]dirpool.DirId, ndirs)
	dirIDs[0] = dirpool.DirSentinel
	if ndirs > 1 {
		dirIDs[1] = dirpool.DirRoot
	}
	for i := uint32(2); i < ndirs; i++ {
		parentFile, err := c.varint()
		if err != nil {
			return nil, err
		}
		compFile, err := c.varint()
		if err != nil {
			return nil, err
		}
		parent := dirpool.DirSentinel
		if int(parentFile) < len(dirIDs) {
			parent = dirIDs[parentFile]
		}
		dirIDs[i] = p.Dirs.AddDir(parent, remapStr(strIDs, compFile), true)
	}

	keys := make([]types.Repokey, nkeys)
	for i := uint32(1); i < nkeys; i++ {
		nameFile, err := c.varint()
		if err != nil {
			return nil, err
		}
		typeFile, err := c.varint()
		if err != nil {
			return nil, err
		}
		size, err := c.varint()
		if err != nil {
			return nil, err
		}
		storage, err := c.byte()
		if err != nil {
			return nil, err
		}
		keys[i] = types.Repokey{Name: remapStr(strIDs, nameFile), Type: types.Id(typeFile), Size: size, Storage: types.KeyStorage(storage)}
	}

	schemata := make([][]types.Id, nschemata)
	for i := uint32(1); i < nschemata; i++ {
		n, err := c.varint()
		if err != nil {
			return nil, err
		}
		seq := make([]types.Id, n)
		for j := uint32(0); j < n; j++ {
			v, err := c.varint()
			if err != nil {
				return nil, err
			}
			seq[j] = types.Id(v)
		}
		schemata[i] = seq
	}

	if _, err := c.varint(); err != nil { // maxdata hint, unused by this reader
		return nil, err
	}
	if _, err := c.varint(); err != nil { // incorelen, informational: the blob is parsed structurally below
		return nil, err
	}

	r2 := p.AddRepo(repoName)
	repoIdx := len(p.Repos) - 1
	start := -1
	repodatas := make(map[int]*repodata.Repodata)

	for i := uint32(0); i < nsolvables; i++ {
		solvid := p.AddSolvable(repoIdx)
		if start == -1 {
			start = solvid
		}
		schemaID, err := c.varint()
		if err != nil {
			return nil, err
		}
		if int(schemaID) >= len(schemata) {
			return nil, solverrors.Corrupt("reader.ReadAll", "schema id out of range")
		}
		seq := schemata[schemaID]

		s := &p.Solvables[solvid]
		var rd *repodata.Repodata
		for _, keyIdx := range seq {
			if int(keyIdx) >= len(keys) {
				return nil, solverrors.Corrupt("reader.ReadAll", "key id out of range")
			}
			key := keys[keyIdx]
			if key.Storage == types.KeyStorageSolvable {
				v, err := c.varint()
				if err != nil {
					return nil, err
				}
				id := remapStr(strIDs, v)
				switch key.Name {
				case types.SolvableName:
					s.Name = id
				case types.SolvableArch:
					s.Arch = id
				case types.SolvableEvr:
					s.Evr = id
				case types.SolvableVendor:
					s.Vendor = id
				}
				continue
			}
			if key.Storage == types.KeyStorageVerticalOffset {
				voff, err := c.varint()
				if err != nil {
					return nil, err
				}
				vlen, err := c.varint()
				if err != nil {
					return nil, err
				}
				if rd == nil {
					rd = repodata.New(solvid, solvid+1)
					repodatas[solvid] = rd
				}
				rd.SetVerticalRange(solvid, key.Name, int64(voff), int(vlen))
				continue
			}
			// Everything else belongs to the solvid's repodata layer and
			// is re-encoded on the fly via the repodata API so a single
			// Internalize at the end produces a consistent incore form.
			if rd == nil {
				rd = repodata.New(solvid, solvid+1)
				repodatas[solvid] = rd
			}
			if err := readAttrInto(c, key, rd, solvid, strIDs, relIDs); err != nil {
				return nil, err
			}
		}
	}
	r2.End = start + int(nsolvables)
	r2.Start = start

	if _, err := c.u32(); err != nil { // pagesize, fixed by the wire format (types.PageSize)
		return nil, err
	}
	npages, err := c.varint()
	if err != nil {
		return nil, err
	}
	var store *page.Store
	if npages > 0 {
		type pageMeta struct {
			offset     int64
			length     int64
			compressed bool
		}
		metas := make([]pageMeta, npages)
		for i := uint32(0); i < npages; i++ {
			lenFlag, err := c.varint()
			if err != nil {
				return nil, err
			}
			length := int64(lenFlag >> 1)
			if c.off+int(length) > len(c.data) {
				return nil, solverrors.Malformed("reader.ReadAll", "truncated vertical page")
			}
			metas[i] = pageMeta{offset: int64(c.off), length: length, compressed: lenFlag&1 != 0}
			c.off += int(length)
		}
		canMap := canMapPages
		if int(npages) < canMap {
			canMap = int(npages)
		}
		store = page.NewStore(bytes.NewReader(raw), int(npages), canMap)
		for i, m := range metas {
			store.SetPage(i, m.offset, m.length, m.compressed)
		}
	}

	for _, rd := range repodatas {
		if err := rd.Internalize(); err != nil {
			return nil, err
		}
		if store != nil {
			rd.RegisterPageStore(store)
		}
	}

	return &Result{Start: start, End: start + int(nsolvables), Repodatas: repodatas}, nil
}

func remapStr(strIDs []types.Id, fileID uint32) types.Id {
	if int(fileID) < len(strIDs) {
		return strIDs[fileID]
	}
	return types.IdNull
}

// remapID translates a raw id read off an IdArray/RelIdArray payload,
// which may be a plain string id or a rel-tagged id, into the reading
// pool's corresponding id.
func remapID(strIDs, relIDs []types.Id, raw uint32) types.Id {
	old := types.Id(raw)
	if old.IsRel() {
		idx := old.RelIndex()
		if int(idx) < len(relIDs) {
			return relIDs[idx]
		}
		return types.IdNull
	}
	return remapStr(strIDs, raw)
}

// readAttrInto decodes one key's value straight off the cursor and
// stages it into rd via the matching Set*/Add* call, so Internalize can
// re-derive a fresh incore form for the read-back pool.
func readAttrInto(c *cursor, key types.Repokey, rd *repodata.Repodata, solvid int, strIDs, relIDs []types.Id) error {
	switch types.KeyType(key.Type) {
	case types.TypeId, types.TypeDir:
		v, err := c.varint()
		if err != nil {
			return err
		}
		rd.SetID(solvid, key.Name, remapStr(strIDs, v))
	case types.TypeNum, types.TypeU32:
		v, err := c.varint()
		if err != nil {
			return err
		}
		rd.SetNum(solvid, key.Name, uint64(v))
	case types.TypeStr:
		s, err := c.cstr()
		if err != nil {
			return err
		}
		rd.SetStr(solvid, key.Name, s)
	case types.TypeIdArray:
		raw, next, err := wire.ReadIdArray(c.data, c.off)
		if err != nil {
			return err
		}
		c.off = next
		ids := make([]types.Id, len(raw))
		for i, v := range raw {
			ids[i] = remapID(strIDs, relIDs, v)
		}
		rd.AddIdArray(solvid, key.Name, ids, false)
	case types.TypeRelIdArray:
		raw, next, err := wire.ReadIdArray(c.data, c.off)
		if err != nil {
			return err
		}
		c.off = next
		abs := repodata.DecodeRelIdArrayDeltas(raw)
		ids := make([]types.Id, len(abs))
		for i, id := range abs {
			if id == types.SolvablePrereqMarker {
				ids[i] = types.SolvablePrereqMarker
				continue
			}
			ids[i] = remapID(strIDs, relIDs, uint32(id))
		}
		rd.AddIdArray(solvid, key.Name, ids, true)
	case types.TypeDirStrArray:
		count, err := c.varint()
		if err != nil {
			return err
		}
		for i := uint32(0); i < count; i++ {
			dirFile, err := c.varint()
			if err != nil {
				return err
			}
			name, err := c.cstr()
			if err != nil {
				return err
			}
			rd.AddDirStrArray(solvid, key.Name, types.Id(dirFile), name)
		}
	default:
		_, err := c.cstr()
		return err
	}
	return nil
}
