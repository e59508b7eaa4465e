package dataiter

import (
	"github.com/standardbeagle/solv/internal/pool"
	"github.com/standardbeagle/solv/internal/repodata"
	"github.com/standardbeagle/solv/internal/types"
)

// item is one flattened (key, value, match candidate) triple: array-
// typed attributes (IDARRAY/REL_IDARRAY/DIRSTRARRAY) expand to one item
// per element, matching the reference implementation's one-element-per-
// step iteration instead of handing back the whole array at once.
type item struct {
	key      types.Repokey
	val      types.KeyValue
	matchStr string
}

// Dataiterator walks (solvid, key, value) triples across [start, end) of
// a solvid range, optionally restricted to one keyname and filtered by a
// compiled Datamatcher. A zero Keyname (types.IdNull) means "any key".
type Dataiterator struct {
	pool      *pool.Pool
	repodatas map[int]*repodata.Repodata
	start, end int
	keyname   types.Id
	matcher   *Datamatcher

	solvid  int
	pending []item
	idx     int
	cur     item
}

// New returns a Dataiterator over [start, end); matcher may be nil to
// visit every value unconditionally.
func New(p *pool.Pool, repodatas map[int]*repodata.Repodata, start, end int, matcher *Datamatcher) *Dataiterator {
	return &Dataiterator{
		pool:      p,
		repodatas: repodatas,
		start:     start,
		end:       end,
		solvid:    start - 1,
		matcher:   matcher,
	}
}

// Keyname restricts iteration to a single key name; pass types.IdNull to
// clear the restriction (the default).
func (d *Dataiterator) Keyname(name types.Id) *Dataiterator {
	d.keyname = name
	return d
}

// Solvid returns the solvid the most recent Next() call landed on.
func (d *Dataiterator) Solvid() int { return d.solvid }

// Key returns the current entry's key.
func (d *Dataiterator) Key() types.Repokey { return d.cur.key }

// Value returns the current entry's value. For array-typed keys this is
// one element at a time (ID for IDARRAY/REL_IDARRAY, Str holding the
// full materialized path for DIRSTRARRAY), not the whole array.
func (d *Dataiterator) Value() types.KeyValue { return d.cur.val }

// Next advances to the next matching (solvid, key, value) triple,
// reporting whether one was found. It walks solvids in [start, end) in
// order, and within a solvid its schema's keys in schema order,
// expanding array values element by element.
func (d *Dataiterator) Next() bool {
	for {
		for d.idx < len(d.pending) {
			it := d.pending[d.idx]
			d.idx++
			if d.keyname != types.IdNull && it.key.Name != d.keyname {
				continue
			}
			if d.matcher != nil && !d.matcher.Match(it.matchStr) {
				continue
			}
			d.cur = it
			return true
		}
		if !d.fillPending() {
			return false
		}
	}
}

func (d *Dataiterator) fillPending() bool {
	for {
		d.solvid++
		if d.solvid >= d.end {
			return false
		}
		rd, ok := d.repodatas[d.solvid]
		if !ok {
			continue
		}
		decoded, has := rd.DecodeEntry(d.solvid)
		if !has {
			continue
		}
		d.pending = flatten(d.pool, rd, decoded)
		d.idx = 0
		if len(d.pending) == 0 {
			continue
		}
		return true
	}
}

// flatten expands one solvid's decoded entries into match-ready items,
// one per scalar value or array element.
func flatten(p *pool.Pool, rd *repodata.Repodata, decoded []repodata.DecodedEntry) []item {
	var out []item
	for _, de := range decoded {
		key := rd.Keys[de.Key]
		switch types.KeyType(key.Type) {
		case types.TypeStr:
			out = append(out, item{key, de.Value, de.Value.Str})
		case types.TypeId, types.TypeDir:
			out = append(out, item{key, de.Value, p.Id2Str(de.Value.ID)})
		case types.TypeIdArray, types.TypeRelIdArray:
			for _, id := range de.Value.Ids {
				out = append(out, item{key, types.KeyValue{ID: id}, p.Id2Str(id)})
			}
		case types.TypeDirStrArray:
			paths := repodata.MaterializeDirStrArray(de.Value, p)
			for i, path := range paths {
				var dir types.Id
				if i < len(de.Value.Ids) {
					dir = de.Value.Ids[i]
				}
				out = append(out, item{key, types.KeyValue{Str: path, DirID: dir}, path})
			}
		default:
			out = append(out, item{key, de.Value, ""})
		}
	}
	return out
}
