// Package page implements the paged, compressed blob store backing a
// repodata's vertical-data section. Pages are BLOB_PAGESIZE-aligned chunks
// of the concatenated vertical attribute values; the store keeps a small
// window of them resident and decompresses on demand, evicting by a
// cost-weighted sliding window rather than plain LRU. This mirrors
// libsolv's Repopagestore (repopage.c) byte for byte in its eviction
// arithmetic, since readers and writers must agree on when a page is
// still resident without any side channel.
package page

import (
	"io"

	"github.com/standardbeagle/solv/internal/compress"
)

// PageSize is the fixed uncompressed size of one page (BLOB_PAGESIZE).
const PageSize = 1 << 15

// entry describes one logical page: where it lives on disk and, while
// resident, where in the in-memory window it's mapped.
type entry struct {
	fileOffset int64
	fileSize   int64 // low bit is the compressed flag, rest is byte length
	mappedAt   int   // -1 if not resident, else offset into blobStore
}

func (e entry) compressed() bool { return e.fileSize&1 != 0 }
func (e entry) length() int64    { return e.fileSize >> 1 }

// Store is a window-backed cache of pages read from a seekable source. It
// never holds more than canMap pages resident at once; load requests for a
// range outside the window trigger an eviction pass before the range is
// read in.
type Store struct {
	r   io.ReaderAt
	buf []byte // reusable compressed-page scratch buffer

	pages []entry

	blobStore []byte // canMap * PageSize bytes, round-robin mapped
	mapped    []int  // mapped[i] = pnum resident at slot i, or -1
	canMap    int

	rrCounter int

	// slurped is set when the backing source can't be windowed (e.g. it
	// was never seekable) and every page was decompressed up front.
	slurped bool
}

// NewStore builds a Store over npages logical pages read from r, keeping at
// most canMap of them decompressed in memory at once. canMap must be >= 1.
func NewStore(r io.ReaderAt, npages, canMap int) *Store {
	if canMap < 1 {
		canMap = 1
	}
	if canMap > npages && npages > 0 {
		canMap = npages
	}
	s := &Store{
		r:         r,
		pages:     make([]entry, npages),
		blobStore: make([]byte, canMap*PageSize),
		mapped:    make([]int, canMap),
		canMap:    canMap,
	}
	for i := range s.mapped {
		s.mapped[i] = -1
	}
	for i := range s.pages {
		s.pages[i].mappedAt = -1
	}
	return s
}

// SetPage records where logical page pnum lives on disk: fileOffset is the
// byte offset of its (possibly compressed) body, size is its stored byte
// length, and compressed flags whether it needs LZ decompression.
func (s *Store) SetPage(pnum int, fileOffset int64, size int64, compressed bool) {
	flag := int64(0)
	if compressed {
		flag = 1
	}
	s.pages[pnum] = entry{fileOffset: fileOffset, fileSize: size<<1 | flag, mappedAt: -1}
}

// Page returns the PageSize bytes of logical page pnum, paging it in (and
// evicting others) if necessary. The returned slice is only valid until
// the next call to Page or LoadRange: callers that need it past that point
// must copy it.
func (s *Store) Page(pnum int) ([]byte, error) {
	if err := s.LoadRange(pnum, pnum); err != nil {
		return nil, err
	}
	at := s.pages[pnum].mappedAt
	return s.blobStore[at : at+PageSize], nil
}

// LoadRange ensures every logical page in [pstart, pend] is resident,
// evicting other pages from the window if needed to make room. The
// eviction choice follows the same cost-weighted sliding-window search as
// repopagestore_load_page_range: a free slot costs 0, a slot holding a
// wanted page costs 1, a slot holding a foreign page costs 3. The cheapest
// run of pend-pstart+1 consecutive slots wins and ties go to the first
// such run, except that when every run has the same nonzero cost the
// choice rotates round-robin. Wanted pages that are already resident are
// copied into their slots rather than read again.
func (s *Store) LoadRange(pstart, pend int) error {
	if pstart > pend {
		return nil
	}
	span := pend - pstart + 1
	if span > s.canMap {
		// Can't hold the whole range at once; caller asked for more than
		// the window can fit. Load it in canMap-sized slices.
		for p := pstart; p <= pend; p += s.canMap {
			e := p + s.canMap - 1
			if e > pend {
				e = pend
			}
			if err := s.LoadRange(p, e); err != nil {
				return err
			}
		}
		return nil
	}

	allResident := true
	for p := pstart; p <= pend; p++ {
		if s.pages[p].mappedAt < 0 {
			allResident = false
			break
		}
	}
	if allResident {
		return nil
	}

	ncanmap := s.canMap
	cost := make([]int, ncanmap)
	for i := 0; i < ncanmap; i++ {
		pnum := s.mapped[i]
		switch {
		case pnum < 0:
			cost[i] = 0
		case pnum >= pstart && pnum <= pend:
			cost[i] = 1
		default:
			cost[i] = 3
		}
	}

	bestCost := -1
	best := 0
	sameCost := 0
	windows := ncanmap - span + 1
	for i := 0; i < windows; i++ {
		c := 0
		for j := i; j < i+span; j++ {
			c += cost[j]
		}
		if bestCost < 0 || c < bestCost {
			bestCost = c
			best = i
			sameCost = 1
		} else if c == bestCost {
			sameCost++
		}
		if c == 0 {
			break
		}
	}
	if sameCost == windows {
		best = s.rrCounter % windows
		s.rrCounter++
	}

	// Evict every slot in the chosen window whose page isn't wanted at
	// all; a wanted page sitting in the wrong slot stays for the move below.
	for i := best; i < best+span; i++ {
		pnum := s.mapped[i]
		want := pstart + (i - best)
		if pnum == want {
			continue
		}
		if pnum >= pstart && pnum <= pend {
			continue
		}
		if pnum >= 0 {
			s.pages[pnum].mappedAt = -1
		}
		s.mapped[i] = -1
	}

	for i := best; i < best+span; i++ {
		want := pstart + (i - best)
		if s.mapped[i] == want {
			continue
		}
		if occ := s.mapped[i]; occ >= 0 {
			// A wanted page not yet moved out of this slot; it is read
			// again when its own slot comes up.
			s.pages[occ].mappedAt = -1
			s.mapped[i] = -1
		}
		if s.pages[want].mappedAt >= 0 {
			// Resident elsewhere in the window (can happen when the
			// window shifts by less than its own width): move it.
			oldAt := s.pages[want].mappedAt
			oldSlot := oldAt / PageSize
			copy(s.blobStore[i*PageSize:(i+1)*PageSize], s.blobStore[oldAt:oldAt+PageSize])
			s.mapped[oldSlot] = -1
			s.pages[want].mappedAt = i * PageSize
			s.mapped[i] = want
			continue
		}
		if err := s.readInto(want, i); err != nil {
			return err
		}
		s.mapped[i] = want
	}
	return nil
}

func (s *Store) readInto(pnum, slot int) error {
	e := &s.pages[pnum]
	dest := s.blobStore[slot*PageSize : (slot+1)*PageSize]
	length := e.length()
	if !e.compressed() {
		n, err := s.r.ReadAt(dest[:length], e.fileOffset)
		if err != nil && err != io.EOF {
			return err
		}
		_ = n
		e.mappedAt = slot * PageSize
		return nil
	}
	if cap(s.buf) < int(length) {
		s.buf = make([]byte, length)
	}
	cbuf := s.buf[:length]
	if _, err := s.r.ReadAt(cbuf, e.fileOffset); err != nil && err != io.EOF {
		return err
	}
	n := compress.Decompress(cbuf, dest)
	if n != PageSize && pnum != len(s.pages)-1 {
		return errCorruptPage(pnum, n)
	}
	e.mappedAt = slot * PageSize
	return nil
}

// DisablePaging loads every page at once and stops treating the store as
// windowed; used when the backing source turned out not to be seekable
// (repopagestore_disable_paging slurps everything up front for the same
// reason).
func (s *Store) DisablePaging() error {
	if len(s.pages) == 0 {
		return nil
	}
	if s.canMap < len(s.pages) {
		s.blobStore = make([]byte, len(s.pages)*PageSize)
		s.mapped = make([]int, len(s.pages))
		s.canMap = len(s.pages)
		for i := range s.mapped {
			s.mapped[i] = -1
		}
	}
	s.slurped = true
	return s.LoadRange(0, len(s.pages)-1)
}

type corruptPageError struct {
	pnum, got int
}

func errCorruptPage(pnum, got int) error { return &corruptPageError{pnum, got} }

func (e *corruptPageError) Error() string {
	return "page: decompressed page " + itoa(e.pnum) + " has wrong length " + itoa(e.got)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
