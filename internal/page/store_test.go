package page

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/solv/internal/compress"
)

// writeRawPages lays out npages PageSize-sized pages back to back into a
// single backing buffer, uncompressed, and returns it plus a Store wired
// to read from it with a window of canMap pages.
func writeRawPages(t *testing.T, contents [][]byte, canMap int) (*Store, *bytes.Reader) {
	t.Helper()
	buf := make([]byte, 0, len(contents)*PageSize)
	offsets := make([]int64, len(contents))
	for i, c := range contents {
		offsets[i] = int64(len(buf))
		page := make([]byte, PageSize)
		copy(page, c)
		buf = append(buf, page...)
	}
	r := bytes.NewReader(buf)
	s := NewStore(r, len(contents), canMap)
	for i := range contents {
		s.SetPage(i, offsets[i], PageSize, false)
	}
	return s, r
}

func TestStorePageRoundTrip(t *testing.T) {
	contents := [][]byte{
		bytes.Repeat([]byte("a"), 10),
		bytes.Repeat([]byte("b"), 10),
		bytes.Repeat([]byte("c"), 10),
	}
	s, _ := writeRawPages(t, contents, 2)

	for i, want := range contents {
		got, err := s.Page(i)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(got, want))
	}
}

func TestStoreEvictsWhenWindowExceeded(t *testing.T) {
	contents := [][]byte{
		[]byte("page0"),
		[]byte("page1"),
		[]byte("page2"),
		[]byte("page3"),
	}
	s, _ := writeRawPages(t, contents, 1)

	for round := 0; round < 2; round++ {
		for i, want := range contents {
			got, err := s.Page(i)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(got, want), "round %d page %d", round, i)
		}
	}
}

func TestStoreLoadRangeKeepsResidentPagesCheap(t *testing.T) {
	contents := [][]byte{
		[]byte("p0"), []byte("p1"), []byte("p2"), []byte("p3"),
	}
	s, _ := writeRawPages(t, contents, 3)

	require.NoError(t, s.LoadRange(0, 2))
	got0, err := s.Page(0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(got0, []byte("p0")))

	// Loading {1,2,3} should only need to evict page 0's slot: 1 and 2 are
	// already resident (cost 1 each in the window search) and are copied
	// into their new slots, so only page 3 is read.
	require.NoError(t, s.LoadRange(1, 3))
	for i, want := range contents[1:] {
		got, err := s.Page(i + 1)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(got, want))
	}
}

func TestStoreCompressedPage(t *testing.T) {
	raw := bytes.Repeat([]byte("hello world "), 3000)[:PageSize]
	cbuf := make([]byte, PageSize+1024)
	n := compress.Compress(raw, cbuf)
	require.Greater(t, n, 0)

	r := bytes.NewReader(cbuf[:n])
	s := NewStore(r, 1, 1)
	s.SetPage(0, 0, int64(n), true)

	got, err := s.Page(0)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestStoreDisablePagingSlurpsEverything(t *testing.T) {
	contents := [][]byte{
		[]byte("x0"), []byte("x1"), []byte("x2"),
	}
	s, _ := writeRawPages(t, contents, 1)
	require.NoError(t, s.DisablePaging())

	for i, want := range contents {
		got, err := s.Page(i)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(got, want))
	}
}
