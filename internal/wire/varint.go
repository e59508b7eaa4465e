// Package wire holds the varint and id-array encodings shared by the
// writer and reader, so both sides of a round trip use byte-identical
// routines. The schemes (7-bit payload MSB-first varints, id-array
// varints with a not-last flag in bit 6) are exactly repo_write.c's
// data_addid/data_addideof and repopack.h's decoding macros.
package wire

import solverrors "github.com/standardbeagle/solv/internal/errors"

// AppendVarint appends v to buf using the standard MSB-first, 7-bit
// payload, high-continuation-bit varint encoding used throughout the
// wire format for counts, ids and NUM values.
func AppendVarint(buf []byte, v uint32) []byte {
	var tmp [5]byte
	n := 0
	tmp[n] = byte(v & 0x7f)
	v >>= 7
	n++
	for v != 0 {
		tmp[n] = byte(v&0x7f) | 0x80
		v >>= 7
		n++
	}
	for i := n - 1; i >= 0; i-- {
		buf = append(buf, tmp[i])
	}
	return buf
}

// ReadVarint decodes a varint starting at buf[off], returning its value
// and the offset just past it.
func ReadVarint(buf []byte, off int) (uint32, int, error) {
	var v uint32
	for i := 0; i < 5; i++ {
		if off >= len(buf) {
			return 0, off, solverrors.Malformed("wire.ReadVarint", "truncated varint")
		}
		b := buf[off]
		off++
		v = v<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			return v, off, nil
		}
	}
	return 0, off, solverrors.Malformed("wire.ReadVarint", "varint too long")
}

// AppendIdArray appends a run of ids using the id-array varint scheme: the
// first byte of each entry carries the low 6 payload bits plus a "more
// elements in this array follow" flag in bit 6, with bit 7 set when 7-bit
// continuation bytes follow. Those carry the remaining bits least
// significant group first, the reverse of AppendVarint's order, each with
// bit 7 set if another byte follows.
func AppendIdArray(buf []byte, ids []uint32) []byte {
	for i, id := range ids {
		notLast := i != len(ids)-1
		buf = appendIdArrayEntry(buf, id, notLast)
	}
	return buf
}

func appendIdArrayEntry(buf []byte, v uint32, notLast bool) []byte {
	first := byte(v & 0x3f)
	if notLast {
		first |= 0x40
	}
	rest := v >> 6
	if rest == 0 {
		return append(buf, first)
	}
	first |= 0x80
	buf = append(buf, first)
	for rest != 0 {
		b := byte(rest & 0x7f)
		rest >>= 7
		if rest != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// ReadIdArray decodes a one-or-more run of ids encoded by AppendIdArray,
// stopping after the entry whose not-last flag is clear.
func ReadIdArray(buf []byte, off int) ([]uint32, int, error) {
	var ids []uint32
	for {
		v, more, next, err := readIdArrayEntry(buf, off)
		if err != nil {
			return nil, off, err
		}
		off = next
		ids = append(ids, v)
		if !more {
			return ids, off, nil
		}
	}
}

func readIdArrayEntry(buf []byte, off int) (uint32, bool, int, error) {
	if off >= len(buf) {
		return 0, false, off, solverrors.Malformed("wire.ReadIdArray", "truncated id-array entry")
	}
	first := buf[off]
	off++
	v := uint32(first & 0x3f)
	notLast := first&0x40 != 0
	if first&0x80 == 0 {
		return v, notLast, off, nil
	}
	shift := uint(6)
	for {
		if off >= len(buf) {
			return 0, false, off, solverrors.Malformed("wire.ReadIdArray", "truncated wide id-array entry")
		}
		b := buf[off]
		off++
		v |= uint32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			return v, notLast, off, nil
		}
	}
}
