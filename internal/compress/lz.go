// Package compress implements the byte-oriented LZ77-style codec used to
// pack vertical-data pages before they hit disk. The wire format and the
// encoder's match-selection heuristics are a direct port of libsolv's
// fastlz.c: same opcode layout, same hash function, same 12-try chain
// search, so pages written by one implementation decompress correctly
// under the other.
package compress

const (
	hashBits = 16
	hashSize = 1 << hashBits
	hashMask = hashSize - 1

	maxChainTries = 12
)

func hash3(a, b, c byte) uint32 {
	h := uint32(a) | uint32(b)<<8 | uint32(c)<<16
	h = (h ^ (h << 5) ^ (h >> 5)) - h*5
	return h & hashMask
}

// Compress packs in into out, returning the number of bytes written, or 0
// if the result would not fit in out (the caller should store the page
// raw in that case — this mirrors compress_buf's "0 means incompressible"
// contract).
func Compress(in []byte, out []byte) int {
	inLen := len(in)
	outLen := len(out)
	oo := 0
	io := 0

	htab := make([]int32, hashSize)
	for i := range htab {
		htab[i] = -1
	}
	hnext := make([]int32, inLen)

	litofs := 0 // 0 means "no open literal run"; otherwise io+1 of the run start

	emitLiteralRun := func() bool {
		if litofs == 0 {
			return true
		}
		lo := litofs - 1
		litlen := io - lo
		for litlen > 0 {
			easy := 0
			for easy < litlen && in[lo+easy] < 0x80 {
				easy++
			}
			if easy > 0 {
				if oo+easy >= outLen {
					return false
				}
				copy(out[oo:], in[lo:lo+easy])
				lo += easy
				oo += easy
				litlen -= easy
				if litlen == 0 {
					break
				}
			}
			if litlen <= 32 {
				if oo+1+litlen >= outLen {
					return false
				}
				out[oo] = 0x80 | byte(litlen-1)
				oo++
				copy(out[oo:], in[lo:lo+litlen])
				oo += litlen
				break
			}
			if oo+1+32 >= outLen {
				return false
			}
			out[oo] = 0x80 | 31
			oo++
			copy(out[oo:], in[lo:lo+32])
			oo += 32
			lo += 32
			litlen -= 32
		}
		litofs = 0
		return true
	}

	for io+2 < inLen {
		h := hash3(in[io], in[io+1], in[io+2])
		try := htab[h]
		hnext[io] = htab[h]
		htab[h] = int32(io)

		mlen, mofs := 0, 0
		tries := 0
		for try != -1 && tries < maxChainTries {
			t := int(try)
			if t < io && in[t] == in[io] && in[t+1] == in[io+1] {
				mlen, mofs = 2, io-t-1
				break
			}
			try = hnext[t]
			tries++
		}
		for try != -1 && tries < maxChainTries {
			t := int(try)
			if t < io && in[t+mlen] == in[io+mlen] {
				if !bytesEqual(in[t:t+mlen], in[io:io+mlen]) {
					try = hnext[t]
					tries++
					continue
				}
				thisLen := mlen + 1
				for io+thisLen < inLen && in[t+thisLen] == in[io+thisLen] {
					thisLen++
				}
				thisOfs := io - t - 1
				mlen, mofs = thisLen, thisOfs
				if io+mlen >= inLen {
					break
				}
			}
			try = hnext[t]
			tries++
		}

		if mlen > 0 {
			switch {
			case mlen == 2 && (litofs != 0 || mofs >= 1024):
				mlen = 0
			case mofs >= 65536:
				if mlen >= 2048+5 {
					mlen = 2047 + 5
				} else if mlen < 5 {
					mlen = 0
				}
			case mlen < 3:
				mlen = 0
			case mlen >= 2048+19:
				mlen = 2047 + 19
			}
			if mlen != 0 && mlen < 2048+5 && io+3 < inLen {
				h2 := hash3(in[io+1], in[io+2], in[io+3])
				try2 := htab[h2]
				if try2 != -1 && int(try2) < io+1 && in[try2] == in[io+1] && in[try2+1] == in[io+2] {
					thisLen := 2
					for io+1+thisLen < inLen && in[int(try2)+thisLen] == in[io+1+thisLen] {
						thisLen++
					}
					if thisLen >= mlen {
						mlen = 0
					}
				}
			}
		}

		if mlen == 0 {
			if litofs == 0 {
				litofs = io + 1
			}
			io++
			continue
		}

		if !emitLiteralRun() {
			return 0
		}

		switch {
		case mlen >= 2 && mlen <= 9 && mofs < 1024:
			if oo+2 >= outLen {
				return 0
			}
			out[oo] = 0xa0 | byte((mofs&0x300)>>5) | byte(mlen-2)
			out[oo+1] = byte(mofs & 0xff)
			oo += 2
		case mlen >= 10 && mlen <= 41 && mofs < 256:
			if oo+2 >= outLen {
				return 0
			}
			out[oo] = 0xc0 | byte(mlen-10)
			out[oo+1] = byte(mofs)
			oo += 2
		case mofs >= 65536:
			if oo+5 >= outLen {
				return 0
			}
			out[oo] = 0xf8 | byte((mlen-5)>>8)
			out[oo+1] = byte((mlen - 5) & 0xff)
			out[oo+2] = byte(mofs & 0xff)
			out[oo+3] = byte((mofs >> 8) & 0xff)
			out[oo+4] = byte(mofs >> 16)
			oo += 5
		case mlen >= 3 && mlen <= 18:
			if oo+3 >= outLen {
				return 0
			}
			out[oo] = 0xe0 | byte(mlen-3)
			out[oo+1] = byte(mofs & 0xff)
			out[oo+2] = byte(mofs >> 8)
			oo += 3
		default:
			if oo+4 >= outLen {
				return 0
			}
			out[oo] = 0xf0 | byte((mlen-19)>>8)
			out[oo+1] = byte((mlen - 19) & 0xff)
			out[oo+2] = byte(mofs & 0xff)
			out[oo+3] = byte(mofs >> 8)
			oo += 4
		}

		mlen--
		io++
		for mlen > 0 {
			if io+2 < inLen {
				h := hash3(in[io], in[io+1], in[io+2])
				hnext[io] = htab[h]
				htab[h] = int32(io)
			}
			io++
			mlen--
		}
	}

	if io < inLen && litofs == 0 {
		litofs = io + 1
	}
	io = inLen
	if !emitLiteralRun() {
		return 0
	}
	return oo
}

func bytesEqual(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Decompress expands in into out, which must be large enough to hold the
// uncompressed page (PAGESIZE in the page store's case). It returns the
// number of bytes written. The decoder performs no bounds checking beyond
// what the caller's buffer size provides, mirroring the original's
// "caller supplies a fixed PAGESIZE buffer" contract.
func Decompress(in []byte, out []byte) int {
	oi := 0
	ii := 0
	for ii < len(in) {
		first := int(in[ii])
		ii++
		switch first >> 4 {
		case 0, 1, 2, 3, 4, 5, 6, 7:
			out[oi] = byte(first)
			oi++
			continue
		case 8, 9:
			l := first & 31
			for i := 0; i <= l; i++ {
				out[oi] = in[ii]
				oi++
				ii++
			}
			continue
		case 10, 11:
			o := (first & (3 << 3)) << 5
			o |= int(in[ii])
			ii++
			length := (first & 7) + 2
			copyBack(out, &oi, o+1, length)
			continue
		case 12, 13:
			o := int(in[ii])
			ii++
			length := (first & 31) + 10
			copyBack(out, &oi, o+1, length)
			continue
		case 14:
			o := int(in[ii]) | int(in[ii+1])<<8
			ii += 2
			length := (first & 15) + 3
			copyBack(out, &oi, o+1, length)
			continue
		default: // 15
			f := first & 15
			var length, o int
			if f >= 8 {
				length = ((f-8)<<8 | int(in[ii])) + 5
				o = int(in[ii+1]) | int(in[ii+2])<<8 | int(in[ii+3])<<16
				ii += 4
			} else {
				length = (f<<8 | int(in[ii])) + 19
				o = int(in[ii+1]) | int(in[ii+2])<<8
				ii += 3
			}
			copyBack(out, &oi, o+1, length)
		}
	}
	return oi
}

// copyBack performs the RLE-style backreference copy; overlapping copies
// are intentional (a length-1 offset is a run of the previous byte).
func copyBack(out []byte, oi *int, offset, length int) {
	src := *oi - offset
	for i := 0; i < length; i++ {
		out[*oi] = out[src]
		*oi++
		src++
	}
}
