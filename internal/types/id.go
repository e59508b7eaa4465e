// Package types holds the identifier and wire-format constants shared by
// the pool, repo, repodata, writer and reader packages.
package types

// Id is a dense, process-local identifier. Bit 31 set means the id names a
// relation; the remaining bits are the rel pool index itself, not offset
// by the string pool's size. Values 0 and 1 are reserved.
type Id uint32

const (
	IdNull  Id = 0
	IdEmpty Id = 1 // the empty string

	relBit Id = 1 << 31
)

// IsRel reports whether id names a relation rather than a plain string.
func (id Id) IsRel() bool { return id&relBit != 0 }

// MakeRelId tags a rel-pool index as a relation id.
func MakeRelId(idx uint32) Id { return Id(idx) | relBit }

// RelIndex strips the relation tag, returning the raw rel-pool index.
func (id Id) RelIndex() uint32 { return uint32(id &^ relBit) }

// Well-known keyname ids. These must keep these exact values across the
// wire format: readers written against one version of this prelude must
// keep working against a pool that used a different one.
const (
	IdNullId Id = 0
	IdEmptyS Id = 1

	SolvableName         Id = 3
	SolvableArch         Id = 4
	SolvableEvr          Id = 5
	SolvableVendor       Id = 6
	SolvableProvides     Id = 7
	SolvableObsoletes    Id = 8
	SolvableConflicts    Id = 9
	SolvableRequires     Id = 10
	SolvableRecommends   Id = 11
	SolvableSuggests     Id = 12
	SolvableSupplements  Id = 13
	SolvableEnhances     Id = 14
	SolvablePrereqMarker Id = 15
	SolvableFileMarker   Id = 16

	ArchSrc   Id = 17
	ArchNoSrc Id = 18

	// NumInternalIds is the size of the built-in keyname prelude; user ids
	// start here.
	NumInternalIds = 19
)

// RelFlags is the bitmask attached to a rel-pool triple.
type RelFlags uint8

// Comparison bits, combinable (e.g. GT|EQ means >=).
const (
	RelGT RelFlags = 1 << iota
	RelEQ
	RelLT
)

// Logical connective flags. These share the same byte-sized field as the
// comparison bits but are mutually exclusive with them in practice: a rel
// is either a version comparison or a logical combinator.
const (
	RelAND RelFlags = iota + 8
	RelOR
	RelWITH
	RelWITHOUT
	RelCOND
	RelUNLESS
	RelELSE
	RelNAMESPACE
	RelARCH
	RelMULTIARCH
	RelFILECONFLICT
	RelCOMPAT
	RelKIND
	RelCONDA
	RelERROR
)

// Page size for the vertical-data blob, fixed by the wire format.
const PageSize = 1 << 15

// SOLV file format constants.
const (
	Magic0, Magic1, Magic2, Magic3 = 'S', 'O', 'L', 'V'

	Version8 = 8
	Version9 = 9

	FlagPrefixPool  = 1 << 0
	FlagSizeBytes   = 1 << 1
	FlagUserdata    = 1 << 2
	FlagIdArrayBlk  = 1 << 3
)

// Repokey storage classes.
type KeyStorage uint8

const (
	KeyStorageDropped KeyStorage = iota
	KeyStorageSolvable
	KeyStorageIncore
	KeyStorageVerticalOffset
	KeyStorageIdArrayBlock
)

// Repokey describes one attribute a repodata can carry: its name,
// value type, a type-dependent size (byte length for fixed-width types,
// 0 otherwise), and which storage class holds its values.
type Repokey struct {
	Name    Id
	Type    Id // a KeyType value, stored as an Id so it can be interned on the wire like any other key field
	Size    uint32
	Storage KeyStorage
}

// Repokey value types.
type KeyType uint8

const (
	TypeVoid KeyType = iota
	TypeConstant
	TypeConstantId
	TypeId
	TypeIdArray
	TypeRelIdArray
	TypeStr
	TypeU32
	TypeNum
	TypeMd5
	TypeSha1
	TypeSha224
	TypeSha256
	TypeSha384
	TypeSha512
	TypeDir
	TypeDirNumNumArray
	TypeDirStrArray
	TypeBinary
	TypeFixArray
	TypeFlexArray
	TypeDeleted
)

// KeyValue is one decoded attribute value handed to a search or
// dataiterator callback. Which field is meaningful depends on the
// originating Repokey's Type.
type KeyValue struct {
	ID  Id
	Str string
	Num uint64
	Ids []Id

	// Dir/DirStrArray payloads carry a dir id plus the per-entry string.
	DirID Id
}
