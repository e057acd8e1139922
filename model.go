// File model contains the records stored on the volume and their byte exact
// little endian encoding. Nothing here relies on Go struct layout.

package blockfat

import (
	"bytes"
	"encoding/binary"
)

// Signature identifies a volume. It is stored in the first 8 bytes of block 0.
const Signature = "ECS150FS"

const (
	// FilenameLen is the size of the name field including the terminating zero byte.
	FilenameLen = 16
	// MaxFiles is the number of entries in the root directory.
	MaxFiles = 128
	// MaxOpenFiles is the number of slots in the open file table.
	MaxOpenFiles = 32
	// EntriesPerFATBlock is the number of 2 byte FAT entries in one block.
	EntriesPerFATBlock = BlockSize / 2

	dirEntrySize = BlockSize / MaxFiles
)

// Superblock describes the geometry of a volume.
type Superblock struct {
	Signature      [8]byte
	BlockCount     uint16
	RootBlock      uint16
	FirstDataBlock uint16
	DataBlockCount uint16
	FATBlockCount  uint8
}

// DecodeSuperblock reads a Superblock from block 0. It does not validate anything.
func DecodeSuperblock(b *[BlockSize]byte) Superblock {
	var sb Superblock
	copy(sb.Signature[:], b[0:8])
	sb.BlockCount = binary.LittleEndian.Uint16(b[8:])
	sb.RootBlock = binary.LittleEndian.Uint16(b[10:])
	sb.FirstDataBlock = binary.LittleEndian.Uint16(b[12:])
	sb.DataBlockCount = binary.LittleEndian.Uint16(b[14:])
	sb.FATBlockCount = b[16]
	return sb
}

// Encode writes the superblock into b. The padding is zeroed.
func (sb *Superblock) Encode(b *[BlockSize]byte) {
	*b = [BlockSize]byte{}
	copy(b[0:8], sb.Signature[:])
	binary.LittleEndian.PutUint16(b[8:], sb.BlockCount)
	binary.LittleEndian.PutUint16(b[10:], sb.RootBlock)
	binary.LittleEndian.PutUint16(b[12:], sb.FirstDataBlock)
	binary.LittleEndian.PutUint16(b[14:], sb.DataBlockCount)
	b[16] = sb.FATBlockCount
}

// dirEntry is one slot of the root directory.
// An empty name marks a free slot.
type dirEntry struct {
	Name       [FilenameLen]byte
	Size       uint32
	FirstBlock uint16
}

func (e *dirEntry) free() bool {
	return e.Name[0] == 0
}

func (e *dirEntry) name() string {
	if i := bytes.IndexByte(e.Name[:], 0); i >= 0 {
		return string(e.Name[:i])
	}
	return string(e.Name[:])
}

func (e *dirEntry) setName(name string) {
	e.Name = [FilenameLen]byte{}
	copy(e.Name[:FilenameLen-1], name)
}

func (e *dirEntry) clear() {
	*e = dirEntry{FirstBlock: EOC}
}

func decodeDirEntry(b []byte) dirEntry {
	var e dirEntry
	copy(e.Name[:], b[0:FilenameLen])
	e.Size = binary.LittleEndian.Uint32(b[16:])
	e.FirstBlock = binary.LittleEndian.Uint16(b[20:])
	return e
}

func (e *dirEntry) encode(b []byte) {
	copy(b[0:FilenameLen], e.Name[:])
	binary.LittleEndian.PutUint32(b[16:], e.Size)
	binary.LittleEndian.PutUint16(b[20:], e.FirstBlock)
	for i := 22; i < dirEntrySize; i++ {
		b[i] = 0
	}
}
