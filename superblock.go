package blockfat

import (
	"fmt"

	"github.com/aligator/blockfat/checkpoint"
)

// Validate checks the superblock against itself and the capacity of the device it was
// read from.
func (sb *Superblock) Validate(deviceBlocks int) error {
	if string(sb.Signature[:]) != Signature {
		return checkpoint.Wrap(fmt.Errorf("bad signature %q, want %q", sb.Signature[:], Signature), ErrValidation)
	}

	if int(sb.BlockCount) != deviceBlocks {
		return checkpoint.Wrap(fmt.Errorf("superblock declares %v blocks but the device has %v", sb.BlockCount, deviceBlocks), ErrValidation)
	}

	if sb.FATBlockCount == 0 {
		return checkpoint.Wrap(fmt.Errorf("no FAT blocks"), ErrValidation)
	}

	if int(sb.FATBlockCount)*EntriesPerFATBlock < int(sb.DataBlockCount) {
		return checkpoint.Wrap(fmt.Errorf("%v FAT blocks cannot address %v data blocks", sb.FATBlockCount, sb.DataBlockCount), ErrValidation)
	}

	// Data block indexes share the value range with EOC.
	if sb.DataBlockCount == 0 || sb.DataBlockCount >= EOC {
		return checkpoint.Wrap(fmt.Errorf("invalid data block count %v", sb.DataBlockCount), ErrValidation)
	}

	// The FAT always starts at block 1, so the root block and the data region have to
	// follow it.
	if int(sb.RootBlock) <= int(sb.FATBlockCount) {
		return checkpoint.Wrap(fmt.Errorf("root block %v overlaps the FAT", sb.RootBlock), ErrValidation)
	}

	if sb.FirstDataBlock <= sb.RootBlock {
		return checkpoint.Wrap(fmt.Errorf("data region at %v does not follow the root block %v", sb.FirstDataBlock, sb.RootBlock), ErrValidation)
	}

	if int(sb.FirstDataBlock)+int(sb.DataBlockCount) > int(sb.BlockCount) {
		return checkpoint.Wrap(fmt.Errorf("data region [%v, %v) exceeds %v blocks", sb.FirstDataBlock, int(sb.FirstDataBlock)+int(sb.DataBlockCount), sb.BlockCount), ErrValidation)
	}

	return nil
}

// geometry computes the superblock of a fresh volume with the given number of blocks:
// the FAT starts at block 1, the root block follows it and the remaining blocks are
// data blocks.
func geometry(blocks int) (Superblock, error) {
	// superblock, one FAT block, root block and one data block
	if blocks < 4 || blocks > 0xFFFF {
		return Superblock{}, checkpoint.Wrap(fmt.Errorf("cannot format %v blocks", blocks), ErrValidation)
	}

	fatBlocks := 1
	for blocks-2-fatBlocks > fatBlocks*EntriesPerFATBlock {
		fatBlocks++
	}

	sb := Superblock{
		BlockCount:     uint16(blocks),
		RootBlock:      uint16(fatBlocks + 1),
		FirstDataBlock: uint16(fatBlocks + 2),
		DataBlockCount: uint16(blocks - 2 - fatBlocks),
		FATBlockCount:  uint8(fatBlocks),
	}
	copy(sb.Signature[:], Signature)

	return sb, nil
}
