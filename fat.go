package blockfat

import (
	"encoding/binary"
	"fmt"

	"github.com/aligator/blockfat/checkpoint"
)

const (
	// FREE marks an unused data block.
	FREE uint16 = 0
	// EOC terminates a chain. It is also the first block of an empty file.
	EOC uint16 = 0xFFFF
)

// fat is the in memory allocation table. It has one entry per data block, each entry
// holds FREE, EOC or the index of the next block of the same chain.
// Entry 0 is reserved and always EOC.
type fat struct {
	entries []uint16
	// dirty marks the FAT blocks changed since the last flush.
	dirty []bool
}

func newFAT(dataBlocks int, fatBlocks int) *fat {
	f := &fat{
		entries: make([]uint16, dataBlocks),
		dirty:   make([]bool, fatBlocks),
	}
	f.entries[0] = EOC
	return f
}

// decodeBlock loads the FAT block number i (counted from the first FAT block).
// Entries beyond the data block count are ignored.
func (f *fat) decodeBlock(i int, b *[BlockSize]byte) {
	first := i * EntriesPerFATBlock
	for j := 0; j < EntriesPerFATBlock && first+j < len(f.entries); j++ {
		f.entries[first+j] = binary.LittleEndian.Uint16(b[j*2:])
	}
}

// encodeBlock stores the FAT block number i into b. Entries beyond the data block
// count are written as FREE.
func (f *fat) encodeBlock(i int, b *[BlockSize]byte) {
	*b = [BlockSize]byte{}
	first := i * EntriesPerFATBlock
	for j := 0; j < EntriesPerFATBlock && first+j < len(f.entries); j++ {
		binary.LittleEndian.PutUint16(b[j*2:], f.entries[first+j])
	}
}

func (f *fat) set(index uint16, value uint16) {
	f.entries[index] = value
	f.dirty[int(index)/EntriesPerFATBlock] = true
}

func (f *fat) valid(index uint16) bool {
	return index != EOC && index != 0 && int(index) < len(f.entries)
}

// allocate takes the first free block and terminates it as a chain of one block.
func (f *fat) allocate() (uint16, error) {
	for i := 1; i < len(f.entries); i++ {
		if f.entries[i] == FREE {
			f.set(uint16(i), EOC)
			return uint16(i), nil
		}
	}

	return EOC, checkpoint.Wrap(fmt.Errorf("all %v data blocks are in use", len(f.entries)-1), ErrCapacity)
}

// extend links next behind tail and terminates the chain at next.
func (f *fat) extend(tail uint16, next uint16) {
	f.set(tail, next)
	f.set(next, EOC)
}

// next returns the block following index in its chain.
func (f *fat) next(index uint16) (uint16, error) {
	if !f.valid(index) {
		return EOC, checkpoint.Wrap(fmt.Errorf("block %v is not a data block", index), ErrValidation)
	}

	next := f.entries[index]
	if next != EOC && !f.valid(next) {
		return EOC, checkpoint.Wrap(fmt.Errorf("broken chain: block %v links to %v", index, next), ErrValidation)
	}
	return next, nil
}

// walk calls fn for every block of the chain starting at head. It stops early if fn
// returns false. A chain longer than the table has a cycle.
func (f *fat) walk(head uint16, fn func(n int, block uint16) bool) error {
	block := head
	for n := 0; block != EOC; n++ {
		if n >= len(f.entries) {
			return checkpoint.Wrap(fmt.Errorf("chain starting at %v has a cycle", head), ErrValidation)
		}

		next, err := f.next(block)
		if err != nil {
			return err
		}

		if !fn(n, block) {
			return nil
		}
		block = next
	}
	return nil
}

// free releases every block of the chain starting at head. EOC as head is an empty
// chain and does nothing.
func (f *fat) free(head uint16) error {
	var blocks []uint16
	if err := f.walk(head, func(_ int, block uint16) bool {
		blocks = append(blocks, block)
		return true
	}); err != nil {
		return err
	}

	// Only free after the whole chain is known to be sound.
	for _, block := range blocks {
		f.set(block, FREE)
	}
	return nil
}

// chainLength counts the blocks of the chain starting at head.
func (f *fat) chainLength(head uint16) (int, error) {
	length := 0
	err := f.walk(head, func(n int, _ uint16) bool {
		length = n + 1
		return true
	})
	return length, err
}

// nth returns the n-th block (counted from 0) of the chain starting at head together
// with the last block visited. If the chain is shorter, block is EOC and last is the
// tail of the chain (EOC for an empty chain).
func (f *fat) nth(head uint16, n int) (block uint16, last uint16, err error) {
	block, last = EOC, EOC
	err = f.walk(head, func(i int, b uint16) bool {
		last = b
		if i == n {
			block = b
			return false
		}
		return true
	})
	if err != nil {
		return EOC, EOC, err
	}
	return block, last, nil
}

func (f *fat) freeCount() int {
	count := 0
	for _, e := range f.entries[1:] {
		if e == FREE {
			count++
		}
	}
	return count
}

func (f *fat) isDirty() bool {
	for _, dirty := range f.dirty {
		if dirty {
			return true
		}
	}
	return false
}
