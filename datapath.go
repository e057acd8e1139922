package blockfat

import (
	"errors"
	"fmt"

	"github.com/aligator/blockfat/checkpoint"
	"go.uber.org/zap"
)

// Read reads up to len(p) bytes at the offset of fd and advances the offset by the
// number of bytes read. At the end of the file it returns 0 and no error; a short
// read is not an error either.
func (fs *Fs) Read(fd FD, p []byte) (int, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	d, err := fs.descriptor(fd)
	if err != nil {
		return 0, err
	}

	n, err := fs.readAt(&fs.root[d.entry], d.offset, p)
	d.offset += int64(n)
	return n, err
}

// ReadAt reads like Read but at the given offset and without moving the offset of fd.
func (fs *Fs) ReadAt(fd FD, p []byte, offset int64) (int, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	d, err := fs.descriptor(fd)
	if err != nil {
		return 0, err
	}

	if offset < 0 {
		return 0, checkpoint.Wrap(fmt.Errorf("negative offset %v", offset), ErrBounds)
	}

	return fs.readAt(&fs.root[d.entry], offset, p)
}

// Write writes p at the offset of fd, growing the file as needed, and advances the
// offset by the number of bytes written. If the volume runs out of blocks it stops
// early and returns the short count without an error; everything written up to
// that point is kept.
func (fs *Fs) Write(fd FD, p []byte) (int, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	d, err := fs.descriptor(fd)
	if err != nil {
		return 0, err
	}

	n, err := fs.writeAt(d.entry, d.offset, p)
	d.offset += int64(n)
	return n, err
}

// WriteAt writes like Write but at the given offset and without moving the offset of
// fd. The offset may point at most to the end of the file.
func (fs *Fs) WriteAt(fd FD, p []byte, offset int64) (int, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	d, err := fs.descriptor(fd)
	if err != nil {
		return 0, err
	}

	if size := int64(fs.root[d.entry].Size); offset < 0 || offset > size {
		return 0, checkpoint.Wrap(fmt.Errorf("offset %v outside of [0, %v]", offset, size), ErrBounds)
	}

	return fs.writeAt(d.entry, offset, p)
}

func errShortChain(entry *dirEntry) error {
	return checkpoint.Wrap(fmt.Errorf("chain of %q is shorter than its size %v", entry.name(), entry.Size), ErrValidation)
}

func (fs *Fs) readAt(entry *dirEntry, offset int64, p []byte) (int, error) {
	size := int64(entry.Size)
	if offset >= size || len(p) == 0 {
		return 0, nil
	}

	count := len(p)
	if int64(count) > size-offset {
		count = int(size - offset)
	}

	block, _, err := fs.fat.nth(entry.FirstBlock, int(offset/BlockSize))
	if err != nil {
		return 0, err
	}
	if block == EOC {
		return 0, errShortChain(entry)
	}

	var bounce [BlockSize]byte
	inBlock := int(offset % BlockSize)
	read := 0
	for {
		n := min(BlockSize-inBlock, count-read)
		if n == BlockSize {
			// Whole blocks go straight into p.
			if err := fs.device.ReadBlock(fs.dataBlock(block), p[read:read+BlockSize]); err != nil {
				return read, checkpoint.Wrap(err, ErrIO)
			}
		} else {
			if err := fs.device.ReadBlock(fs.dataBlock(block), bounce[:]); err != nil {
				return read, checkpoint.Wrap(err, ErrIO)
			}
			copy(p[read:read+n], bounce[inBlock:inBlock+n])
		}

		read += n
		inBlock = 0
		if read == count {
			return read, nil
		}

		block, err = fs.fat.next(block)
		if err != nil {
			return read, err
		}
		if block == EOC {
			return read, errShortChain(entry)
		}
	}
}

func (fs *Fs) writeAt(slot int, offset int64, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	entry := &fs.root[slot]
	written, writeErr := fs.writeChain(entry, offset, p)

	if end := offset + int64(written); end > int64(entry.Size) {
		entry.Size = uint32(end)
	}

	if written < len(p) && writeErr == nil {
		Logger().Warn("short write, volume is full",
			zap.String("name", entry.name()),
			zap.Int("requested", len(p)),
			zap.Int("written", written))
	}

	if written > 0 || fs.fat.isDirty() {
		if err := fs.persist(); err != nil && writeErr == nil {
			writeErr = err
		}
	}

	return written, writeErr
}

// writeChain writes p into the chain of entry starting at offset and allocates new
// blocks as it goes. It returns the number of bytes written. Running out of blocks
// is not an error.
func (fs *Fs) writeChain(entry *dirEntry, offset int64, p []byte) (int, error) {
	index := int(offset / BlockSize)
	block, last, err := fs.fat.nth(entry.FirstBlock, index)
	if err != nil {
		return 0, err
	}

	// tail is the block in front of a freshly allocated block, EOC if the fresh block
	// is the first one of the file.
	tail := EOC
	fresh := false
	if block == EOC {
		// The offset is at most the size, so the write starts right behind the chain.
		if length, err := fs.fat.chainLength(entry.FirstBlock); err != nil {
			return 0, err
		} else if length != index {
			return 0, errShortChain(entry)
		}

		block, err = fs.fat.allocate()
		if errors.Is(err, ErrCapacity) {
			return 0, nil
		}
		if last == EOC {
			entry.FirstBlock = block
		} else {
			fs.fat.extend(last, block)
		}
		tail, fresh = last, true
	}

	// release unlinks the fresh block if nothing could be written into it, so the chain
	// keeps matching the size.
	release := func() {
		if !fresh {
			return
		}
		if tail == EOC {
			entry.FirstBlock = EOC
		} else {
			fs.fat.set(tail, EOC)
		}
		fs.fat.set(block, FREE)
	}

	var bounce [BlockSize]byte
	inBlock := int(offset % BlockSize)
	written := 0
	for {
		n := min(BlockSize-inBlock, len(p)-written)
		buf := bounce[:]
		if n == BlockSize {
			buf = p[written : written+BlockSize]
		} else {
			if fresh {
				bounce = [BlockSize]byte{}
			} else if err := fs.device.ReadBlock(fs.dataBlock(block), buf); err != nil {
				return written, checkpoint.Wrap(err, ErrIO)
			}
			copy(buf[inBlock:], p[written:written+n])
		}

		if err := fs.device.WriteBlock(fs.dataBlock(block), buf); err != nil {
			release()
			return written, checkpoint.Wrap(err, ErrIO)
		}

		written += n
		inBlock = 0
		if written == len(p) {
			return written, nil
		}

		next, err := fs.fat.next(block)
		if err != nil {
			return written, err
		}

		if next == EOC {
			next, err = fs.fat.allocate()
			if errors.Is(err, ErrCapacity) {
				return written, nil
			}
			fs.fat.extend(block, next)
			tail, fresh = block, true
		} else {
			fresh = false
		}
		block = next
	}
}
