package blockfat

import (
	"fmt"

	"github.com/aligator/blockfat/checkpoint"
)

// FD identifies an open file of a Fs.
type FD int

// descriptor is a slot of the open file table.
type descriptor struct {
	open bool
	// entry is the root directory slot of the file. Entries never move and an entry
	// cannot be deleted while it is referenced here.
	entry  int
	offset int64
}

// Open returns a new descriptor for name positioned at offset 0. A file may be open
// through several descriptors at once, each with its own offset.
func (fs *Fs) Open(name string) (FD, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkMounted(); err != nil {
		return -1, err
	}

	slot, err := fs.find(name)
	if err != nil {
		return -1, err
	}

	for i := range fs.files {
		if fs.files[i].open {
			continue
		}

		fs.files[i] = descriptor{
			open:  true,
			entry: slot,
		}
		return FD(i), nil
	}

	return -1, checkpoint.Wrap(fmt.Errorf("all %v descriptors are in use", MaxOpenFiles), ErrCapacity)
}

// Close releases fd.
func (fs *Fs) Close(fd FD) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	d, err := fs.descriptor(fd)
	if err != nil {
		return err
	}

	*d = descriptor{}
	return nil
}

// Stat returns the current size of the file behind fd.
func (fs *Fs) Stat(fd FD) (int64, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	d, err := fs.descriptor(fd)
	if err != nil {
		return 0, err
	}

	return int64(fs.root[d.entry].Size), nil
}

// Lseek moves the offset of fd. The offset may point at most to the end of the file.
func (fs *Fs) Lseek(fd FD, offset int64) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	d, err := fs.descriptor(fd)
	if err != nil {
		return err
	}

	if size := int64(fs.root[d.entry].Size); offset < 0 || offset > size {
		return checkpoint.Wrap(fmt.Errorf("offset %v outside of [0, %v]", offset, size), ErrBounds)
	}

	d.offset = offset
	return nil
}

// Tell returns the current offset of fd.
func (fs *Fs) Tell(fd FD) (int64, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	d, err := fs.descriptor(fd)
	if err != nil {
		return 0, err
	}
	return d.offset, nil
}

// Entry returns the directory entry of the file behind fd.
func (fs *Fs) Entry(fd FD) (DirEntry, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	d, err := fs.descriptor(fd)
	if err != nil {
		return DirEntry{}, err
	}
	return fs.root[d.entry].info(), nil
}

// descriptor returns the open table slot of fd.
func (fs *Fs) descriptor(fd FD) (*descriptor, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}

	if fd < 0 || int(fd) >= len(fs.files) || !fs.files[fd].open {
		return nil, checkpoint.Wrap(fmt.Errorf("invalid descriptor %v", fd), ErrNotFound)
	}
	return &fs.files[fd], nil
}

// referenced reports whether a descriptor is open on the directory slot.
func (fs *Fs) referenced(slot int) bool {
	for i := range fs.files {
		if fs.files[i].open && fs.files[i].entry == slot {
			return true
		}
	}
	return false
}

func (fs *Fs) openCount() int {
	count := 0
	for i := range fs.files {
		if fs.files[i].open {
			count++
		}
	}
	return count
}
