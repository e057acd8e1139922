package blockfat

import (
	"fmt"
	"iter"
	"strings"

	"github.com/aligator/blockfat/checkpoint"
	"go.uber.org/zap"
)

// DirEntry describes a file of the root directory.
type DirEntry struct {
	Name       string
	Size       int64
	FirstBlock uint16
}

// validName checks that name fits into a directory entry. The last byte of the name
// field is reserved for the terminating zero byte.
func validName(name string) error {
	switch {
	case name == "":
		return checkpoint.Wrap(fmt.Errorf("empty filename"), ErrValidation)
	case len(name) > FilenameLen-1:
		return checkpoint.Wrap(fmt.Errorf("filename %q is longer than %v bytes", name, FilenameLen-1), ErrValidation)
	case strings.ContainsAny(name, "\x00/"):
		return checkpoint.Wrap(fmt.Errorf("filename %q contains invalid characters", name), ErrValidation)
	}
	return nil
}

// lookup returns the directory slot of name or -1.
func (fs *Fs) lookup(name string) int {
	for i := range fs.root {
		if !fs.root[i].free() && fs.root[i].name() == name {
			return i
		}
	}
	return -1
}

func (fs *Fs) find(name string) (int, error) {
	if err := validName(name); err != nil {
		return -1, err
	}

	slot := fs.lookup(name)
	if slot < 0 {
		return -1, checkpoint.Wrap(fmt.Errorf("no file %q", name), ErrNotFound)
	}
	return slot, nil
}

// Create adds the empty file name to the root directory.
func (fs *Fs) Create(name string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkMounted(); err != nil {
		return err
	}

	if err := validName(name); err != nil {
		return err
	}

	if fs.lookup(name) >= 0 {
		return checkpoint.Wrap(fmt.Errorf("file %q", name), ErrAlreadyExists)
	}

	for i := range fs.root {
		if !fs.root[i].free() {
			continue
		}

		fs.root[i].clear()
		fs.root[i].setName(name)
		return fs.persist()
	}

	return checkpoint.Wrap(fmt.Errorf("all %v directory entries are in use", MaxFiles), ErrCapacity)
}

// Delete removes name and frees all of its blocks. It fails with ErrBusy while a
// descriptor references the file.
func (fs *Fs) Delete(name string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkMounted(); err != nil {
		return err
	}

	slot, err := fs.find(name)
	if err != nil {
		return err
	}

	if fs.referenced(slot) {
		return checkpoint.Wrap(fmt.Errorf("file %q is open", name), ErrBusy)
	}

	if err := fs.fat.free(fs.root[slot].FirstBlock); err != nil {
		return err
	}
	fs.root[slot].clear()

	Logger().Debug("deleted file", zap.String("name", name))
	return fs.persist()
}

// Truncate cuts name to zero bytes and frees its blocks. Descriptors of the file keep
// working and are moved to offset 0.
func (fs *Fs) Truncate(name string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkMounted(); err != nil {
		return err
	}

	slot, err := fs.find(name)
	if err != nil {
		return err
	}

	return fs.truncate(slot)
}

func (fs *Fs) truncate(slot int) error {
	entry := &fs.root[slot]
	if entry.Size == 0 && entry.FirstBlock == EOC {
		return nil
	}

	if err := fs.fat.free(entry.FirstBlock); err != nil {
		return err
	}
	entry.Size = 0
	entry.FirstBlock = EOC

	for i := range fs.files {
		if fs.files[i].open && fs.files[i].entry == slot {
			fs.files[i].offset = 0
		}
	}

	return fs.persist()
}

// Rename changes the name of a file. Open descriptors of it stay valid.
func (fs *Fs) Rename(oldName, newName string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkMounted(); err != nil {
		return err
	}

	slot, err := fs.find(oldName)
	if err != nil {
		return err
	}

	if err := validName(newName); err != nil {
		return err
	}

	if oldName == newName {
		return nil
	}

	if fs.lookup(newName) >= 0 {
		return checkpoint.Wrap(fmt.Errorf("file %q", newName), ErrAlreadyExists)
	}

	fs.root[slot].setName(newName)
	return fs.persist()
}

// List returns the files of the root directory in directory order.
// The sequence is lazy: each step looks at the current directory, so it reflects
// changes made while iterating. It can be iterated any number of times.
func (fs *Fs) List() iter.Seq[DirEntry] {
	return func(yield func(DirEntry) bool) {
		for i := 0; i < MaxFiles; i++ {
			entry, ok := fs.entryAt(i)
			if !ok {
				continue
			}

			if !yield(entry) {
				return
			}
		}
	}
}

// entryAt returns the file in slot i, if the slot is used and the volume mounted.
func (fs *Fs) entryAt(i int) (DirEntry, bool) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if !fs.mounted || fs.root[i].free() {
		return DirEntry{}, false
	}
	return fs.root[i].info(), true
}

// Lookup returns the directory entry of name.
func (fs *Fs) Lookup(name string) (DirEntry, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkMounted(); err != nil {
		return DirEntry{}, err
	}

	slot, err := fs.find(name)
	if err != nil {
		return DirEntry{}, err
	}
	return fs.root[slot].info(), nil
}

func (e *dirEntry) info() DirEntry {
	return DirEntry{
		Name:       e.name(),
		Size:       int64(e.Size),
		FirstBlock: e.FirstBlock,
	}
}
