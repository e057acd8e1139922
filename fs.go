package blockfat

import (
	"fmt"
	"sync"

	"github.com/aligator/blockfat/checkpoint"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Info summarizes the geometry and usage of a mounted volume.
type Info struct {
	TotalBlocks    int
	FATBlocks      int
	RootBlock      int
	FirstDataBlock int
	DataBlocks     int
	FreeDataBlocks int
	FreeFiles      int
}

// FreeFATRatio returns the fraction of allocatable data blocks which are free.
func (i Info) FreeFATRatio() float64 {
	// Entry 0 is never allocatable.
	if i.DataBlocks <= 1 {
		return 0
	}
	return float64(i.FreeDataBlocks) / float64(i.DataBlocks-1)
}

// FreeDirRatio returns the fraction of free root directory entries.
func (i Info) FreeDirRatio() float64 {
	return float64(i.FreeFiles) / MaxFiles
}

// Fs is a mounted volume. All state lives in memory between Mount and Unmount; the
// root directory and changed FAT blocks are written through after each change.
// All methods are safe to call from multiple goroutines, calls are serialized.
type Fs struct {
	lock sync.Mutex

	device  BlockDevice
	mounted bool

	sb    Superblock
	fat   *fat
	root  [MaxFiles]dirEntry
	files [MaxOpenFiles]descriptor
}

// MountFile opens the image name of afs and mounts it.
func MountFile(afs afero.Fs, name string) (*Fs, error) {
	device, err := OpenDevice(afs, name)
	if err != nil {
		return nil, err
	}

	return Mount(device)
}

// Mount loads the superblock, the FAT and the root directory of device.
// If it fails, the device is closed and no Fs is returned.
func Mount(device BlockDevice) (*Fs, error) {
	fs, err := load(device)
	if err != nil {
		if closeErr := device.Close(); closeErr != nil {
			Logger().Debug("closing device after failed mount", zap.Error(closeErr))
		}
		return nil, err
	}

	Logger().Debug("mounted volume",
		zap.Int("blocks", int(fs.sb.BlockCount)),
		zap.Int("fatBlocks", int(fs.sb.FATBlockCount)),
		zap.Int("dataBlocks", int(fs.sb.DataBlockCount)))
	return fs, nil
}

func load(device BlockDevice) (*Fs, error) {
	var buf [BlockSize]byte
	if err := device.ReadBlock(0, buf[:]); err != nil {
		return nil, checkpoint.Wrap(err, ErrIO)
	}

	sb := DecodeSuperblock(&buf)
	if err := sb.Validate(device.BlockCount()); err != nil {
		return nil, err
	}

	fs := &Fs{
		device:  device,
		mounted: true,
		sb:      sb,
		fat:     newFAT(int(sb.DataBlockCount), int(sb.FATBlockCount)),
	}

	for i := 0; i < int(sb.FATBlockCount); i++ {
		if err := device.ReadBlock(1+i, buf[:]); err != nil {
			return nil, checkpoint.Wrap(err, ErrIO)
		}
		fs.fat.decodeBlock(i, &buf)
	}

	if fs.fat.entries[0] != EOC {
		return nil, checkpoint.Wrap(fmt.Errorf("reserved FAT entry 0 is %#x, want %#x", fs.fat.entries[0], EOC), ErrValidation)
	}

	if err := device.ReadBlock(int(sb.RootBlock), buf[:]); err != nil {
		return nil, checkpoint.Wrap(err, ErrIO)
	}
	for i := range fs.root {
		fs.root[i] = decodeDirEntry(buf[i*dirEntrySize : (i+1)*dirEntrySize])
	}

	return fs, nil
}

// Unmount writes the superblock, the whole FAT and the root directory back and closes
// the device. It fails with ErrBusy while descriptors are open. If a write fails,
// the remaining blocks are not written and the Fs stays mounted so it can be retried.
func (fs *Fs) Unmount() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkMounted(); err != nil {
		return err
	}

	if open := fs.openCount(); open > 0 {
		return checkpoint.Wrap(fmt.Errorf("%v descriptors are still open", open), ErrBusy)
	}

	var buf [BlockSize]byte
	fs.sb.Encode(&buf)
	if err := fs.device.WriteBlock(0, buf[:]); err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	for i := range fs.fat.dirty {
		fs.fat.dirty[i] = true
	}
	if err := fs.flushFAT(); err != nil {
		return err
	}

	if err := fs.flushRoot(); err != nil {
		return err
	}

	fs.mounted = false
	if err := fs.device.Close(); err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	Logger().Debug("unmounted volume")
	return nil
}

// Info returns the geometry and current usage of the volume.
func (fs *Fs) Info() (Info, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkMounted(); err != nil {
		return Info{}, err
	}

	freeFiles := 0
	for i := range fs.root {
		if fs.root[i].free() {
			freeFiles++
		}
	}

	return Info{
		TotalBlocks:    int(fs.sb.BlockCount),
		FATBlocks:      int(fs.sb.FATBlockCount),
		RootBlock:      int(fs.sb.RootBlock),
		FirstDataBlock: int(fs.sb.FirstDataBlock),
		DataBlocks:     int(fs.sb.DataBlockCount),
		FreeDataBlocks: fs.fat.freeCount(),
		FreeFiles:      freeFiles,
	}, nil
}

func (fs *Fs) checkMounted() error {
	if !fs.mounted {
		return checkpoint.From(ErrUnmounted)
	}
	return nil
}

// flushRoot writes the whole root directory block.
func (fs *Fs) flushRoot() error {
	var buf [BlockSize]byte
	for i := range fs.root {
		fs.root[i].encode(buf[i*dirEntrySize : (i+1)*dirEntrySize])
	}

	return checkpoint.Wrap(fs.device.WriteBlock(int(fs.sb.RootBlock), buf[:]), ErrIO)
}

// flushFAT writes the FAT blocks changed since the last flush.
func (fs *Fs) flushFAT() error {
	var buf [BlockSize]byte
	for i, dirty := range fs.fat.dirty {
		if !dirty {
			continue
		}

		fs.fat.encodeBlock(i, &buf)
		if err := fs.device.WriteBlock(1+i, buf[:]); err != nil {
			return checkpoint.Wrap(err, ErrIO)
		}
		fs.fat.dirty[i] = false
	}
	return nil
}

// persist writes the changed metadata through: first the FAT, then the directory
// which references it.
func (fs *Fs) persist() error {
	if err := fs.flushFAT(); err != nil {
		Logger().Error("persisting FAT", zap.Error(err))
		return err
	}
	if err := fs.flushRoot(); err != nil {
		Logger().Error("persisting root directory", zap.Error(err))
		return err
	}
	return nil
}

// dataBlock maps a FAT index to the device block holding its data.
func (fs *Fs) dataBlock(index uint16) int {
	return int(fs.sb.FirstDataBlock) + int(index)
}
