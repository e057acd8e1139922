package blockfat

import (
	"fmt"
	"io"
	"os"

	"github.com/aligator/blockfat/checkpoint"
	"github.com/spf13/afero"
)

// BlockSize is the size of every block of a volume in bytes.
const BlockSize = 4096

// BlockDevice provides fixed size block storage. Buffers passed to it are always
// exactly BlockSize bytes long.
// Generated mock using mockgen:
//  mockgen -source=device.go -destination=device_mock.go -package blockfat
type BlockDevice interface {
	ReadBlock(index int, buf []byte) error
	WriteBlock(index int, buf []byte) error
	BlockCount() int
	Close() error
}

// FileDevice is a BlockDevice backed by a single file of an afero.Fs.
type FileDevice struct {
	file   afero.File
	blocks int
}

// OpenDevice opens the image name of afs as block device.
// The size of the image has to be a multiple of BlockSize.
func OpenDevice(afs afero.Fs, name string) (*FileDevice, error) {
	file, err := afs.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrIO)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, checkpoint.Wrap(err, ErrIO)
	}

	if stat.Size()%BlockSize != 0 {
		file.Close()
		return nil, checkpoint.Wrap(fmt.Errorf("image size %v is not a multiple of %v", stat.Size(), BlockSize), ErrValidation)
	}

	return &FileDevice{
		file:   file,
		blocks: int(stat.Size() / BlockSize),
	}, nil
}

func (d *FileDevice) check(index int, buf []byte) error {
	if d.file == nil {
		return checkpoint.Wrap(os.ErrClosed, ErrIO)
	}
	if index < 0 || index >= d.blocks {
		return checkpoint.Wrap(fmt.Errorf("block %v out of range [0, %v)", index, d.blocks), ErrIO)
	}
	if len(buf) != BlockSize {
		return checkpoint.Wrap(fmt.Errorf("buffer of %v bytes, want %v", len(buf), BlockSize), ErrIO)
	}
	return nil
}

func (d *FileDevice) ReadBlock(index int, buf []byte) error {
	if err := d.check(index, buf); err != nil {
		return err
	}

	_, err := d.file.ReadAt(buf, int64(index)*BlockSize)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return checkpoint.Wrapf(err, ErrIO, "reading block %v", index)
}

func (d *FileDevice) WriteBlock(index int, buf []byte) error {
	if err := d.check(index, buf); err != nil {
		return err
	}

	_, err := d.file.WriteAt(buf, int64(index)*BlockSize)
	return checkpoint.Wrapf(err, ErrIO, "writing block %v", index)
}

func (d *FileDevice) BlockCount() int {
	return d.blocks
}

// Close syncs and closes the image. Closing twice is an error.
func (d *FileDevice) Close() error {
	if d.file == nil {
		return checkpoint.Wrap(os.ErrClosed, ErrIO)
	}

	file := d.file
	d.file = nil

	if err := file.Sync(); err != nil {
		file.Close()
		return checkpoint.Wrap(err, ErrIO)
	}
	return checkpoint.Wrap(file.Close(), ErrIO)
}
