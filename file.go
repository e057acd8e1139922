package blockfat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/blockfat/checkpoint"
	"github.com/spf13/afero"
)

// These errors may occur while processing a file.
var (
	ErrReadFile  = errors.New("could not read file completely")
	ErrWriteFile = errors.New("could not write file completely")
	ErrSeekFile  = errors.New("could not seek inside of the file")
	ErrReadDir   = errors.New("could not read the directory")
)

// File is an afero.File backed by a descriptor of a Fs, or the root directory.
type File struct {
	fs   *Fs
	path string

	isDirectory bool
	isReadOnly  bool
	isAppend    bool
	closed      bool

	fd FD
	// offset is the position inside of the directory listing. Regular files keep
	// their offset in the descriptor.
	offset int
}

func (f *File) check() error {
	if f.closed {
		return checkpoint.From(os.ErrClosed)
	}
	return nil
}

func (f *File) checkFile() error {
	if err := f.check(); err != nil {
		return err
	}
	if f.isDirectory {
		return checkpoint.From(syscall.EISDIR)
	}
	return nil
}

func (f *File) checkWritable() error {
	if err := f.checkFile(); err != nil {
		return err
	}
	if f.isReadOnly {
		return checkpoint.From(os.ErrPermission)
	}
	return nil
}

// Close releases the descriptor. Closing twice is an error.
func (f *File) Close() error {
	if err := f.check(); err != nil {
		return err
	}

	f.closed = true
	if f.isDirectory {
		return nil
	}
	return f.fs.Close(f.fd)
}

// Read reads from the current offset. It returns io.EOF once the end of the file is
// reached.
func (f *File) Read(p []byte) (n int, err error) {
	if err := f.checkFile(); err != nil {
		return 0, err
	}

	if len(p) == 0 {
		return 0, nil
	}

	n, err = f.fs.Read(f.fd, p)
	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}

	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAt reads len(p) bytes at off. Less bytes are only returned together with an
// error, io.EOF if the file ended.
func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if err := f.checkFile(); err != nil {
		return 0, err
	}

	n, err = f.fs.ReadAt(f.fd, p, off)
	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek jumps to a specific offset in the file. This affects Read and Write but not
// ReadAt and WriteAt.
// May return a syscall.EINVAL error if the whence value is invalid.
// May return an afero.ErrOutOfRange error if the offset is out of range.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if err := f.checkFile(); err != nil {
		return 0, err
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		current, err := f.fs.Tell(f.fd)
		if err != nil {
			return 0, checkpoint.Wrap(err, ErrSeekFile)
		}
		offset = current + offset
	case io.SeekEnd:
		size, err := f.fs.Stat(f.fd)
		if err != nil {
			return 0, checkpoint.Wrap(err, ErrSeekFile)
		}
		offset = size + offset
	default:
		return 0, checkpoint.Wrap(ErrSeekFile, fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence))
	}

	if err := f.fs.Lseek(f.fd, offset); err != nil {
		if errors.Is(err, ErrBounds) {
			return 0, checkpoint.Wrap(err, afero.ErrOutOfRange)
		}
		return 0, checkpoint.Wrap(err, ErrSeekFile)
	}
	return offset, nil
}

// Write writes at the current offset, or at the end if the file was opened with
// os.O_APPEND. If the volume is full, the bytes which fit are written and
// io.ErrShortWrite is returned, which also matches ErrCapacity.
func (f *File) Write(p []byte) (n int, err error) {
	if err := f.checkWritable(); err != nil {
		return 0, err
	}

	if f.isAppend {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return 0, err
		}
	}

	n, err = f.fs.Write(f.fd, p)
	return n, shortWrite(n, len(p), err)
}

// WriteAt writes at off which may point at most to the end of the file.
func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	if err := f.checkWritable(); err != nil {
		return 0, err
	}

	if f.isAppend {
		return 0, checkpoint.Wrap(ErrWriteFile, errors.New("WriteAt on a file opened with O_APPEND"))
	}

	n, err = f.fs.WriteAt(f.fd, p, off)
	return n, shortWrite(n, len(p), err)
}

func shortWrite(n, want int, err error) error {
	if err != nil {
		return checkpoint.Wrap(err, ErrWriteFile)
	}
	if n < want {
		return checkpoint.Wrap(io.ErrShortWrite, ErrCapacity)
	}
	return nil
}

func (f *File) Name() string {
	return f.path
}

// Readdir reads the contents of the root directory.
// For count > 0 it returns at most count entries and io.EOF once nothing is left.
// Otherwise it returns all remaining entries.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if err := f.check(); err != nil {
		return nil, err
	}

	if !f.isDirectory {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	var content []os.FileInfo
	for entry := range f.fs.List() {
		content = append(content, entry.FileInfo())
	}

	if f.offset > len(content) {
		f.offset = len(content)
	}
	content = content[f.offset:]

	if count > 0 {
		if len(content) == 0 {
			return nil, io.EOF
		}
		if count < len(content) {
			content = content[:count]
		}
	}

	f.offset += len(content)
	return content, nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}

	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	if err := f.check(); err != nil {
		return nil, err
	}

	if f.isDirectory {
		return rootFileInfo{}, nil
	}

	entry, err := f.fs.Entry(f.fd)
	if err != nil {
		return nil, err
	}
	return entry.FileInfo(), nil
}

// Sync does nothing as every write goes through to the device.
func (f *File) Sync() error {
	return f.check()
}

// Truncate only supports cutting a file to zero bytes, or to its current size.
func (f *File) Truncate(size int64) error {
	if err := f.checkWritable(); err != nil {
		return err
	}

	entry, err := f.fs.Entry(f.fd)
	if err != nil {
		return err
	}

	switch size {
	case entry.Size:
		return nil
	case 0:
		return f.fs.Truncate(entry.Name)
	}
	return checkpoint.Wrap(ErrNotSupported, fmt.Errorf("truncate to %v bytes", size))
}

func (f *File) WriteString(s string) (ret int, err error) {
	return f.Write([]byte(s))
}
