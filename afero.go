package blockfat

import (
	"errors"
	"os"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/aligator/blockfat/checkpoint"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// AferoFs exposes a mounted volume as afero.Fs. The volume has a single flat root
// directory, so "/", "." and "" name the root and every other path names a file in it.
type AferoFs struct {
	fs *Fs
}

var _ afero.Fs = (*AferoFs)(nil)

// NewAferoFs wraps fs. Unmounting fs invalidates the AferoFs.
func NewAferoFs(fs *Fs) *AferoFs {
	return &AferoFs{fs: fs}
}

// Volume returns the wrapped session.
func (a *AferoFs) Volume() *Fs {
	return a.fs
}

// split cleans name and returns the filename, or "" for the root directory.
func split(name string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+name), "/")
	if strings.Contains(cleaned, "/") {
		return "", checkpoint.Wrap(errors.New("subdirectories do not exist"), ErrNotFound)
	}
	return cleaned, nil
}

func pathError(op, name string, err error) error {
	if err == nil {
		return nil
	}

	mapped := osError(err)
	if mapped == nil {
		mapped = err
	} else {
		Logger().Debug("afero operation failed", zap.String("op", op), zap.String("name", name), zap.Error(err))
	}
	return &os.PathError{Op: op, Path: name, Err: mapped}
}

func (a *AferoFs) Create(name string) (afero.File, error) {
	return a.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

func (a *AferoFs) Mkdir(name string, perm os.FileMode) error {
	return pathError("mkdir", name, checkpoint.From(ErrNotSupported))
}

// MkdirAll only succeeds for the root directory.
func (a *AferoFs) MkdirAll(p string, perm os.FileMode) error {
	file, err := split(p)
	if err == nil && file == "" {
		return nil
	}
	return pathError("mkdir", p, checkpoint.From(ErrNotSupported))
}

func (a *AferoFs) Open(name string) (afero.File, error) {
	return a.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile supports os.O_CREATE, os.O_EXCL, os.O_TRUNC and os.O_APPEND. perm is
// ignored as the volume stores no permissions.
func (a *AferoFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := split(name)
	if err != nil {
		return nil, pathError("open", name, err)
	}

	readOnly := flag&(os.O_WRONLY|os.O_RDWR) == 0

	if file == "" {
		if !readOnly {
			return nil, pathError("open", name, checkpoint.From(syscall.EISDIR))
		}
		if _, err := a.fs.Info(); err != nil {
			return nil, pathError("open", name, err)
		}
		return &File{fs: a.fs, path: name, isDirectory: true, isReadOnly: true}, nil
	}

	_, err = a.fs.Lookup(file)
	switch {
	case errors.Is(err, ErrNotFound) && flag&os.O_CREATE != 0:
		err = a.fs.Create(file)
	case err == nil && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		err = checkpoint.Wrap(errors.New(file), ErrAlreadyExists)
	}
	if err != nil {
		return nil, pathError("open", name, err)
	}

	fd, err := a.fs.Open(file)
	if err != nil {
		return nil, pathError("open", name, err)
	}

	if flag&os.O_TRUNC != 0 && !readOnly {
		if err := a.fs.Truncate(file); err != nil {
			a.fs.Close(fd)
			return nil, pathError("open", name, err)
		}
	}

	return &File{
		fs:         a.fs,
		path:       name,
		fd:         fd,
		isReadOnly: readOnly,
		isAppend:   flag&os.O_APPEND != 0,
	}, nil
}

func (a *AferoFs) Remove(name string) error {
	file, err := split(name)
	if err != nil {
		return pathError("remove", name, err)
	}
	if file == "" {
		return pathError("remove", name, checkpoint.From(ErrBusy))
	}

	return pathError("remove", name, a.fs.Delete(file))
}

// RemoveAll removes a single file, or every file if p is the root directory.
// A missing file is no error.
func (a *AferoFs) RemoveAll(p string) error {
	file, err := split(p)
	if err != nil {
		return nil
	}

	if file != "" {
		err := a.fs.Delete(file)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return pathError("removeall", p, err)
	}

	var names []string
	for entry := range a.fs.List() {
		names = append(names, entry.Name)
	}
	for _, n := range names {
		if err := a.fs.Delete(n); err != nil && !errors.Is(err, ErrNotFound) {
			return pathError("removeall", n, err)
		}
	}
	return nil
}

func (a *AferoFs) Rename(oldname, newname string) error {
	oldFile, err := split(oldname)
	if err != nil {
		return pathError("rename", oldname, err)
	}
	newFile, err := split(newname)
	if err != nil {
		return pathError("rename", newname, err)
	}
	if oldFile == "" || newFile == "" {
		return pathError("rename", oldname, checkpoint.From(ErrNotSupported))
	}

	return pathError("rename", oldname, a.fs.Rename(oldFile, newFile))
}

func (a *AferoFs) Stat(name string) (os.FileInfo, error) {
	file, err := split(name)
	if err != nil {
		return nil, pathError("stat", name, err)
	}

	if file == "" {
		if _, err := a.fs.Info(); err != nil {
			return nil, pathError("stat", name, err)
		}
		return rootFileInfo{}, nil
	}

	entry, err := a.fs.Lookup(file)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return entry.FileInfo(), nil
}

func (a *AferoFs) Name() string {
	return "blockfat"
}

// exists is used by the metadata operations which are accepted but have nothing to
// store.
func (a *AferoFs) exists(op, name string) error {
	_, err := a.Stat(name)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			pathErr.Op = op
		}
	}
	return err
}

func (a *AferoFs) Chmod(name string, mode os.FileMode) error {
	return a.exists("chmod", name)
}

func (a *AferoFs) Chown(name string, uid, gid int) error {
	return a.exists("chown", name)
}

func (a *AferoFs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return a.exists("chtimes", name)
}
