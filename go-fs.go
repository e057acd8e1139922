package blockfat

import (
	"errors"
	"io/fs"
)

// GoDirEntry is a file of the root directory as fs.DirEntry.
type GoDirEntry struct {
	entry DirEntry
}

func (g GoDirEntry) Name() string {
	return g.entry.Name
}

// IsDir is always false, the root directory holds regular files only.
func (g GoDirEntry) IsDir() bool {
	return false
}

func (g GoDirEntry) Type() fs.FileMode {
	return 0
}

// Info returns the entry as it was when the directory was listed.
func (g GoDirEntry) Info() (fs.FileInfo, error) {
	return g.entry.FileInfo(), nil
}

// GoFile is a File opened through GoFs.
type GoFile struct {
	*File
}

func (g GoFile) Stat() (fs.FileInfo, error) {
	return g.File.Stat()
}

func (g GoFile) Read(p []byte) (int, error) {
	return g.File.Read(p)
}

func (g GoFile) Close() error {
	return g.File.Close()
}

// ReadDir lists the root directory with the count semantics of fs.ReadDirFile.
func (g GoFile) ReadDir(n int) ([]fs.DirEntry, error) {
	infos, err := g.File.Readdir(n)

	entries := make([]fs.DirEntry, 0, len(infos))
	for _, info := range infos {
		if entry, ok := info.Sys().(DirEntry); ok {
			entries = append(entries, GoDirEntry{entry})
		}
	}

	return entries, err
}

// GoFs wraps the afero implementation to be compatible with fs.FS.
// Files are opened read only.
type GoFs struct {
	*AferoFs
}

// NewGoFS exposes a mounted volume as fs.FS.
func NewGoFS(volume *Fs) GoFs {
	return GoFs{NewAferoFs(volume)}
}

func (g GoFs) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	file, err := g.AferoFs.Open(name)
	if err != nil {
		return nil, err
	}

	f, ok := file.(*File)
	if !ok {
		return nil, errors.New("invalid File implementation")
	}

	return GoFile{f}, nil
}
