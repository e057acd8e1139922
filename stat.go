package blockfat

import (
	"os"
	"time"
)

// FileInfo returns the entry as os.FileInfo.
func (e DirEntry) FileInfo() os.FileInfo {
	return entryFileInfo{e}
}

// entryFileInfo describes a regular file. The volume stores neither permissions nor
// timestamps, so every file reports mode 0666 and the zero time.
type entryFileInfo struct {
	entry DirEntry
}

func (e entryFileInfo) Name() string {
	return e.entry.Name
}

func (e entryFileInfo) Size() int64 {
	return e.entry.Size
}

func (e entryFileInfo) Mode() os.FileMode {
	return 0666
}

func (e entryFileInfo) ModTime() time.Time {
	return time.Time{}
}

func (e entryFileInfo) IsDir() bool {
	return false
}

func (e entryFileInfo) Sys() interface{} {
	return e.entry
}

// rootFileInfo describes the root directory, the only directory of a volume.
type rootFileInfo struct{}

func (rootFileInfo) Name() string       { return "/" }
func (rootFileInfo) Size() int64        { return 0 }
func (rootFileInfo) Mode() os.FileMode  { return os.ModeDir | 0777 }
func (rootFileInfo) ModTime() time.Time { return time.Time{} }
func (rootFileInfo) IsDir() bool        { return true }
func (rootFileInfo) Sys() interface{}   { return nil }
