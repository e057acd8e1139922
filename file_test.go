package blockfat

import (
	"errors"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

// testingAferoFile writes content to name and opens it with flag.
func testingAferoFile(t *testing.T, a *AferoFs, name string, content []byte, flag int) afero.File {
	t.Helper()
	if err := afero.WriteFile(a, name, content, 0666); err != nil {
		t.Fatal(err)
	}
	file, err := a.OpenFile(name, flag, 0666)
	if err != nil {
		t.Fatalf("AferoFs.OpenFile() error = %v", err)
	}
	t.Cleanup(func() { file.Close() })
	return file
}

func TestFile_Close(t *testing.T) {
	a := testingAfero(t, 16)
	file, err := a.Create("a")
	if err != nil {
		t.Fatal(err)
	}

	if err := file.Close(); err != nil {
		t.Errorf("File.Close() error = %v", err)
	}
	if err := file.Close(); !errors.Is(err, os.ErrClosed) {
		t.Errorf("second File.Close() error = %v, want os.ErrClosed", err)
	}
	if _, err := file.Read(make([]byte, 1)); !errors.Is(err, os.ErrClosed) {
		t.Errorf("File.Read() after File.Close() error = %v, want os.ErrClosed", err)
	}

	// The descriptor is released, so the file can be removed.
	if err := a.Remove("a"); err != nil {
		t.Errorf("AferoFs.Remove() after File.Close() error = %v", err)
	}
}

func TestFile_Read(t *testing.T) {
	a := testingAfero(t, 16)
	file := testingAferoFile(t, a, "a", []byte("Hello World"), os.O_RDONLY)

	buf := make([]byte, 5)
	n, err := file.Read(buf)
	if err != nil || string(buf[:n]) != "Hello" {
		t.Errorf("File.Read() = %q, %v", buf[:n], err)
	}

	rest, err := io.ReadAll(file)
	if err != nil || string(rest) != " World" {
		t.Errorf("io.ReadAll() = %q, %v", rest, err)
	}

	if n, err := file.Read(buf); n != 0 || err != io.EOF {
		t.Errorf("File.Read() at the end = %v, %v, want 0, io.EOF", n, err)
	}
	if n, err := file.Read(nil); n != 0 || err != nil {
		t.Errorf("File.Read() of nothing = %v, %v, want 0, nil", n, err)
	}
}

func TestFile_ReadAt(t *testing.T) {
	a := testingAfero(t, 16)
	file := testingAferoFile(t, a, "a", []byte("Hello World"), os.O_RDONLY)

	tests := []struct {
		name    string
		size    int
		off     int64
		want    string
		wantErr error
	}{
		{name: "start", size: 5, off: 0, want: "Hello"},
		{name: "middle", size: 3, off: 4, want: "o W"},
		{name: "up to the end", size: 5, off: 6, want: "World"},
		{name: "behind the end", size: 5, off: 8, want: "rld", wantErr: io.EOF},
		{name: "after the end", size: 5, off: 20, want: "", wantErr: io.EOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.size)
			n, err := file.ReadAt(buf, tt.off)
			if err != tt.wantErr {
				t.Errorf("File.ReadAt() error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(buf[:n]) != tt.want {
				t.Errorf("File.ReadAt() = %q, want %q", buf[:n], tt.want)
			}
		})
	}

	// ReadAt does not move the offset.
	if off, err := file.Seek(0, io.SeekCurrent); err != nil || off != 0 {
		t.Errorf("offset after File.ReadAt() = %v, %v", off, err)
	}
}

func TestFile_Seek(t *testing.T) {
	tests := []struct {
		name    string
		start   int64
		offset  int64
		whence  int
		want    int64
		wantErr error
	}{
		{name: "start", offset: 3, whence: io.SeekStart, want: 3},
		{name: "current", start: 3, offset: 2, whence: io.SeekCurrent, want: 5},
		{name: "current backwards", start: 3, offset: -3, whence: io.SeekCurrent, want: 0},
		{name: "end", offset: -1, whence: io.SeekEnd, want: 10},
		{name: "exactly the end", offset: 0, whence: io.SeekEnd, want: 11},
		{name: "behind the end", offset: 12, whence: io.SeekStart, wantErr: afero.ErrOutOfRange},
		{name: "negative", start: 3, offset: -4, whence: io.SeekCurrent, wantErr: afero.ErrOutOfRange},
		{name: "invalid whence", offset: 0, whence: 42, wantErr: syscall.EINVAL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testingAfero(t, 16)
			file := testingAferoFile(t, a, "a", []byte("Hello World"), os.O_RDONLY)
			if _, err := file.Seek(tt.start, io.SeekStart); err != nil {
				t.Fatal(err)
			}

			got, err := file.Seek(tt.offset, tt.whence)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("File.Seek() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("File.Seek() = %v, %v, want %v", got, err, tt.want)
			}

			buf := make([]byte, 1)
			if tt.want < 11 {
				if _, err := file.Read(buf); err != nil || buf[0] != "Hello World"[tt.want] {
					t.Errorf("File.Read() after File.Seek() = %q, %v", buf, err)
				}
			}
		})
	}
}

func TestFile_Write(t *testing.T) {
	a := testingAfero(t, 16)
	file := testingAferoFile(t, a, "a", []byte("Hello World"), os.O_RDWR)

	if _, err := file.Seek(6, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	if n, err := file.WriteString("Gophers!"); err != nil || n != 8 {
		t.Fatalf("File.WriteString() = %v, %v", n, err)
	}
	if n, err := file.WriteAt([]byte("J"), 0); err != nil || n != 1 {
		t.Fatalf("File.WriteAt() = %v, %v", n, err)
	}
	if _, err := file.WriteAt([]byte("x"), 100); !errors.Is(err, ErrBounds) {
		t.Errorf("File.WriteAt() behind the end error = %v, want ErrBounds", err)
	}

	got, err := afero.ReadFile(a, "a")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("Jello Gophers!", string(got)); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
}

func TestFile_Write_Append(t *testing.T) {
	a := testingAfero(t, 16)
	file := testingAferoFile(t, a, "a", []byte("Hello"), os.O_WRONLY|os.O_APPEND)

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	if _, err := file.Write([]byte(" World")); err != nil {
		t.Fatalf("File.Write() error = %v", err)
	}
	if _, err := file.WriteAt([]byte("x"), 0); !errors.Is(err, ErrWriteFile) {
		t.Errorf("File.WriteAt() with O_APPEND error = %v, want ErrWriteFile", err)
	}

	got, err := afero.ReadFile(a, "a")
	if err != nil || string(got) != "Hello World" {
		t.Errorf("content after appending = %q, %v", got, err)
	}
}

func TestFile_Write_ReadOnly(t *testing.T) {
	a := testingAfero(t, 16)
	file := testingAferoFile(t, a, "a", []byte("Hello"), os.O_RDONLY)

	if _, err := file.Write([]byte("x")); !errors.Is(err, os.ErrPermission) {
		t.Errorf("File.Write() on a read only file error = %v, want os.ErrPermission", err)
	}
	if err := file.Truncate(0); !errors.Is(err, os.ErrPermission) {
		t.Errorf("File.Truncate() on a read only file error = %v, want os.ErrPermission", err)
	}
}

func TestFile_Write_Full(t *testing.T) {
	a := testingAfero(t, 16)
	file, err := a.Create("a")
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	n, err := file.Write(testingData(13 * BlockSize))
	if !errors.Is(err, io.ErrShortWrite) || !errors.Is(err, ErrCapacity) {
		t.Errorf("File.Write() on a full volume error = %v, want io.ErrShortWrite and ErrCapacity", err)
	}
	if n != 12*BlockSize {
		t.Errorf("File.Write() = %v, want %v", n, 12*BlockSize)
	}
}

func TestFile_Truncate(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		wantErr  error
		wantSize int64
	}{
		{name: "to zero", size: 0, wantSize: 0},
		{name: "to the current size", size: 5, wantSize: 5},
		{name: "shrink", size: 2, wantErr: ErrNotSupported, wantSize: 5},
		{name: "grow", size: 10, wantErr: ErrNotSupported, wantSize: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testingAfero(t, 16)
			file := testingAferoFile(t, a, "a", []byte("Hello"), os.O_RDWR)

			if err := file.Truncate(tt.size); !errors.Is(err, tt.wantErr) {
				t.Errorf("File.Truncate() error = %v, wantErr %v", err, tt.wantErr)
			}

			info, err := file.Stat()
			if err != nil {
				t.Fatal(err)
			}
			if info.Size() != tt.wantSize {
				t.Errorf("size after File.Truncate() = %v, want %v", info.Size(), tt.wantSize)
			}
		})
	}
}

func TestFile_Readdir(t *testing.T) {
	a := testingAfero(t, 16)
	for _, name := range []string{"a", "b", "c"} {
		if err := afero.WriteFile(a, name, []byte(name), 0666); err != nil {
			t.Fatal(err)
		}
	}

	dir, err := a.Open("/")
	if err != nil {
		t.Fatal(err)
	}
	defer dir.Close()

	names, err := dir.Readdirnames(2)
	if err != nil || !cmp.Equal([]string{"a", "b"}, names) {
		t.Errorf("File.Readdirnames(2) = %v, %v", names, err)
	}
	names, err = dir.Readdirnames(2)
	if err != nil || !cmp.Equal([]string{"c"}, names) {
		t.Errorf("second File.Readdirnames(2) = %v, %v", names, err)
	}
	if _, err := dir.Readdir(2); !errors.Is(err, io.EOF) {
		t.Errorf("File.Readdir(2) at the end error = %v, want io.EOF", err)
	}
	if infos, err := dir.Readdir(-1); err != nil || len(infos) != 0 {
		t.Errorf("File.Readdir(-1) at the end = %v, %v, want nothing", infos, err)
	}

	if _, err := dir.Read(make([]byte, 1)); !errors.Is(err, syscall.EISDIR) {
		t.Errorf("File.Read() of the root error = %v, want EISDIR", err)
	}

	file, err := a.Open("a")
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if _, err := file.Readdir(-1); !errors.Is(err, syscall.ENOTDIR) {
		t.Errorf("File.Readdir() of a file error = %v, want ENOTDIR", err)
	}
}

func TestFile_Stat(t *testing.T) {
	a := testingAfero(t, 16)
	file := testingAferoFile(t, a, "a", []byte("Hello"), os.O_RDWR)

	if _, err := file.Write([]byte("Hello World")); err != nil {
		t.Fatal(err)
	}
	info, err := file.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if info.Name() != "a" || info.Size() != 11 || info.IsDir() || info.Mode() != 0666 {
		t.Errorf("File.Stat() = %v %v %v %v", info.Name(), info.Size(), info.IsDir(), info.Mode())
	}
	if entry, ok := info.Sys().(DirEntry); !ok || entry.FirstBlock == EOC {
		t.Errorf("File.Stat().Sys() = %#v, want the DirEntry", info.Sys())
	}
	if file.Name() != "a" {
		t.Errorf("File.Name() = %v", file.Name())
	}
}
