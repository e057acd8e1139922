package blockfat

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

// testingGoFS returns a volume holding hello.txt and a file spanning three blocks.
func testingGoFS(t *testing.T) *AferoFs {
	t.Helper()
	a := testingAfero(t, 16)
	if err := afero.WriteFile(a, "hello.txt", []byte("Hello World"), 0666); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(a, "big.bin", testingData(2*BlockSize+42), 0666); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestGoFS(t *testing.T) {
	gofs := NewGoFS(testingGoFS(t).Volume())
	if err := fstest.TestFS(gofs, "hello.txt", "big.bin"); err != nil {
		t.Fatal(err)
	}
}

func TestGoFs_ReadFile(t *testing.T) {
	gofs := NewGoFS(testingGoFS(t).Volume())

	got, err := fs.ReadFile(gofs, "big.bin")
	if err != nil {
		t.Fatalf("fs.ReadFile() error = %v", err)
	}
	if !cmp.Equal(testingData(2*BlockSize+42), got) {
		t.Errorf("fs.ReadFile() returned other bytes than written")
	}

	entries, err := fs.ReadDir(gofs, ".")
	if err != nil {
		t.Fatalf("fs.ReadDir() error = %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	if diff := cmp.Diff([]string{"big.bin", "hello.txt"}, names); diff != "" {
		t.Errorf("fs.ReadDir() mismatch (-want +got):\n%s", diff)
	}

	if _, err := gofs.Open("/hello.txt"); !errors.Is(err, fs.ErrInvalid) {
		t.Errorf("GoFs.Open() of an invalid path error = %v, want fs.ErrInvalid", err)
	}
	if _, err := gofs.Open("missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("GoFs.Open() of a missing file error = %v, want fs.ErrNotExist", err)
	}
}

func TestIOFS(t *testing.T) {
	iofs := afero.NewIOFS(testingGoFS(t))

	got, err := fs.ReadFile(iofs, "hello.txt")
	if err != nil || string(got) != "Hello World" {
		t.Errorf("fs.ReadFile() = %q, %v", got, err)
	}

	matches, err := fs.Glob(iofs, "*.txt")
	if err != nil || !cmp.Equal([]string{"hello.txt"}, matches) {
		t.Errorf("fs.Glob() = %v, %v", matches, err)
	}
}
