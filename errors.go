package blockfat

import (
	"errors"
	"os"
)

// These errors classify every failure of the filesystem. They are returned wrapped by
// the checkpoint package, so use errors.Is to check for them.
var (
	// ErrIO reports a failed block device read or write. The operation is aborted and
	// not retried.
	ErrIO = errors.New("block device i/o failed")
	// ErrValidation reports an invalid superblock, FAT or argument such as a bad filename.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports an unknown filename or an invalid descriptor.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists reports a duplicate filename.
	ErrAlreadyExists = errors.New("already exists")
	// ErrCapacity reports a full directory, descriptor table or FAT.
	ErrCapacity = errors.New("no capacity left")
	// ErrBusy reports an operation blocked by open descriptors.
	ErrBusy = errors.New("resource busy")
	// ErrBounds reports an offset outside of a file.
	ErrBounds = errors.New("offset out of bounds")
	// ErrUnmounted reports the use of a session after Unmount.
	ErrUnmounted = errors.New("volume is not mounted")
	// ErrNotSupported reports an afero operation the flat layout cannot do.
	ErrNotSupported = errors.New("operation not supported")
)

// osError maps the classification of err to the matching os error so that afero
// callers can use os.IsNotExist and friends.
func osError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return os.ErrNotExist
	case errors.Is(err, ErrAlreadyExists):
		return os.ErrExist
	case errors.Is(err, ErrUnmounted):
		return os.ErrClosed
	case errors.Is(err, ErrValidation), errors.Is(err, ErrBounds):
		return os.ErrInvalid
	}
	return nil
}
