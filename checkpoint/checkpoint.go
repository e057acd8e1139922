// Package checkpoint decorates errors with the location they passed through, which
// gives something close to a stacktrace without giving up errors.Is / errors.As.
//
// A checkpoint carries two errors: the cause it wraps (reachable through Unwrap) and
// an optional classifying error (matched through Is / As). That way a low level cause
// like an *os.PathError and a package level sentinel like blockfat.ErrIO can both be
// tested for on the same value.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
)

// From wraps err in a checkpoint carrying the caller location.
// It returns nil if err is nil.
func From(err error) error {
	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(err, nil)
}

// Wrap adds a checkpoint to prev which is additionally classified by err.
// It returns nil if prev is nil, so it can wrap the result of a call unconditionally:
//  func load() error {
//  	err := device.ReadBlock(0, buf)
//  	return checkpoint.Wrap(err, ErrIO)
//  }
//
//  if errors.Is(load(), ErrIO) {
//  	// handle any device failure
//  }
func Wrap(prev, err error) error {
	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if prev == nil || prev == io.EOF {
		return prev
	}

	return newCheckpoint(prev, err)
}

// Wrapf is like Wrap but classifies prev with a formatted message around err.
// The resulting checkpoint still matches err through errors.Is.
func Wrapf(prev, err error, format string, args ...interface{}) error {
	if prev == nil || prev == io.EOF {
		return prev
	}

	return newCheckpoint(prev, fmt.Errorf("%w: "+format, append([]interface{}{err}, args...)...))
}

func newCheckpoint(prev, err error) *checkpoint {
	// Skip newCheckpoint and the exported function calling it.
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		err:  err,
		prev: prev,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) location() string {
	if !e.callerOk {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", e.file, e.line)
}

func (e *checkpoint) Error() string {
	if e.err == nil {
		return fmt.Sprintf("[%s] %v", e.location(), e.prev)
	}
	return fmt.Sprintf("[%s] %v: %v", e.location(), e.err, e.prev)
}

func (e *checkpoint) Unwrap() error {
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	if e.err == nil {
		return false
	}
	return errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	if e.err == nil {
		return false
	}
	return errors.As(e.err, target)
}
