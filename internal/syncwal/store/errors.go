package store

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDir       = errors.New("store: invalid data dir")
	ErrNotFound         = errors.New("store: node not found")
	ErrClosed           = errors.New("store: closed")
	ErrCloseFailed      = errors.New("store: close failed")
	ErrWALOpenFailed    = errors.New("store: wal open failed")
	ErrManifestFailed   = errors.New("store: manifest open failed")
	ErrRebuildFailed    = errors.New("store: state rebuild failed")
	ErrAppendFailed     = errors.New("store: append failed")
	ErrCompactFailed    = errors.New("store: compact failed")
	ErrEmptyNodeID      = errors.New("store: empty node id")
	ErrDocumentTooLarge = errors.New("store: document exceeds size limit")
)

// StoreError wraps store-layer failures with stable sentinels for
// errors.Is, while preserving Cause for inspection/logging.
type StoreError struct {
	Err error

	// Op describes the operation: "open", "put", "delete", "compact", etc.
	Op string

	// Dir is the data directory.
	Dir string

	Cause error
}

func (e *StoreError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	if e.Dir != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Err.Error(), e.Dir)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) CauseErr() error { return e.Cause }

func wrapStoreErr(op string, sentinel error, dir string, cause error) error {
	return &StoreError{
		Err:   sentinel,
		Op:    op,
		Dir:   dir,
		Cause: cause,
	}
}
