package replay

import (
	"errors"
	"fmt"
)

// ErrReplaySource indicates a segment could not be read at all.
var ErrReplaySource = errors.New("replay: unable to read segment")

// ReplayError wraps a fatal per-segment failure with its location.
type ReplayError struct {
	Segment uint64
	Err     error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay failed at segment %d: %v", e.Segment, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return ErrReplaySource
}

func (e *ReplayError) Cause() error {
	return e.Err
}
