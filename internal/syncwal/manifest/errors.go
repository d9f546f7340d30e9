package manifest

import (
	"errors"
	"fmt"
)

type ManifestErrorKind int

const (
	ManifestErrorKindNotFound ManifestErrorKind = iota + 1
	ManifestErrorKindUnsupportedVersion
	ManifestErrorKindEncode
	ManifestErrorKindDecode
	ManifestErrorKindWrite
	ManifestErrorKindAlreadyExists
)

var (
	ErrManifestNotFound           = errors.New("manifest: file not found")
	ErrManifestUnsupportedVersion = errors.New("manifest: unsupported version")
	ErrManifestEncode             = errors.New("manifest: unable to encode to JSON")
	ErrManifestDecode             = errors.New("manifest: unable to decode from JSON")
	ErrManifestWrite              = errors.New("manifest: unable to write to file")
	ErrManifestAlreadyExists      = errors.New("manifest: file already exists")
)

type ManifestError struct {
	Kind ManifestErrorKind
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest error (%v): %v", e.Kind, e.Err)
}

func (e *ManifestError) Unwrap() error {
	switch e.Kind {
	case ManifestErrorKindNotFound:
		return ErrManifestNotFound
	case ManifestErrorKindUnsupportedVersion:
		return ErrManifestUnsupportedVersion
	case ManifestErrorKindEncode:
		return ErrManifestEncode
	case ManifestErrorKindDecode:
		return ErrManifestDecode
	case ManifestErrorKindWrite:
		return ErrManifestWrite
	case ManifestErrorKindAlreadyExists:
		return ErrManifestAlreadyExists
	default:
		return e.Err
	}
}
