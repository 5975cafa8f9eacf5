package util

import (
	"errors"
	"fmt"
)

// ErrorKind partitions installer failures by the stage that produced them.
// Every kind is fatal to the current run; nothing is retried.
type ErrorKind int

const (
	ValidationError ErrorKind = iota
	MetadataError
	ResolutionError
	DownloadError
	ArchiveError
	PersistedStateError
)

func (k ErrorKind) String() string {
	switch k {
	case ValidationError:
		return "validation"
	case MetadataError:
		return "metadata"
	case ResolutionError:
		return "resolution"
	case DownloadError:
		return "download"
	case ArchiveError:
		return "archive"
	case PersistedStateError:
		return "persisted state"
	}
	return "unknown"
}

// ErrAttributeNotFound marks a jar manifest lookup that matched no line.
var ErrAttributeNotFound = errors.New("attribute not found in jar manifest")

// ErrFieldMissing marks a metadata response that parsed but lacked a
// required field.
var ErrFieldMissing = errors.New("required field missing")

type InstallerError struct {
	Kind  ErrorKind
	Msg   string
	Cause error
}

func (e *InstallerError) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *InstallerError) Unwrap() error {
	return e.Cause
}

// Errorf builds an InstallerError of the given kind with no cause.
func Errorf(kind ErrorKind, format string, args ...interface{}) error {
	return &InstallerError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds an InstallerError of the given kind around a cause.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) error {
	return &InstallerError{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err or anything it wraps is an InstallerError of
// the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ie *InstallerError
	if errors.As(err, &ie) {
		return ie.Kind == kind
	}
	return false
}
