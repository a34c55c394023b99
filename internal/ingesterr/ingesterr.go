// Package ingesterr defines the closed error taxonomy used throughout the
// ingestion engine. Each Kind knows whether it is transient (worth a retry)
// or fatal (must abort the session), replacing ad hoc string errors with a
// small set of typed, wrapped causes.
package ingesterr

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of error categories the pipeline can produce.
type Kind int

const (
	// KindRead covers failures reading from a source file.
	KindRead Kind = iota
	// KindWrite covers failures writing to a destination file.
	KindWrite
	// KindRename covers failures during the atomic partial-to-final rename.
	KindRename
	// KindStat covers failures obtaining file metadata.
	KindStat
	// KindVerifyMismatch covers a source/destination hash mismatch that
	// survived all retries.
	KindVerifyMismatch
	// KindAlgorithmUnavailable covers a requested hash algorithm the
	// runtime cannot provide. Always fatal at session start.
	KindAlgorithmUnavailable
	// KindCheckpointWrite covers a failure persisting the session
	// checkpoint. Always fatal.
	KindCheckpointWrite
	// KindExtractorUnavailable covers a metadata extractor that could not
	// be invoked at all (binary missing, pool exhausted).
	KindExtractorUnavailable
	// KindExtractorTimeout covers an extractor call that exceeded its
	// per-call timeout.
	KindExtractorTimeout
	// KindExtractorCrash covers an extractor process that exited abnormally.
	KindExtractorCrash
	// KindSchemaValidation covers a checkpoint file whose schema version
	// this build cannot read. Always fatal.
	KindSchemaValidation
	// KindExists covers a destination collision when overwrite is disabled.
	KindExists
)

// String returns a human-readable name for the Kind.
func (k Kind) String() string {
	switch k {
	case KindRead:
		return "ReadError"
	case KindWrite:
		return "WriteError"
	case KindRename:
		return "RenameError"
	case KindStat:
		return "StatError"
	case KindVerifyMismatch:
		return "VerifyMismatch"
	case KindAlgorithmUnavailable:
		return "AlgorithmUnavailable"
	case KindCheckpointWrite:
		return "CheckpointWriteError"
	case KindExtractorUnavailable:
		return "ExtractorUnavailable"
	case KindExtractorTimeout:
		return "ExtractorTimeout"
	case KindExtractorCrash:
		return "ExtractorCrash"
	case KindSchemaValidation:
		return "SchemaValidationError"
	case KindExists:
		return "ExistsError"
	default:
		return "UnknownError"
	}
}

// Fatal reports whether an error of this kind must abort the whole session
// rather than being isolated to the file (or extractor call) that produced it.
func (k Kind) Fatal() bool {
	switch k {
	case KindAlgorithmUnavailable, KindCheckpointWrite, KindSchemaValidation:
		return true
	default:
		return false
	}
}

// Transient reports whether an error of this kind is worth retrying
// (e.g. EAGAIN, EINTR, a partial write, a network timeout) as opposed to
// a permanent condition (EACCES, ENOSPC, EROFS).
func (k Kind) Transient() bool {
	switch k {
	case KindRead, KindWrite, KindRename, KindStat:
		return true
	default:
		return false
	}
}

// Error is the concrete error type carrying a Kind, a message, and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Message, e.Path, e.Cause)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error of the given kind.
func New(kind Kind, path, message string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Message: message, Cause: cause}
}

// As reports whether err (or any error it wraps) is an *Error, populating
// target if so. It is a thin convenience wrapper over errors.As.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, with ok
// false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsTransient reports whether err is a transient *Error worth retrying.
func IsTransient(err error) bool {
	k, ok := KindOf(err)
	return ok && k.Transient()
}

// IsFatal reports whether err is a fatal *Error that must abort the session.
func IsFatal(err error) bool {
	k, ok := KindOf(err)
	return ok && k.Fatal()
}
