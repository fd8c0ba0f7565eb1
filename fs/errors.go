package fs

import (
	"errors"
	"fmt"
)

// ErrorKind identifies one of the stable, wire-visible error codes shared by
// the TCP and HTTP adapters. Values and meanings match the code table.
type ErrorKind int

// The stable error code table. Both wire formats carry these integers.
const (
	Unknown ErrorKind = iota
	FileNotFound
	FileExists
	BadPath
	BadRange
	IsDirectory
	MalformedGlob
	IllegalOffset
	UnexpectedData
	UnexpectedEndOfStream
	TruncatedStream
)

// Code returns the stable wire integer for k.
func (k ErrorKind) Code() int {
	return int(k)
}

func (k ErrorKind) String() string {
	switch k {
	case FileNotFound:
		return "FILE_NOT_FOUND"
	case FileExists:
		return "FILE_EXISTS"
	case BadPath:
		return "BAD_PATH"
	case BadRange:
		return "BAD_RANGE"
	case IsDirectory:
		return "IS_DIRECTORY"
	case MalformedGlob:
		return "MALFORMED_GLOB"
	case IllegalOffset:
		return "ILLEGAL_OFFSET"
	case UnexpectedData:
		return "UNEXPECTED_DATA"
	case UnexpectedEndOfStream:
		return "UNEXPECTED_END_OF_STREAM"
	case TruncatedStream:
		return "TRUNCATED_STREAM"
	default:
		return "UNKNOWN"
	}
}

// KindFromCode maps a wire integer back to its ErrorKind, defaulting to
// Unknown for anything not in the table.
func KindFromCode(code int) ErrorKind {
	if code > 0 && code <= int(TruncatedStream) {
		return ErrorKind(code)
	}
	return Unknown
}

// Error is a filesystem error carrying one of the codes in the table
// above. Those with a domain code (see IsApplicationError) carry domain
// meaning, propagate verbatim across the cluster, and must never cause a
// partition to be marked dead.
type Error struct {
	Kind  ErrorKind
	Msg   string
	cause error
}

// NewError builds an application Error of the given kind.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an application Error of the given kind around a lower-level
// cause, preserving it for errors.Unwrap/errors.Is/errors.As.
func Wrap(kind ErrorKind, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the underlying cause, if any, for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, ErrFileNotFound) work against the sentinel values
// below as well as against other *Error values that share a Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel application errors for use with errors.Is.
var (
	ErrFileNotFound          = &Error{Kind: FileNotFound, Msg: "file not found"}
	ErrFileExists            = &Error{Kind: FileExists, Msg: "file exists"}
	ErrBadPath               = &Error{Kind: BadPath, Msg: "bad path"}
	ErrBadRange              = &Error{Kind: BadRange, Msg: "bad range"}
	ErrIsDirectory           = &Error{Kind: IsDirectory, Msg: "is a directory"}
	ErrMalformedGlob         = &Error{Kind: MalformedGlob, Msg: "malformed glob"}
	ErrIllegalOffset         = &Error{Kind: IllegalOffset, Msg: "illegal offset"}
	ErrUnexpectedData        = &Error{Kind: UnexpectedData, Msg: "unexpected data"}
	ErrUnexpectedEndOfStream = &Error{Kind: UnexpectedEndOfStream, Msg: "unexpected end of stream"}
	ErrTruncatedStream       = &Error{Kind: TruncatedStream, Msg: "truncated stream"}
)

// IsApplicationError reports whether err carries one of the domain error
// codes 1-9 above, as opposed to a transport/unknown failure. Kind Unknown
// (code 0) is deliberately excluded: it groups with network/timeout
// failures, not with the domain-meaningful codes, so an Unknown *Error
// must still evict a partition via MarkIfDead. TruncatedStream (code 10)
// reports a failed fan-in, not a domain condition, and is excluded too.
// Application errors must never evict a partition.
func IsApplicationError(err error) bool {
	if err == nil {
		return false
	}
	var fsErr *Error
	if !errors.As(err, &fsErr) {
		return false
	}
	return fsErr.Kind != Unknown && fsErr.Kind != TruncatedStream
}
