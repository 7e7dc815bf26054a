// Package qipuerrors defines the error taxonomy shared by every store
// engine component. Components return their own errors; this package only
// supplies the shared shape so callers can dispatch on Kind without string
// matching.
package qipuerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for callers that need to map it to an exit
// code or a user-facing category. It is not a type name: several Go error
// types can carry the same Kind.
type Kind string

const (
	Usage    Kind = "usage"
	NotFound Kind = "not_found"
	Invalid  Kind = "invalid"
	Io       Kind = "io"
	Index    Kind = "index"
	Ontology Kind = "ontology"
	Other    Kind = "other"
)

// Error is the shared error shape. Token is the offending id, path, or
// config key, attached so the outermost layer can mention it without
// re-deriving it from the message.
type Error struct {
	Kind  Kind
	Msg   string
	Token string
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	if e.Token != "" {
		fmt.Fprintf(&b, " (%s)", e.Token)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with no token and no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf constructs an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an existing error, preserving it as
// the cause for errors.Is/As.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// WithToken returns a copy of e carrying the offending token.
func (e *Error) WithToken(token string) *Error {
	cp := *e
	cp.Token = token
	return &cp
}

// KindOf extracts the Kind of err, walking its Unwrap chain. Returns the
// empty Kind if err is nil, and Other if err carries no *Error in its
// chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// corruptionPhrases are substrings SQLite returns for a damaged database
// file. Matching is case-insensitive since drivers vary in capitalization.
var corruptionPhrases = []string{
	"malformed",
	"corrupt",
	"disk image is malformed",
	"is not a database",
}

// IsCorruption reports whether err looks like SQLite reporting a damaged
// database file rather than an ordinary query failure.
func IsCorruption(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range corruptionPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// ExitCode maps a Kind to the process exit code contract of the (external,
// out-of-scope) CLI collaborator.
func ExitCode(kind Kind) int {
	switch kind {
	case "":
		return 0
	case Usage, Ontology, Invalid:
		return 2
	case NotFound:
		return 3
	case Index:
		return 4
	default:
		return 1
	}
}
