// Package mkverr defines the error taxonomy this engine reports through:
// IoError, InvalidFormat, Unsupported, ConfigError, ReferenceUnresolved,
// InternalInvariant, and Warning. Callers distinguish kinds with errors.As
// rather than string matching, generalizing the teacher's own
// fmt.Errorf("...: %w", err) wrapping idiom into typed sentinels.
package mkverr

import "fmt"

// Kind classifies an error for propagation-policy decisions (§7): some
// kinds abort the current operation outright, others degrade gracefully
// and are only surfaced as a warning.
type Kind int

const (
	IoError Kind = iota
	InvalidFormat
	Unsupported
	ConfigError
	ReferenceUnresolved
	InternalInvariant
	Warning
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "IoError"
	case InvalidFormat:
		return "InvalidFormat"
	case Unsupported:
		return "Unsupported"
	case ConfigError:
		return "ConfigError"
	case ReferenceUnresolved:
		return "ReferenceUnresolved"
	case InternalInvariant:
		return "InternalInvariant"
	case Warning:
		return "Warning"
	default:
		return "Unknown"
	}
}

// Error is a typed, wrappable error carrying a Kind for propagation-policy
// dispatch and a plain message matching spec.md §7's user-visible format
// ("(mkvmerge) Error: <message>." / "(mkvmerge) Warning: <message>.").
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind wrapping an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsFatal reports whether errors of this kind must abort the current
// operation (mux/extract of the current file) rather than merely being
// logged and skipped, per spec.md §7's propagation-policy table.
func (k Kind) IsFatal() bool {
	switch k {
	case Warning:
		return false
	default:
		return true
	}
}

// FormatCLI renders err in the exact "(prog) Error: msg." / "(prog)
// Warning: msg." shape spec.md §7 requires on stderr.
func FormatCLI(prog string, err *Error) string {
	label := "Error"
	if err.Kind == Warning {
		label = "Warning"
	}
	msg := err.Message
	if err.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err.Err)
	}
	return fmt.Sprintf("(%s) %s: %s.", prog, label, msg)
}
