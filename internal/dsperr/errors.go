// Package dsperr implements the firmware's abstract error taxonomy.
// Every error that crosses a component/pipeline/IPC boundary is one of a
// fixed set of kinds; wrapping with New lets the IPC dispatcher map any
// error straight to a 24-bit reply status with a
// single errors.As/Code() lookup instead of re-deriving the kind from
// error text.
package dsperr

import "errors"

// Code identifies one of the abstract error kinds.
type Code int

const (
	// CodeNone indicates success; never actually attached to an error.
	CodeNone Code = iota
	CodeBadState
	CodeBadParam
	CodeNoMemory
	CodeNoResource
	CodeBusy
	CodeXrun
	CodeNotSupported
)

func (c Code) String() string {
	switch c {
	case CodeBadState:
		return "bad_state"
	case CodeBadParam:
		return "bad_param"
	case CodeNoMemory:
		return "no_memory"
	case CodeNoResource:
		return "no_resource"
	case CodeBusy:
		return "busy"
	case CodeXrun:
		return "xrun"
	case CodeNotSupported:
		return "not_supported"
	default:
		return "none"
	}
}

// dspError pairs a Code with a message and optional wrapped cause.
type dspError struct {
	code  Code
	msg   string
	cause error
}

func (e *dspError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *dspError) Unwrap() error { return e.cause }

// Code reports the abstract error kind.
func (e *dspError) Code() Code { return e.code }

// Sentinel errors usable with errors.Is, one per kind. New(code, ...) wraps
// one of these so a caller can both match with errors.Is(err, dsperr.BadState)
// and recover the code with dsperr.CodeOf(err).
var (
	BadState     = &dspError{code: CodeBadState, msg: "bad_state"}
	BadParam     = &dspError{code: CodeBadParam, msg: "bad_param"}
	NoMemory     = &dspError{code: CodeNoMemory, msg: "no_memory"}
	NoResource   = &dspError{code: CodeNoResource, msg: "no_resource"}
	Busy         = &dspError{code: CodeBusy, msg: "busy"}
	Xrun         = &dspError{code: CodeXrun, msg: "xrun"}
	NotSupported = &dspError{code: CodeNotSupported, msg: "not_supported"}
)

var sentinels = map[Code]*dspError{
	CodeBadState:     BadState,
	CodeBadParam:     BadParam,
	CodeNoMemory:     NoMemory,
	CodeNoResource:   NoResource,
	CodeBusy:         Busy,
	CodeXrun:         Xrun,
	CodeNotSupported: NotSupported,
}

// New wraps msg with an error of the given code, matching both
// errors.Is(err, dsperr.<Sentinel>) and CodeOf(err). It carries no cause;
// Wrap is the variant that annotates one.
func New(code Code, msg string) error {
	return &dspError{code: code, msg: msg}
}

// Wrap annotates cause with a kind and message.
func Wrap(code Code, msg string, cause error) error {
	return &dspError{code: code, msg: msg, cause: cause}
}

// Is implements errors.Is matching against the package sentinels by code.
func (e *dspError) Is(target error) bool {
	t, ok := target.(*dspError)
	if !ok {
		return false
	}
	return e.code == t.code
}

// CodeOf extracts the Code from err if it (or something it wraps) is a
// dsperr error; otherwise returns CodeNone.
func CodeOf(err error) Code {
	var de *dspError
	if errors.As(err, &de) {
		return de.code
	}
	return CodeNone
}

// ReplyStatus maps a Code to the 24-bit IPC reply status field.
// 0 is success; codes are small positive integers so they
// remain stable across builds without needing an explicit registry.
func ReplyStatus(code Code) uint32 {
	switch code {
	case CodeNone:
		return 0
	case CodeBadParam:
		return 1
	case CodeBusy:
		return 2
	case CodeNoResource:
		return 3
	case CodeNotSupported:
		return 4
	case CodeBadState:
		return 5
	case CodeNoMemory:
		return 6
	default:
		return 0xff
	}
}
