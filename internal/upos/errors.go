package upos

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed device call.
type ErrorKind int

const (
	KindFailure ErrorKind = iota
	KindClosed
	KindClaimed
	KindNotClaimed
	KindDisabled
	KindIllegal
	KindInvalidParameter
	KindUnsupported
	KindBusy
	KindOffline
	KindHardwareFault
	KindTimeout
)

var kindNames = map[ErrorKind]string{
	KindFailure:          "błąd",
	KindClosed:           "zamknięte",
	KindClaimed:          "przejęte przez inną aplikację",
	KindNotClaimed:       "nieprzejęte",
	KindDisabled:         "wyłączone",
	KindIllegal:          "niedozwolony stan",
	KindInvalidParameter: "niepoprawny parametr",
	KindUnsupported:      "nieobsługiwane",
	KindBusy:             "zajęte przez inną operację",
	KindOffline:          "offline",
	KindHardwareFault:    "błąd sprzętu",
	KindTimeout:          "przekroczony czas",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// UPOS result codes.
const (
	Success     = 0
	ECLOSED     = 101
	ECLAIMED    = 102
	ENOTCLAIMED = 103
	EDISABLED   = 105
	EILLEGAL    = 106
	ENOHARDWARE = 107
	EOFFLINE    = 108
	EFAILURE    = 111
	ETIMEOUT    = 112
	EBUSY       = 113
	EEXTENDED   = 114
)

// Extended printer result codes reported with EEXTENDED.
const (
	ExtCoverOpen = 201
	ExtJrnEmpty  = 202
	ExtRecEmpty  = 203
	ExtSlpEmpty  = 204
	ExtSlpForm   = 205
	ExtTooBig    = 206
	ExtBadFormat = 207
	ExtRecCutter = 215
)

// Error is the error type returned by device services and drivers.
type Error struct {
	Kind     ErrorKind
	Extended int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind && (other.Extended == 0 || other.Extended == e.Extended)
}

var (
	ErrClosed      = &Error{Kind: KindClosed}
	ErrNotClaimed  = &Error{Kind: KindNotClaimed}
	ErrDisabled    = &Error{Kind: KindDisabled}
	ErrIllegal     = &Error{Kind: KindIllegal}
	ErrInvalid     = &Error{Kind: KindInvalidParameter}
	ErrUnsupported = &Error{Kind: KindUnsupported}
	ErrBusy        = &Error{Kind: KindBusy}
	ErrOffline     = &Error{Kind: KindOffline}
	ErrHardware    = &Error{Kind: KindHardwareFault}
	ErrTimeout     = &Error{Kind: KindTimeout}
)

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Illegal(format string, args ...any) error {
	return newError(KindIllegal, format, args...)
}

func Invalid(format string, args ...any) error {
	return newError(KindInvalidParameter, format, args...)
}

func Unsupported(format string, args ...any) error {
	return newError(KindUnsupported, format, args...)
}

func Busy(format string, args ...any) error {
	return newError(KindBusy, format, args...)
}

// Hardware reports a station-specific hardware condition such as an open cover.
func Hardware(extended int, format string, args ...any) error {
	e := newError(KindHardwareFault, format, args...)
	e.Extended = extended
	return e
}

// AsError returns err as *Error, wrapping foreign errors as failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindFailure, Message: "błąd urządzenia", Err: err}
}

// Code maps err to the UPOS result code.
func Code(err error) int {
	if err == nil {
		return Success
	}
	e := AsError(err)
	switch e.Kind {
	case KindClosed:
		return ECLOSED
	case KindClaimed:
		return ECLAIMED
	case KindNotClaimed:
		return ENOTCLAIMED
	case KindDisabled:
		return EDISABLED
	case KindIllegal, KindInvalidParameter, KindUnsupported:
		return EILLEGAL
	case KindBusy:
		return EBUSY
	case KindOffline:
		return EOFFLINE
	case KindTimeout:
		return ETIMEOUT
	case KindHardwareFault:
		if e.Extended != 0 {
			return EEXTENDED
		}
		return ENOHARDWARE
	default:
		return EFAILURE
	}
}
