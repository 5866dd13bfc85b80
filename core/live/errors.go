package live

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNoSubjectSelected = errors.New("no subject selected")
	ErrSessionClosed     = errors.New("live session is closed")
	ErrSessionNotFound   = errors.New("live session not found")
	ErrSubjectRequired   = errors.New("subject id is required")
	ErrSessionIDRequired = errors.New("session id is required")

	errMissingDep = errors.New("missing dependency")
)

// Kind classifies live pipeline failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindPrecondition
	KindCapture
	KindEncoding
	KindNetwork
	KindBackend
	KindMalformed
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindPrecondition: "precondition",
	KindCapture:      "capture",
	KindEncoding:     "encoding",
	KindNetwork:      "network",
	KindBackend:      "backend",
	KindMalformed:    "malformed_response",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified pipeline failure.
// Every kind but KindPrecondition is recovered inside the cycle that produced it.
type Error struct {
	Kind   Kind
	Op     string
	Status int // backend HTTP status, KindBackend only
	Err    error
}

func (err *Error) Error() string {
	msg := err.Op + ": " + err.Kind.String()
	if err.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", err.Status)
	}
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *Error) Unwrap() error {
	return err.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func PreconditionError(op string, err error) error {
	return newError(KindPrecondition, op, err)
}

func CaptureError(err error) error {
	return newError(KindCapture, "capture", err)
}

func EncodingError(err error) error {
	return newError(KindEncoding, "preprocess", err)
}

func NetworkError(err error) error {
	return newError(KindNetwork, "submit", err)
}

func BackendError(status int, err error) error {
	return &Error{Kind: KindBackend, Op: "submit", Status: status, Err: err}
}

func MalformedResponse(err error) error {
	return newError(KindMalformed, "submit", err)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return KindUnknown
}

func IsPrecondition(err error) bool {
	return KindOf(err) == KindPrecondition
}
