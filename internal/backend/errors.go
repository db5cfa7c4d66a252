package backend

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/minio/minio-go/v7"
)

// Class is the closed error classification. Connectivity errors are the
// only retryable class; everything else reflects a decision the backend
// already made and retrying cannot change.
type Class string

const (
	ClassInputValidation Class = "input_validation"
	ClassConnectivity    Class = "connectivity"
	ClassNotFound        Class = "not_found"
	ClassAccessDenied    Class = "access_denied"
	ClassUnexpected      Class = "unexpected"
)

// Error carries a classified backend failure with enough context for
// observability. Error() may include backend detail and is meant for logs;
// Message() is safe to show external callers.
type Error struct {
	Class    Class
	Op       string
	Key      string
	Attempts int

	// RetriesExhausted marks a connectivity error whose retry budget ran
	// out.
	RetriesExhausted bool

	cause error
}

// WrapError classifies cause and attaches operation context.
func WrapError(op, key string, attempts int, cause error) *Error {
	return &Error{
		Class:    Classify(cause),
		Op:       op,
		Key:      key,
		Attempts: attempts,
		cause:    cause,
	}
}

// NewInputError reports invalid caller input before any backend attempt.
func NewInputError(op, key, msg string) *Error {
	return &Error{
		Class: ClassInputValidation,
		Op:    op,
		Key:   key,
		cause: errors.New(msg),
	}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %q: %s", e.Op, e.Key, e.Class)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.RetriesExhausted {
		msg += " (retries exhausted)"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Message returns a caller-safe description that never leaks endpoint
// addresses or credentials.
func (e *Error) Message() string {
	switch e.Class {
	case ClassInputValidation:
		if e.cause != nil {
			return e.cause.Error()
		}
		return "invalid input"
	case ClassNotFound:
		return "object not found"
	case ClassAccessDenied:
		return "access to backend denied"
	case ClassConnectivity:
		if e.RetriesExhausted {
			return "backend unreachable, retries exhausted"
		}
		return "backend unreachable"
	default:
		return "internal error"
	}
}

// ClassOf extracts the classification from any error. Unclassified errors
// report ClassUnexpected.
func ClassOf(err error) Class {
	var be *Error
	if errors.As(err, &be) {
		return be.Class
	}
	return ClassUnexpected
}

// Classify maps a raw backend or transport error onto the closed taxonomy.
// This is the single place error strings and types are interpreted.
func Classify(err error) Class {
	if err == nil {
		return ClassUnexpected
	}

	var be *Error
	if errors.As(err, &be) {
		return be.Class
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassConnectivity
	}

	if resp := minio.ToErrorResponse(err); resp.Code != "" {
		switch resp.Code {
		case "NoSuchKey", "NoSuchBucket":
			return ClassNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return ClassAccessDenied
		case "RequestTimeout", "SlowDown":
			return ClassConnectivity
		default:
			return ClassUnexpected
		}
	}

	// DNS failures, refused connections, timeouts and other transport
	// faults all surface as net.Error somewhere in the chain.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassConnectivity
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassConnectivity
	}

	return ClassUnexpected
}
