package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors, typically transport failures
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors caused by caller input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for the pipeline
var (
	// Facade lifecycle
	ErrNotInitialized = errors.New("data processor not initialized")
	ErrShuttingDown   = errors.New("data processor is shutting down")

	// Caller mistakes detected before any I/O
	ErrInvalidArgument = errors.New("invalid argument")

	// Configuration
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Stream acquisition
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrNoConnection      = errors.New("no connection available")
	ErrNotFound          = errors.New("resource not found")
	ErrIO                = errors.New("i/o failure")

	// Processing
	ErrParsingFailed = errors.New("parsing failed")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// classOf returns the class recorded by the nearest ClassifiedError in the
// chain of err.
func classOf(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// transientHints mark unclassified third-party errors as transient.
var transientHints = []string{"timeout", "connection", "network", "temporary", "unavailable"}

// IsTransient reports whether err is a temporary failure. Unclassified
// errors are matched against the transport sentinels, context errors and
// common wording from network libraries.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorTransient
	}
	if isAny(err, ErrConnectionTimeout, ErrNoConnection, ErrIO, context.DeadlineExceeded, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// IsFatal reports whether err is unrecoverable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorFatal
	}
	return errors.Is(err, ErrShuttingDown)
}

// IsInvalid reports whether err was caused by invalid input or configuration.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorInvalid
	}
	return isAny(err, ErrInvalidArgument, ErrInvalidConfig, ErrMissingConfig, ErrNotInitialized, ErrParsingFailed)
}

// Classify returns the class of err; anything neither invalid nor fatal is
// transient, nil included.
func Classify(err error) ErrorClass {
	switch {
	case IsInvalid(err):
		return ErrorInvalid
	case IsFatal(err):
		return ErrorFatal
	default:
		return ErrorTransient
	}
}

// Wrap adds context in the form "component.method: action failed: %w".
// A nil err stays nil.
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapAs(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient is Wrap plus the transient class.
func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, err, component, method, action)
}

// WrapFatal is Wrap plus the fatal class.
func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, err, component, method, action)
}

// WrapInvalid is Wrap plus the invalid class.
func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, err, component, method, action)
}

// IOKind distinguishes the stream acquisition failures the execution unit
// reports separately.
type IOKind int

const (
	// IOKindNone means the error is not a stream acquisition failure
	IOKindNone IOKind = iota
	// IOKindTimeout is a connect or read timeout
	IOKindTimeout
	// IOKindNotFound is a missing file, object or key
	IOKindNotFound
	// IOKindGeneric is any other I/O failure
	IOKindGeneric
)

// String returns the string representation of IOKind
func (k IOKind) String() string {
	switch k {
	case IOKindNone:
		return "none"
	case IOKindTimeout:
		return "timeout"
	case IOKindNotFound:
		return "not_found"
	case IOKindGeneric:
		return "io"
	default:
		return "unknown"
	}
}

// IOKindOf classifies a stream acquisition error.
func IOKindOf(err error) IOKind {
	if err == nil {
		return IOKindNone
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return IOKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return IOKindTimeout
	}

	if errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return IOKindNotFound
	}

	return IOKindGeneric
}
