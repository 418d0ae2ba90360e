package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if result := test.class.String(); result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"no connection", ErrNoConnection, true},
		{"io", ErrIO, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"invalid argument", ErrInvalidArgument, false},
		{"network in message", fmt.Errorf("network unreachable"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("x")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("x")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := IsTransient(test.err); result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid argument", ErrInvalidArgument, true},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"not initialized", ErrNotInitialized, true},
		{"parsing failed", fmt.Errorf("decode: %w", ErrParsingFailed), true},
		{"timeout", ErrConnectionTimeout, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := IsInvalid(test.err); result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil", nil, ErrorTransient},
		{"not initialized", ErrNotInitialized, ErrorInvalid},
		{"shutting down", ErrShuttingDown, ErrorFatal},
		{"io", ErrIO, ErrorTransient},
		{"unknown", fmt.Errorf("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := Classify(test.err); result != test.expected {
				t.Errorf("expected %v, got %v", test.expected, result)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "C", "M", "a") != nil {
		t.Fatal("expected nil for nil error")
	}

	err := Wrap(ErrNotFound, "FileRequest", "InputStream", "open file")
	if err.Error() != "FileRequest.InputStream: open file failed: resource not found" {
		t.Errorf("unexpected message: %s", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected wrapped error to match ErrNotFound")
	}
}

func TestWrapClassified(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.wrap(nil, "C", "M", "a") != nil {
				t.Fatal("expected nil for nil error")
			}

			err := test.wrap(ErrIO, "Unit", "acquire", "read body")
			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ClassifiedError, got %T", err)
			}
			if ce.Class != test.class {
				t.Errorf("expected class %v, got %v", test.class, ce.Class)
			}
			if ce.Component != "Unit" || ce.Operation != "acquire" {
				t.Errorf("unexpected component/operation: %s/%s", ce.Component, ce.Operation)
			}
			if !strings.Contains(err.Error(), "Unit.acquire: read body failed") {
				t.Errorf("unexpected message: %s", err)
			}
			if !errors.Is(err, ErrIO) {
				t.Error("expected chain to contain ErrIO")
			}
		})
	}
}

func TestClassifiedError_NoMessage(t *testing.T) {
	ce := &ClassifiedError{Class: ErrorInvalid, Err: ErrInvalidArgument}
	if ce.Error() != ErrInvalidArgument.Error() {
		t.Errorf("expected underlying message, got %s", ce.Error())
	}
}

func TestIOKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected IOKind
	}{
		{"nil", nil, IOKindNone},
		{"sentinel timeout", ErrConnectionTimeout, IOKindTimeout},
		{"deadline", context.DeadlineExceeded, IOKindTimeout},
		{"os deadline", os.ErrDeadlineExceeded, IOKindTimeout},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), IOKindTimeout},
		{"not found sentinel", WrapTransient(ErrNotFound, "S3", "InputStream", "get object"), IOKindNotFound},
		{"missing file", &fs.PathError{Op: "open", Path: "/nope", Err: fs.ErrNotExist}, IOKindNotFound},
		{"generic", fmt.Errorf("connection reset"), IOKindGeneric},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if kind := IOKindOf(test.err); kind != test.expected {
				t.Errorf("expected %v, got %v", test.expected, kind)
			}
		})
	}
}

func TestIOKind_String(t *testing.T) {
	if IOKindNotFound.String() != "not_found" || IOKind(42).String() != "unknown" {
		t.Error("unexpected IOKind names")
	}
}

func BenchmarkClassify(b *testing.B) {
	err := Wrap(ErrIO, "Unit", "acquire", "read")
	for i := 0; i < b.N; i++ {
		Classify(err)
	}
}
