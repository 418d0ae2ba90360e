package processor

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/c360/dataprocessor/errors"
)

// Processor turns one response body into a typed result. A Processor is built
// fresh for every execution and Parse is called at most once. Result is valid
// after Parse returns, whether or not Parse succeeded.
type Processor[T any] interface {
	Parse(r io.Reader) error
	Result() T
}

// ReaderFiller is a data receiver that consumes the raw body itself.
type ReaderFiller interface {
	FillFromReader(r io.Reader) error
}

// StringFiller is a data receiver that wants the whole body as decoded text.
type StringFiller interface {
	FillFromString(s string) error
}

// Kind identifies which processor variant a descriptor builds.
type Kind int

const (
	KindInvalid Kind = iota
	// KindCustom is a type that implements Processor itself.
	KindCustom
	// KindBytes wraps a ReaderFiller.
	KindBytes
	// KindString wraps a StringFiller.
	KindString
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindCustom:
		return "custom"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Descriptor says how to build the processor for result type T. The zero
// Descriptor is invalid.
type Descriptor[T any] struct {
	kind    Kind
	name    string
	options []StringOption
	build   func(logger *slog.Logger, opts []StringOption) Processor[T]
}

// Kind returns the variant this descriptor builds.
func (d Descriptor[T]) Kind() Kind { return d.kind }

// Name is used in log lines and metric labels.
func (d Descriptor[T]) Name() string { return d.name }

// Valid reports whether New can build a processor.
func (d Descriptor[T]) Valid() bool { return d.kind != KindInvalid && d.build != nil }

// WithStringOptions returns a copy whose string processors apply opts.
// Other kinds ignore them.
func (d Descriptor[T]) WithStringOptions(opts ...StringOption) Descriptor[T] {
	d.options = append(append([]StringOption(nil), d.options...), opts...)
	return d
}

// New builds a fresh processor.
func (d Descriptor[T]) New(logger *slog.Logger) (Processor[T], error) {
	if !d.Valid() {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Descriptor", "New", "build processor from empty descriptor")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return d.build(logger, d.options), nil
}

// Describe inspects one instance from factory and picks a variant in priority
// order: the instance's own Processor implementation, then ReaderFiller, then
// StringFiller. A type with none of these is rejected.
func Describe[T any](factory func() T) (Descriptor[T], error) {
	if factory == nil {
		return Descriptor[T]{}, errors.WrapInvalid(errors.ErrInvalidArgument, "processor", "Describe", "nil factory")
	}

	probe := factory()
	name := fmt.Sprintf("%T", probe)

	switch any(probe).(type) {
	case Processor[T]:
		return Descriptor[T]{
			kind: KindCustom,
			name: name,
			build: func(*slog.Logger, []StringOption) Processor[T] {
				return any(factory()).(Processor[T])
			},
		}, nil
	case ReaderFiller:
		return Descriptor[T]{
			kind: KindBytes,
			name: name,
			build: func(*slog.Logger, []StringOption) Processor[T] {
				target := factory()
				return &bytesProcessor[T]{target: target, fill: any(target).(ReaderFiller)}
			},
		}, nil
	case StringFiller:
		return Descriptor[T]{
			kind: KindString,
			name: name,
			build: func(logger *slog.Logger, opts []StringOption) Processor[T] {
				target := factory()
				return newStringProcessor(target, any(target).(StringFiller), logger, opts)
			},
		}, nil
	}

	return Descriptor[T]{}, errors.WrapInvalid(
		fmt.Errorf("%w: %s implements neither Processor, ReaderFiller nor StringFiller", errors.ErrInvalidArgument, name),
		"processor", "Describe", "inspect result type")
}

// MustDescribe is Describe for package-level descriptors; it panics on error.
func MustDescribe[T any](factory func() T) Descriptor[T] {
	d, err := Describe(factory)
	if err != nil {
		panic(err)
	}
	return d
}

// Custom wraps a factory of full processors whose result type differs from the
// processor type.
func Custom[T any](name string, factory func() Processor[T]) Descriptor[T] {
	if factory == nil {
		return Descriptor[T]{}
	}
	return Descriptor[T]{
		kind:  KindCustom,
		name:  name,
		build: func(*slog.Logger, []StringOption) Processor[T] { return factory() },
	}
}

// Bytes is the statically typed form of Describe for ReaderFiller receivers.
func Bytes[T ReaderFiller](factory func() T) Descriptor[T] {
	if factory == nil {
		return Descriptor[T]{}
	}
	return Descriptor[T]{
		kind: KindBytes,
		name: fmt.Sprintf("%T", *new(T)),
		build: func(*slog.Logger, []StringOption) Processor[T] {
			target := factory()
			return &bytesProcessor[T]{target: target, fill: target}
		},
	}
}

// String is the statically typed form of Describe for StringFiller receivers.
func String[T StringFiller](factory func() T) Descriptor[T] {
	if factory == nil {
		return Descriptor[T]{}
	}
	return Descriptor[T]{
		kind: KindString,
		name: fmt.Sprintf("%T", *new(T)),
		build: func(logger *slog.Logger, opts []StringOption) Processor[T] {
			target := factory()
			return newStringProcessor(target, target, logger, opts)
		},
	}
}

// Erase converts a descriptor to one producing any, for callers that select
// the result type at run time.
func Erase[T any](d Descriptor[T]) Descriptor[any] {
	if !d.Valid() {
		return Descriptor[any]{}
	}
	return Descriptor[any]{
		kind:    d.kind,
		name:    d.name,
		options: d.options,
		build: func(logger *slog.Logger, opts []StringOption) Processor[any] {
			return erased[T]{inner: d.build(logger, opts)}
		},
	}
}

type erased[T any] struct {
	inner Processor[T]
}

func (e erased[T]) Parse(r io.Reader) error { return e.inner.Parse(r) }
func (e erased[T]) Result() any             { return e.inner.Result() }
