// Package errors provides the error taxonomy shared by the data processor packages.
//
// # Overview
//
// Errors are sorted into three classes: Transient (transport failures, timeouts),
// Invalid (caller mistakes and bad configuration, reported before any I/O) and
// Fatal (the processor is shutting down). Classification works with errors.Is and
// errors.As through arbitrary wrapping chains.
//
// # Sentinels
//
//	ErrNotInitialized     the facade has no usable configuration
//	ErrInvalidArgument    bad descriptor, nil request, mismatched cache key
//	ErrInvalidConfig      configuration rejected by Validate
//	ErrConnectionTimeout  connect or read timeout
//	ErrNotFound           missing file, object or key
//	ErrIO                 any other stream acquisition failure
//	ErrParsingFailed      a processor could not decode the body
//
// # Wrapping
//
// All wrapping follows "component.method: action failed: %w":
//
//	if err := unit.acquire(ctx); err != nil {
//	    return errors.WrapTransient(err, "Unit", "acquire", "open input stream")
//	}
//
// Stream acquisition failures are further split by IOKindOf into timeout,
// not-found and generic kinds, which the execution unit logs and counts
// separately before delivering an empty result.
package errors
