package request

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/dataprocessor/errors"
)

// ObjectGetter is the part of jetstream.ObjectStore used by Object.
type ObjectGetter interface {
	Get(ctx context.Context, name string, opts ...jetstream.GetObjectOpt) (jetstream.ObjectResult, error)
}

// Object reads one object from a NATS JetStream object store bucket.
type Object struct {
	Base
	store ObjectGetter
	name  string

	result jetstream.ObjectResult
}

// NewObject returns a request for the object name in store.
func NewObject(store ObjectGetter, name string, opts ...Option) *Object {
	o := &Object{store: store, name: name}
	o.init(opts)
	return o
}

// InputStream opens the object for reading.
func (o *Object) InputStream(ctx context.Context) (io.ReadCloser, error) {
	o.markStarted()
	o.logCall("object", o.name)

	if o.store == nil {
		o.setStatus(StatusNoConnection, "object store not connected")
		return nil, errors.WrapTransient(errors.ErrNoConnection, "Object", "InputStream", "get object")
	}

	result, err := o.store.Get(ctx, o.name)
	if err != nil {
		o.setStatus(StatusError, err.Error())
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, errors.Wrap(fmt.Errorf("%w: object %s", errors.ErrNotFound, o.name),
				"Object", "InputStream", "get object")
		}
		return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrIO, err),
			"Object", "InputStream", "get object")
	}

	o.result = result
	o.setStatus(StatusFileSuccess, "OK")
	return result, nil
}

// Close releases the object reader.
func (o *Object) Close() error {
	return o.closeWith(func() error {
		if o.result == nil {
			return nil
		}
		return o.result.Close()
	})
}

// String returns the object name.
func (o *Object) String() string { return "object:" + o.name }
