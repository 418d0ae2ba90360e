package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/dataprocessor/errors"
)

// ObjectStore returns the named object store bucket, creating it when it
// does not exist. The result satisfies request.ObjectGetter.
func (c *Client) ObjectStore(ctx context.Context, bucket string) (jetstream.ObjectStore, error) {
	if bucket == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Client", "ObjectStore", "bucket name is empty")
	}
	if c.Status() == StatusCircuitOpen {
		return nil, ErrCircuitOpen
	}

	js, err := c.JetStream()
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "ObjectStore", "get jetstream")
	}

	store, err := js.ObjectStore(ctx, bucket)
	if err == nil {
		c.resetCircuit()
		return store, nil
	}
	if !stderrors.Is(err, jetstream.ErrBucketNotFound) {
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "ObjectStore", fmt.Sprintf("open bucket %s", bucket))
	}

	store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: bucket})
	if err != nil {
		if !isAlreadyExistsError(err) {
			c.recordFailure()
			return nil, errors.WrapTransient(err, "Client", "ObjectStore", fmt.Sprintf("create bucket %s", bucket))
		}
		// created concurrently by another client
		store, err = js.ObjectStore(ctx, bucket)
		if err != nil {
			c.recordFailure()
			return nil, errors.Wrap(err, "Client", "ObjectStore", fmt.Sprintf("access existing bucket %s", bucket))
		}
	} else {
		c.logger.Info("created object store bucket", "bucket", bucket)
	}

	c.resetCircuit()
	return store, nil
}

// PutObject stores data under name in bucket.
func (c *Client) PutObject(ctx context.Context, bucket, name string, data []byte) error {
	store, err := c.ObjectStore(ctx, bucket)
	if err != nil {
		return err
	}
	if _, err := store.PutBytes(ctx, name, data); err != nil {
		return errors.WrapTransient(err, "Client", "PutObject", fmt.Sprintf("put %s/%s", bucket, name))
	}
	return nil
}
