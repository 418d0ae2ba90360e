package request

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/c360/dataprocessor/errors"
)

// RedisGetter is the part of redis.Cmdable used by Redis.
type RedisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Redis reads the value of one key.
type Redis struct {
	Base
	client RedisGetter
	key    string
}

// NewRedis returns a request for key.
func NewRedis(client RedisGetter, key string, opts ...Option) *Redis {
	r := &Redis{client: client, key: key}
	r.init(opts)
	return r
}

// InputStream fetches the value.
func (r *Redis) InputStream(ctx context.Context) (io.ReadCloser, error) {
	r.markStarted()
	r.logCall("redis", r.key)

	if r.client == nil {
		r.setStatus(StatusNoConnection, noConnectionMessage)
		return nil, errors.WrapTransient(errors.ErrNoConnection, "Redis", "InputStream", "get key")
	}

	value, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		r.setStatus(StatusError, err.Error())
		if stderrors.Is(err, redis.Nil) {
			return nil, errors.Wrap(fmt.Errorf("%w: key %s", errors.ErrNotFound, r.key),
				"Redis", "InputStream", "get key")
		}
		return nil, classifyTransportError(err, "Redis")
	}

	r.setStatus(StatusFileSuccess, "OK")
	return io.NopCloser(bytes.NewReader(value)), nil
}

// Close is a no-op; the client connection is owned by the caller.
func (r *Redis) Close() error {
	return r.closeWith(nil)
}

// String returns the key.
func (r *Redis) String() string { return "redis:" + r.key }
