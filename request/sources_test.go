package request

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/dataprocessor/errors"
)

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("local bytes"), 0o600))

	req := NewFile(path, WithRewriteCacheFile("copy.txt"))
	assert.Equal(t, "copy.txt", req.CacheFile())
	assert.True(t, req.RewriteCacheFile())

	body, err := req.InputStream(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local bytes", readAll(t, body))
	assert.Equal(t, StatusFileSuccess, req.StatusCode())
	assert.True(t, IsSuccess(req.StatusCode()))

	// the unit closes the stream first, then the request
	require.NoError(t, body.Close())
	require.NoError(t, req.Close())
}

func TestFile_Missing(t *testing.T) {
	req := NewFile(filepath.Join(t.TempDir(), "absent.txt"), WithCacheFile("c.txt"))
	assert.False(t, req.RewriteCacheFile())

	_, err := req.InputStream(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, errors.IOKindNotFound, errors.IOKindOf(err))
	assert.Equal(t, StatusError, req.StatusCode())
	assert.NoError(t, req.Close())
}

func TestFile_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFile("whatever.txt").InputStream(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeObjectResult struct {
	io.Reader
	closed bool
}

func (f *fakeObjectResult) Close() error                         { f.closed = true; return nil }
func (f *fakeObjectResult) Info() (*jetstream.ObjectInfo, error) { return &jetstream.ObjectInfo{}, nil }
func (f *fakeObjectResult) Error() error                         { return nil }

type fakeObjectStore struct {
	objects map[string]string
	err     error
	opened  *fakeObjectResult
}

func (f *fakeObjectStore) Get(_ context.Context, name string, _ ...jetstream.GetObjectOpt) (jetstream.ObjectResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[name]
	if !ok {
		return nil, jetstream.ErrObjectNotFound
	}
	f.opened = &fakeObjectResult{Reader: strings.NewReader(data)}
	return f.opened, nil
}

func TestObject(t *testing.T) {
	store := &fakeObjectStore{objects: map[string]string{"report.json": `{"ok":true}`}}

	req := NewObject(store, "report.json")
	body, err := req.InputStream(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, readAll(t, body))
	assert.Equal(t, StatusFileSuccess, req.StatusCode())
	require.NoError(t, req.Close())
	assert.True(t, store.opened.closed)

	missing := NewObject(store, "absent")
	_, err = missing.InputStream(context.Background())
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, StatusError, missing.StatusCode())

	broken := NewObject(&fakeObjectStore{err: stderrors.New("stream unavailable")}, "x")
	_, err = broken.InputStream(context.Background())
	assert.ErrorIs(t, err, errors.ErrIO)
	assert.Equal(t, errors.IOKindGeneric, errors.IOKindOf(err))

	disconnected := NewObject(nil, "x")
	_, err = disconnected.InputStream(context.Background())
	assert.ErrorIs(t, err, errors.ErrNoConnection)
	assert.Equal(t, StatusNoConnection, disconnected.StatusCode())
}

type fakeS3 struct {
	body string
	err  error
	in   *s3.GetObjectInput
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func responseError(status int, err error) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      err,
		},
	}
}

func TestS3(t *testing.T) {
	client := &fakeS3{body: "archived"}
	req := NewS3(client, "bucket", "2024/report.csv")
	assert.Equal(t, "s3://bucket/2024/report.csv", req.String())

	body, err := req.InputStream(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "archived", readAll(t, body))
	assert.Equal(t, http.StatusOK, req.StatusCode())
	assert.Equal(t, "bucket", *client.in.Bucket)
	assert.Equal(t, "2024/report.csv", *client.in.Key)
	require.NoError(t, req.Close())
}

func TestS3_Errors(t *testing.T) {
	t.Run("no such key", func(t *testing.T) {
		req := NewS3(&fakeS3{err: responseError(http.StatusNotFound, &types.NoSuchKey{})}, "b", "k")
		_, err := req.InputStream(context.Background())
		assert.ErrorIs(t, err, errors.ErrNotFound)
		assert.Equal(t, http.StatusNotFound, req.StatusCode())
		assert.Contains(t, req.StatusMessage(), "NoSuchKey")
	})

	t.Run("no such key without response", func(t *testing.T) {
		req := NewS3(&fakeS3{err: &types.NoSuchKey{}}, "b", "k")
		_, err := req.InputStream(context.Background())
		assert.ErrorIs(t, err, errors.ErrNotFound)
		assert.Equal(t, http.StatusNotFound, req.StatusCode())
	})

	t.Run("access denied", func(t *testing.T) {
		req := NewS3(&fakeS3{err: responseError(http.StatusForbidden, stderrors.New("denied"))}, "b", "k")
		_, err := req.InputStream(context.Background())
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, req.StatusCode())
		assert.Equal(t, errors.IOKindGeneric, errors.IOKindOf(err))
	})

	t.Run("deadline", func(t *testing.T) {
		req := NewS3(&fakeS3{err: context.DeadlineExceeded}, "b", "k")
		_, err := req.InputStream(context.Background())
		assert.ErrorIs(t, err, errors.ErrConnectionTimeout)
		assert.Equal(t, StatusNoConnection, req.StatusCode())
	})
}

type fakeRedis struct {
	values map[string]string
	err    error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestRedis(t *testing.T) {
	client := &fakeRedis{values: map[string]string{"feed:latest": "cached feed"}}

	req := NewRedis(client, "feed:latest", WithTag("feed"))
	body, err := req.InputStream(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached feed", readAll(t, body))
	assert.Equal(t, StatusFileSuccess, req.StatusCode())
	assert.NoError(t, req.Close())

	missing := NewRedis(client, "feed:none")
	_, err = missing.InputStream(context.Background())
	assert.ErrorIs(t, err, errors.ErrNotFound)

	down := NewRedis(&fakeRedis{err: stderrors.New("dial tcp: connection refused")}, "k")
	_, err = down.InputStream(context.Background())
	assert.ErrorIs(t, err, errors.ErrNoConnection)
}

func TestWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "subscribe:prices", string(msg))
		assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"price":10}`)))
		// wait for the client close frame
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	req := NewWebSocket(url, []byte("subscribe:prices"), time.Second)

	body, err := req.InputStream(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"price":10}`, readAll(t, body))
	assert.Equal(t, http.StatusSwitchingProtocols, req.StatusCode())
	assert.NoError(t, req.Close())
}

func TestWebSocket_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	req := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http"), nil, time.Second)
	_, err := req.InputStream(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIO)
	assert.Equal(t, http.StatusUnauthorized, req.StatusCode())
	assert.NoError(t, req.Close())
}
