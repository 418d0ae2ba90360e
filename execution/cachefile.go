package execution

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/c360/dataprocessor/errors"
	"github.com/c360/dataprocessor/metric"
)

const copyBufferSize = 8 * 1024

// acquire returns the byte source for the processor. With a cache file
// configured the body goes through that file; reused is true when an existing
// file was read instead of fetching.
func (u *Unit[T]) acquire(ctx context.Context) (stream io.ReadCloser, reused bool, err error) {
	path := u.req.CacheFile()
	if path == "" {
		stream, err = u.req.InputStream(ctx)
		return stream, false, err
	}

	reused, err = u.fillCacheFile(ctx, path)
	if err != nil {
		return nil, false, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%w: %s", errors.ErrNotFound, path)
		} else {
			err = fmt.Errorf("%w: %v", errors.ErrIO, err)
		}
		return nil, false, errors.Wrap(err, "Unit", "acquire", "open cache file")
	}
	return f, reused, nil
}

// fillCacheFile copies the request body into path. An existing non-empty file
// is kept unless the request asks for a rewrite.
func (u *Unit[T]) fillCacheFile(ctx context.Context, path string) (bool, error) {
	if !u.req.RewriteCacheFile() {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			u.logger.Warn("cache file exists, skipping fetch", "file", path, "size", info.Size())
			u.metrics.RecordOutcome(metric.OutcomeCacheFileSkip)
			return true, nil
		}
	}

	src, err := u.req.InputStream(ctx)
	if err != nil {
		return false, err
	}
	defer src.Close()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, errors.Wrap(fmt.Errorf("%w: %v", errors.ErrIO, err), "Unit", "fillCacheFile", "create directory")
		}
	}

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return false, errors.Wrap(fmt.Errorf("%w: %v", errors.ErrIO, err), "Unit", "fillCacheFile", "create file")
	}

	written, err := io.CopyBuffer(dst, src, make([]byte, copyBufferSize))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// a truncated file would be reused by the next run
		_ = os.Remove(path)
		return false, errors.Wrap(fmt.Errorf("%w: %w", errors.ErrIO, err), "Unit", "fillCacheFile", "write file")
	}

	u.logger.Debug("cache file written", "file", path, "bytes", written)
	return false, nil
}
