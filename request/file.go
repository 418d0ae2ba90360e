package request

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/c360/dataprocessor/errors"
)

// File reads a local file.
type File struct {
	Base
	path string

	file *os.File
}

// NewFile returns a request for the file at path.
func NewFile(path string, opts ...Option) *File {
	f := &File{path: path}
	f.init(opts)
	return f
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// InputStream opens the file.
func (f *File) InputStream(ctx context.Context) (io.ReadCloser, error) {
	f.markStarted()
	f.logCall("file", f.path)

	if err := ctx.Err(); err != nil {
		f.setStatus(StatusError, err.Error())
		return nil, errors.Wrap(err, "File", "InputStream", "open file")
	}

	file, err := os.Open(f.path)
	if err != nil {
		f.setStatus(StatusError, err.Error())
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(fmt.Errorf("%w: %s", errors.ErrNotFound, f.path),
				"File", "InputStream", "open file")
		}
		return nil, errors.Wrap(fmt.Errorf("%w: %v", errors.ErrIO, err), "File", "InputStream", "open file")
	}

	f.file = file
	f.setStatus(StatusFileSuccess, "OK")
	return file, nil
}

// Close closes the file if it was opened.
func (f *File) Close() error {
	return f.closeWith(func() error {
		if f.file == nil {
			return nil
		}
		if err := f.file.Close(); err != nil && !stderrors.Is(err, os.ErrClosed) {
			return err
		}
		return nil
	})
}

// String returns the file path.
func (f *File) String() string { return f.path }
