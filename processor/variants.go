package processor

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/c360/dataprocessor/errors"
)

// bytesProcessor hands the body straight to the receiver.
type bytesProcessor[T any] struct {
	target T
	fill   ReaderFiller
}

func (p *bytesProcessor[T]) Parse(r io.Reader) error {
	if err := p.fill.FillFromReader(r); err != nil {
		return errors.Wrap(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err), "bytesProcessor", "Parse", "fill receiver")
	}
	return nil
}

func (p *bytesProcessor[T]) Result() T { return p.target }

// StringOption configures string decoding.
type StringOption func(*stringOptions)

type stringOptions struct {
	encoding encoding.Encoding // nil means UTF-8
	charset  string
	unknown  bool
}

// WithCharset decodes the body from the named charset ("utf-8", "iso-8859-1",
// "windows-1251", ...) instead of UTF-8. Unknown names keep UTF-8 and are
// reported when the processor is built.
func WithCharset(name string) StringOption {
	return func(o *stringOptions) {
		o.charset = name
		o.encoding = nil
		o.unknown = false
		if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
			return
		}
		enc, err := htmlindex.Get(name)
		if err != nil {
			o.unknown = true
			return
		}
		o.encoding = enc
	}
}

// stringProcessor buffers the whole body, decodes it and hands the text to
// the receiver. An absent or empty body leaves the receiver untouched.
type stringProcessor[T any] struct {
	target T
	fill   StringFiller
	logger *slog.Logger
	enc    encoding.Encoding
}

func newStringProcessor[T any](target T, fill StringFiller, logger *slog.Logger, opts []StringOption) *stringProcessor[T] {
	var o stringOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.unknown {
		logger.Warn("unknown charset, decoding as UTF-8", "charset", o.charset)
	}
	return &stringProcessor[T]{target: target, fill: fill, logger: logger, enc: o.encoding}
}

func (p *stringProcessor[T]) Parse(r io.Reader) error {
	if r == nil {
		p.logger.Warn("no input stream to decode", "receiver", fmt.Sprintf("%T", p.target))
		return nil
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrIO, err), "stringProcessor", "Parse", "read body")
	}
	if len(body) == 0 {
		p.logger.Warn("input stream is empty", "receiver", fmt.Sprintf("%T", p.target))
		return nil
	}

	text, err := p.decode(body)
	if err != nil {
		return errors.Wrap(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err), "stringProcessor", "Parse", "decode body")
	}

	if err := p.fill.FillFromString(text); err != nil {
		return errors.Wrap(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err), "stringProcessor", "Parse", "fill receiver")
	}
	return nil
}

func (p *stringProcessor[T]) decode(body []byte) (string, error) {
	if p.enc == nil {
		body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
		return strings.ToValidUTF8(string(body), "�"), nil
	}
	decoded, err := p.enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func (p *stringProcessor[T]) Result() T { return p.target }
