package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/c360/dataprocessor/errors"
)

// JSONOption configures the JSON processor.
type JSONOption func(*jsonConfig)

type jsonConfig struct {
	schema          *gojsonschema.Schema
	schemaErr       error
	disallowUnknown bool
}

// WithSchema validates every body against a JSON Schema document before
// decoding. A schema that fails to compile makes every Parse fail.
func WithSchema(schemaJSON string) JSONOption {
	return func(c *jsonConfig) {
		c.schema, c.schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	}
}

// WithDisallowUnknownFields rejects object keys with no matching struct field.
func WithDisallowUnknownFields() JSONOption {
	return func(c *jsonConfig) { c.disallowUnknown = true }
}

// JSON decodes the body into a fresh T. For T = any, objects become
// map[string]any and arrays []any.
func JSON[T any](opts ...JSONOption) Descriptor[T] {
	var cfg jsonConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return Descriptor[T]{
		kind: KindCustom,
		name: fmt.Sprintf("json(%T)", *new(T)),
		build: func(*slog.Logger, []StringOption) Processor[T] {
			return &jsonProcessor[T]{cfg: cfg}
		},
	}
}

type jsonProcessor[T any] struct {
	cfg    jsonConfig
	result T
}

func (p *jsonProcessor[T]) Parse(r io.Reader) error {
	if r == nil {
		return errors.Wrap(fmt.Errorf("%w: no input", errors.ErrParsingFailed), "jsonProcessor", "Parse", "read body")
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrIO, err), "jsonProcessor", "Parse", "read body")
	}

	if p.cfg.schemaErr != nil {
		return errors.WrapInvalid(p.cfg.schemaErr, "jsonProcessor", "Parse", "compile schema")
	}
	if p.cfg.schema != nil {
		if err := validateSchema(p.cfg.schema, body); err != nil {
			return errors.Wrap(err, "jsonProcessor", "Parse", "validate schema")
		}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if p.cfg.disallowUnknown {
		dec.DisallowUnknownFields()
	}
	var out T
	if err := dec.Decode(&out); err != nil {
		return errors.Wrap(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err), "jsonProcessor", "Parse", "decode json")
	}
	p.result = out
	return nil
}

func (p *jsonProcessor[T]) Result() T { return p.result }

func validateSchema(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrParsingFailed, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("%w: schema violations: %s", errors.ErrParsingFailed, strings.Join(msgs, "; "))
}

// YAML decodes the body into a fresh T with yaml.v3.
func YAML[T any]() Descriptor[T] {
	return Descriptor[T]{
		kind: KindCustom,
		name: fmt.Sprintf("yaml(%T)", *new(T)),
		build: func(*slog.Logger, []StringOption) Processor[T] {
			return &yamlProcessor[T]{}
		},
	}
}

type yamlProcessor[T any] struct {
	result T
}

func (p *yamlProcessor[T]) Parse(r io.Reader) error {
	if r == nil {
		return errors.Wrap(fmt.Errorf("%w: no input", errors.ErrParsingFailed), "yamlProcessor", "Parse", "read body")
	}
	var out T
	if err := yaml.NewDecoder(r).Decode(&out); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.Wrap(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err), "yamlProcessor", "Parse", "decode yaml")
	}
	p.result = out
	return nil
}

func (p *yamlProcessor[T]) Result() T { return p.result }

// Raw keeps the body as bytes.
func Raw() Descriptor[[]byte] {
	return Descriptor[[]byte]{
		kind: KindCustom,
		name: "raw",
		build: func(*slog.Logger, []StringOption) Processor[[]byte] {
			return &rawProcessor{}
		},
	}
}

type rawProcessor struct {
	body []byte
}

func (p *rawProcessor) Parse(r io.Reader) error {
	if r == nil {
		return nil
	}
	body, err := io.ReadAll(r)
	p.body = body
	if err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrIO, err), "rawProcessor", "Parse", "read body")
	}
	return nil
}

func (p *rawProcessor) Result() []byte { return p.body }

// Text is a StringFiller that keeps the decoded body verbatim.
type Text struct {
	Value string
}

// FillFromString stores s.
func (t *Text) FillFromString(s string) error {
	t.Value = s
	return nil
}

// String returns the stored text.
func (t *Text) String() string { return t.Value }
