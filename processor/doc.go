// Package processor defines how a response body becomes a typed result.
//
// A Processor[T] parses one body and exposes the result. Callers rarely write
// one directly; they hand the pipeline a Descriptor[T], which builds a fresh
// processor for every execution.
//
// Data receivers advertise one of two capabilities:
//
//	type Feed struct{ Items []Item }
//	func (f *Feed) FillFromReader(r io.Reader) error { return json.NewDecoder(r).Decode(f) }
//
//	type Banner struct{ Text string }
//	func (b *Banner) FillFromString(s string) error { b.Text = s; return nil }
//
// Describe probes an instance and picks the variant, preferring a type that
// implements Processor itself, then ReaderFiller, then StringFiller:
//
//	desc, err := processor.Describe(func() *Feed { return &Feed{} })
//
// The string variant reads the whole body, decodes it (UTF-8 unless
// WithCharset says otherwise) and skips the receiver with a warning when the
// body is absent or empty.
//
// JSON, YAML and Raw are ready-made full processors. Registry names
// descriptors so a command line can pick one by format.
package processor
