// Package stripefile implements the compatibility and merge core of the
// stripefile columnar table-file format: the closed version and
// writer-generation model that decides whether files from different writers
// are binary-compatible, and a physical merge that concatenates compatible
// files stripe by stripe without re-encoding anything.
package stripefile

import (
	"stripefile/format"
	"stripefile/persistent"
)

// Reader is the read-side collaborator the merge consumes. Column decoding
// lives behind it; the merge only ever asks for footer fields and raw byte
// ranges.
type Reader interface {
	Schema() format.Schema
	CompressionKind() format.CompressionKind
	CompressionBufferSize() int
	RowIndexStride() int
	FormatVersion() format.Version
	WriterVersion() format.WriterVersion
	Stripes() []format.StripeInfo
	MetadataKeys() []string
	MetadataValue(key string) []byte
	ReadRange(off int64, buf []byte) error
	Close() error
}

// Writer is the write-side collaborator. Close commits the output file;
// Abort discards it. Exactly one of the two ends a writer's life.
type Writer interface {
	AppendStripe(data []byte, info format.StripeInfo) error
	AddUserMetadata(key string, value []byte) error
	IncreaseCompressionBufferSize(size int) error
	Close() error
	Abort() error
}

var (
	_ Reader = (*persistent.Reader)(nil)
	_ Writer = (*persistent.Writer)(nil)
)

// CreateReader opens a table file for reading.
func CreateReader(path string) (*persistent.Reader, error) {
	return persistent.OpenReader(path)
}

// CreateWriter validates the configuration and creates a table file writer.
func CreateWriter(path string, cfg WriterConfig) (*persistent.Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return persistent.CreateWriter(path, persistent.Options{
		Schema:                cfg.Schema,
		Compression:           cfg.Compression,
		CompressionBufferSize: cfg.CompressionBufferSize,
		RowIndexStride:        cfg.RowIndexStride,
		Version:               cfg.Version,
		WriterVersion:         cfg.WriterVersion,
	})
}
