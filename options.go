package stripefile

import (
	"github.com/pkg/errors"

	"stripefile/format"
	"stripefile/utils"
)

const (
	DefaultCompressionBufferSize = 256 << 10
	DefaultRowIndexStride        = 10000
)

// WriterConfig is an immutable writer configuration, built once and validated
// at construction rather than at point of use. A merge overrides Schema,
// Compression, CompressionBufferSize, RowIndexStride, Version and
// WriterVersion with the first accepted input's actual values, whatever the
// caller requested for them.
type WriterConfig struct {
	Schema                format.Schema
	Compression           format.CompressionKind
	CompressionBufferSize int
	RowIndexStride        int
	Version               format.Version
	WriterVersion         format.WriterVersion

	// EnforceBufferSize makes encoding writers use CompressionBufferSize
	// as-is instead of estimating their own. The merge turns it on whenever
	// the baseline compression kind is not None, so copied stripes stay
	// decompressible.
	EnforceBufferSize bool
}

// DefaultWriterConfig returns the configuration this build writes with.
func DefaultWriterConfig(schema format.Schema) WriterConfig {
	return WriterConfig{
		Schema:                schema,
		Compression:           format.CompressionZstd,
		CompressionBufferSize: DefaultCompressionBufferSize,
		RowIndexStride:        DefaultRowIndexStride,
		Version:               format.CurrentVersion,
		WriterVersion:         format.CurrentWriterVersion,
	}
}

func (c WriterConfig) Validate() error {
	if len(c.Schema.Columns) == 0 {
		return errors.Wrap(utils.ErrConfiguration, "schema must have at least one column")
	}
	if c.CompressionBufferSize <= 0 {
		return errors.Wrapf(utils.ErrConfiguration, "compression buffer size %d must be positive", c.CompressionBufferSize)
	}
	if c.RowIndexStride < 0 {
		return errors.Wrapf(utils.ErrConfiguration, "row index stride %d must not be negative", c.RowIndexStride)
	}
	if c.Version == format.VersionFuture {
		return errors.Wrap(utils.ErrConfiguration, "can't write a future format version")
	}
	if c.WriterVersion == format.WriterVersionFuture {
		return errors.Wrap(utils.ErrConfiguration, "can't write a future writer version")
	}
	return nil
}
