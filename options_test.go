package stripefile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripefile/format"
	"stripefile/utils"
)

func TestWriterConfigValidate(t *testing.T) {
	require.NoError(t, DefaultWriterConfig(testSchema()).Validate())

	cfg := DefaultWriterConfig(format.Schema{})
	assert.ErrorIs(t, cfg.Validate(), utils.ErrConfiguration)

	cfg = DefaultWriterConfig(testSchema())
	cfg.CompressionBufferSize = 0
	assert.ErrorIs(t, cfg.Validate(), utils.ErrConfiguration)

	cfg = DefaultWriterConfig(testSchema())
	cfg.RowIndexStride = -1
	assert.ErrorIs(t, cfg.Validate(), utils.ErrConfiguration)

	cfg = DefaultWriterConfig(testSchema())
	cfg.Version = format.VersionFuture
	assert.ErrorIs(t, cfg.Validate(), utils.ErrConfiguration)

	cfg = DefaultWriterConfig(testSchema())
	cfg.WriterVersion = format.WriterVersionFuture
	assert.ErrorIs(t, cfg.Validate(), utils.ErrConfiguration)
}

func TestCreateWriterRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultWriterConfig(testSchema())
	cfg.WriterVersion = format.WriterVersionFuture

	_, err := CreateWriter(utils.TableFileName(t.TempDir(), 1), cfg)
	require.ErrorIs(t, err, utils.ErrConfiguration)
}
