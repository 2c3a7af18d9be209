package stripefile

import (
	"io"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripefile/format"
	"stripefile/persistent"
	"stripefile/utils"
)

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testSchema() format.Schema {
	return format.Schema{Columns: []format.Column{
		{Name: "id", Kind: format.KindInt64},
		{Name: "payload", Kind: format.KindBytes},
	}}
}

func inputOptions() persistent.Options {
	return persistent.Options{
		Schema:                testSchema(),
		Compression:           format.CompressionZstd,
		CompressionBufferSize: 64 << 10,
		RowIndexStride:        1000,
		Version:               format.CurrentVersion,
		WriterVersion:         format.CurrentWriterVersion,
	}
}

// writeInput fabricates one merge input through the low-level writer, which
// accepts version pairs the validated configuration would refuse.
func writeInput(t *testing.T, path string, opt persistent.Options,
	stripes [][]byte, metadata map[string][]byte,
) {
	t.Helper()
	w, err := persistent.CreateWriter(path, opt)
	require.NoError(t, err)
	for _, payload := range stripes {
		require.NoError(t, w.AppendStripe(payload, format.StripeInfo{
			Length: int64(len(payload)),
			Rows:   uint64(len(payload)),
		}))
	}
	for k, v := range metadata {
		require.NoError(t, w.AddUserMetadata(k, v))
	}
	require.NoError(t, w.Close())
}

func newTestMerger(opts ...MergerOption) *Merger {
	return NewMerger(DefaultWriterConfig(testSchema()),
		append([]MergerOption{WithLogger(testLogger())}, opts...)...)
}

// readStripe pulls one stripe's payload back out of a merged file.
func readStripe(t *testing.T, r *persistent.Reader, stripe format.StripeInfo) []byte {
	t.Helper()
	buf := make([]byte, stripe.Length)
	require.NoError(t, r.ReadRange(stripe.Offset, buf))
	return buf
}

func TestMergeCompatibleFiles(t *testing.T) {
	dir := t.TempDir()
	in1 := utils.TableFileName(dir, 1)
	in2 := utils.TableFileName(dir, 2)
	in3 := utils.TableFileName(dir, 3)
	out := utils.TableFileName(dir, 100)

	payloads := [][]byte{
		[]byte("stripe-one"), []byte("stripe-two"),
		[]byte("stripe-three"),
		[]byte("stripe-four"),
	}
	writeInput(t, in1, inputOptions(), payloads[0:2], map[string][]byte{"a": []byte("1")})
	writeInput(t, in2, inputOptions(), payloads[2:3], map[string][]byte{"b": []byte("2")})
	writeInput(t, in3, inputOptions(), payloads[3:4], nil)

	accepted, err := newTestMerger(WithMetrics(NewMergeMetrics(nil))).
		Merge(out, []string{in1, in2, in3})
	require.NoError(t, err)
	assert.Equal(t, []string{in1, in2, in3}, accepted)

	r, err := CreateReader(out)
	require.NoError(t, err)
	defer r.Close()

	stripes := r.Stripes()
	require.Len(t, stripes, 4)
	for i, stripe := range stripes {
		assert.Equal(t, payloads[i], readStripe(t, r, stripe),
			"output stripe order must be the concatenation of inputs")
	}
	assert.Equal(t, []string{"a", "b"}, r.MetadataKeys())
	assert.Equal(t, []byte("1"), r.MetadataValue("a"))
	assert.Equal(t, []byte("2"), r.MetadataValue("b"))
	assert.True(t, r.Schema().Equal(testSchema()))
}

func TestMergeFirstFileOverridesRequestedConfig(t *testing.T) {
	dir := t.TempDir()
	in := utils.TableFileName(dir, 1)
	out := utils.TableFileName(dir, 100)

	opt := inputOptions()
	opt.Compression = format.CompressionSnappy
	opt.CompressionBufferSize = 32 << 10
	opt.RowIndexStride = 1234
	opt.Version = format.V1_0
	opt.WriterVersion = format.WriterVersionTimestampUTC
	writeInput(t, in, opt, [][]byte{[]byte("x")}, nil)

	// the requested configuration asks for something entirely different
	cfg := DefaultWriterConfig(testSchema())
	cfg.Compression = format.CompressionLz4
	cfg.RowIndexStride = 9999

	accepted, err := NewMerger(cfg, WithLogger(testLogger())).Merge(out, []string{in})
	require.NoError(t, err)
	require.Equal(t, []string{in}, accepted)

	r, err := CreateReader(out)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, format.CompressionSnappy, r.CompressionKind())
	assert.Equal(t, 32<<10, r.CompressionBufferSize())
	assert.Equal(t, 1234, r.RowIndexStride())
	assert.Equal(t, format.V1_0, r.FormatVersion())
	assert.Equal(t, format.WriterVersionTimestampUTC, r.WriterVersion())
}

func TestMergeSkipsFutureGenerations(t *testing.T) {
	dir := t.TempDir()
	good := utils.TableFileName(dir, 1)
	futureWriter := utils.TableFileName(dir, 2)
	futureFormat := utils.TableFileName(dir, 3)
	out := utils.TableFileName(dir, 100)

	writeInput(t, good, inputOptions(), [][]byte{[]byte("keep")}, nil)

	opt := inputOptions()
	opt.WriterVersion = format.WriterVersionFuture
	writeInput(t, futureWriter, opt, [][]byte{[]byte("drop")}, nil)

	opt = inputOptions()
	opt.Version = format.VersionFuture
	writeInput(t, futureFormat, opt, [][]byte{[]byte("drop")}, nil)

	accepted, err := newTestMerger().Merge(out, []string{futureWriter, good, futureFormat})
	require.NoError(t, err)
	assert.Equal(t, []string{good}, accepted)

	r, err := CreateReader(out)
	require.NoError(t, err)
	defer r.Close()
	stripes := r.Stripes()
	require.Len(t, stripes, 1)
	assert.Equal(t, []byte("keep"), readStripe(t, r, stripes[0]))
}

func TestMergeRejectsCompressionMismatch(t *testing.T) {
	dir := t.TempDir()
	in1 := utils.TableFileName(dir, 1)
	in2 := utils.TableFileName(dir, 2)
	out := utils.TableFileName(dir, 100)

	writeInput(t, in1, inputOptions(), [][]byte{[]byte("zstd")}, nil)
	opt := inputOptions()
	opt.Compression = format.CompressionSnappy
	writeInput(t, in2, opt, [][]byte{[]byte("snappy")}, nil)

	accepted, err := newTestMerger().Merge(out, []string{in1, in2})
	require.NoError(t, err)
	assert.Equal(t, []string{in1}, accepted)

	r, err := CreateReader(out)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.Stripes(), 1)
	assert.Equal(t, []byte("zstd"), readStripe(t, r, r.Stripes()[0]))
}

func TestMergeRejectsWriterVersionMismatch(t *testing.T) {
	// exact equality, not Includes: a generation behind the baseline is out
	// even though the baseline includes all of its fixes
	dir := t.TempDir()
	in1 := utils.TableFileName(dir, 1)
	in2 := utils.TableFileName(dir, 2)
	out := utils.TableFileName(dir, 100)

	writeInput(t, in1, inputOptions(), [][]byte{[]byte("a")}, nil)
	opt := inputOptions()
	opt.WriterVersion = format.WriterVersionTimestampUTC
	writeInput(t, in2, opt, [][]byte{[]byte("b")}, nil)

	accepted, err := newTestMerger().Merge(out, []string{in1, in2})
	require.NoError(t, err)
	assert.Equal(t, []string{in1}, accepted)
}

func TestMergeRejectsStrideMismatch(t *testing.T) {
	dir := t.TempDir()
	in1 := utils.TableFileName(dir, 1)
	in2 := utils.TableFileName(dir, 2)
	out := utils.TableFileName(dir, 100)

	writeInput(t, in1, inputOptions(), [][]byte{[]byte("a")}, nil)
	opt := inputOptions()
	opt.RowIndexStride = 5000
	writeInput(t, in2, opt, [][]byte{[]byte("b")}, nil)

	accepted, err := newTestMerger().Merge(out, []string{in1, in2})
	require.NoError(t, err)
	assert.Equal(t, []string{in1}, accepted)
}

func TestMergeMetadataConflict(t *testing.T) {
	dir := t.TempDir()
	in1 := utils.TableFileName(dir, 1)
	in2 := utils.TableFileName(dir, 2)
	in3 := utils.TableFileName(dir, 3)
	out := utils.TableFileName(dir, 100)

	writeInput(t, in1, inputOptions(), [][]byte{[]byte("a")},
		map[string][]byte{"owner": []byte("alpha")})
	writeInput(t, in2, inputOptions(), [][]byte{[]byte("b")},
		map[string][]byte{"owner": []byte("beta")})
	writeInput(t, in3, inputOptions(), [][]byte{[]byte("c")},
		map[string][]byte{"owner": []byte("alpha"), "extra": []byte("e")})

	accepted, err := newTestMerger().Merge(out, []string{in1, in2, in3})
	require.NoError(t, err)
	assert.Equal(t, []string{in1, in3}, accepted,
		"conflicting value rejected, identical value admitted")

	r, err := CreateReader(out)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []string{"extra", "owner"}, r.MetadataKeys())
	assert.Equal(t, []byte("alpha"), r.MetadataValue("owner"))
}

func TestMergeBufferSizeOnlyGrows(t *testing.T) {
	dir := t.TempDir()
	small := utils.TableFileName(dir, 1)
	large := utils.TableFileName(dir, 2)
	out := utils.TableFileName(dir, 100)

	writeInput(t, small, inputOptions(), [][]byte{[]byte("a")}, nil)
	opt := inputOptions()
	opt.CompressionBufferSize = 256 << 10
	writeInput(t, large, opt, [][]byte{[]byte("b")}, nil)

	accepted, err := newTestMerger().Merge(out, []string{small, large})
	require.NoError(t, err)
	assert.Equal(t, []string{small, large}, accepted)

	r, err := CreateReader(out)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 256<<10, r.CompressionBufferSize())
}

func TestMergeNothingAdmitted(t *testing.T) {
	dir := t.TempDir()
	out := utils.TableFileName(dir, 100)

	t.Run("no inputs", func(t *testing.T) {
		accepted, err := newTestMerger().Merge(out, nil)
		require.NoError(t, err)
		assert.Empty(t, accepted)
		_, err = os.Stat(out)
		assert.True(t, os.IsNotExist(err), "no output file may be created")
	})

	t.Run("all inputs fail the gate", func(t *testing.T) {
		in := utils.TableFileName(dir, 1)
		opt := inputOptions()
		opt.WriterVersion = format.WriterVersionFuture
		writeInput(t, in, opt, [][]byte{[]byte("x")}, nil)

		accepted, err := newTestMerger().Merge(out, []string{in})
		require.NoError(t, err)
		assert.Empty(t, accepted)
		_, err = os.Stat(out)
		assert.True(t, os.IsNotExist(err))
	})
}

type stubReader struct {
	readErr error
}

func (r *stubReader) Schema() format.Schema { return testSchema() }
func (r *stubReader) CompressionKind() format.CompressionKind { return format.CompressionNone }
func (r *stubReader) CompressionBufferSize() int { return 1 << 10 }
func (r *stubReader) RowIndexStride() int { return 0 }
func (r *stubReader) FormatVersion() format.Version { return format.CurrentVersion }
func (r *stubReader) WriterVersion() format.WriterVersion { return format.CurrentWriterVersion }
func (r *stubReader) MetadataKeys() []string { return nil }
func (r *stubReader) MetadataValue(string) []byte { return nil }
func (r *stubReader) ReadRange(int64, []byte) error { return r.readErr }
func (r *stubReader) Close() error { return nil }
func (r *stubReader) Stripes() []format.StripeInfo {
	return []format.StripeInfo{{Offset: 4, Length: 8, Rows: 1}}
}

func TestMergeReadFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	out := utils.TableFileName(dir, 100)
	errBoom := errors.New("disk on fire")

	m := newTestMerger(WithReaderFactory(func(string) (Reader, error) {
		return &stubReader{readErr: errBoom}, nil
	}))
	accepted, err := m.Merge(out, []string{"input-0"})
	require.Equal(t, errBoom, err, "transport failure must propagate unchanged")
	assert.Nil(t, accepted)

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no file may remain at the output path")
	_, err = os.Stat(utils.TempFileName(out))
	assert.True(t, os.IsNotExist(err), "no temp file may remain either")
}

func TestMergeOpenFailureAfterBaselineRollsBack(t *testing.T) {
	dir := t.TempDir()
	in1 := utils.TableFileName(dir, 1)
	out := utils.TableFileName(dir, 100)
	errBoom := errors.New("connection reset")

	writeInput(t, in1, inputOptions(), [][]byte{[]byte("a")}, nil)

	m := newTestMerger(WithReaderFactory(func(path string) (Reader, error) {
		if path == in1 {
			return persistent.OpenReader(path)
		}
		return nil, errBoom
	}))
	_, err := m.Merge(out, []string{in1, "gone"})
	require.Equal(t, errBoom, err)

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(utils.TempFileName(out))
	assert.True(t, os.IsNotExist(err))
}
