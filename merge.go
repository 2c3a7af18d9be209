package stripefile

import (
	"bytes"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"stripefile/format"
	"stripefile/persistent"
)

// Merger merges table files that share a schema into one file by copying
// stripes as raw bytes. Files that are not binary-compatible with the first
// accepted input are skipped, not failed, so the accepted list a merge
// returns may be shorter than its input list.
//
// One Merge call owns its output writer and session state exclusively and
// runs strictly sequentially: output stripe order must equal the
// concatenation of accepted inputs in caller order.
type Merger struct {
	cfg     WriterConfig
	logger  logrus.FieldLogger
	metrics *MergeMetrics

	openReader   func(path string) (Reader, error)
	createWriter func(path string, cfg WriterConfig) (Writer, error)
}

type MergerOption func(*Merger)

func WithLogger(logger logrus.FieldLogger) MergerOption {
	return func(m *Merger) { m.logger = logger }
}

func WithMetrics(metrics *MergeMetrics) MergerOption {
	return func(m *Merger) { m.metrics = metrics }
}

// WithReaderFactory swaps the input transport, e.g. for remote storage or
// fault injection in tests.
func WithReaderFactory(open func(path string) (Reader, error)) MergerOption {
	return func(m *Merger) { m.openReader = open }
}

// WithWriterFactory swaps the output transport.
func WithWriterFactory(create func(path string, cfg WriterConfig) (Writer, error)) MergerOption {
	return func(m *Merger) { m.createWriter = create }
}

func NewMerger(cfg WriterConfig, opts ...MergerOption) *Merger {
	m := &Merger{
		cfg:    cfg,
		logger: logrus.New(),
		openReader: func(path string) (Reader, error) {
			return persistent.OpenReader(path)
		},
		createWriter: func(path string, cfg WriterConfig) (Writer, error) {
			return CreateWriter(path, cfg)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MergeFiles merges inputPaths into outputPath with the default collaborators.
func MergeFiles(outputPath string, cfg WriterConfig, inputPaths []string) ([]string, error) {
	return NewMerger(cfg).Merge(outputPath, inputPaths)
}

// mergeSession is the mutable state threaded through one Merge call. The
// baseline fields are set exactly once, by the first accepted input; only
// bufferSize may change afterwards, and only upwards.
type mergeSession struct {
	baselineSet   bool
	schema        format.Schema
	compression   format.CompressionKind
	bufferSize    int
	stride        int
	version       format.Version
	writerVersion format.WriterVersion

	metadata map[string][]byte
	accepted []string
	out      Writer
	buf      []byte
}

// Merge evaluates every input in order, copies the stripes of the compatible
// ones into outputPath, and returns the inputs that made it in. Zero admitted
// inputs is a success with an empty list and no output file. Any transport
// failure rolls the output back and is returned to the caller unchanged.
func (m *Merger) Merge(outputPath string, inputPaths []string) ([]string, error) {
	s := &mergeSession{
		metadata: make(map[string][]byte),
		accepted: make([]string, 0, len(inputPaths)),
	}
	for _, input := range inputPaths {
		if err := m.mergeOne(outputPath, s, input); err != nil {
			return nil, m.rollback(outputPath, s, err)
		}
	}
	if s.out != nil {
		if err := m.finalize(s); err != nil {
			return nil, m.rollback(outputPath, s, err)
		}
		m.metrics.committed()
	}
	return s.accepted, nil
}

func (m *Merger) mergeOne(outputPath string, s *mergeSession, input string) error {
	reader, err := m.openReader(input)
	if err != nil {
		return err
	}
	defer reader.Close()

	log := m.logger.WithField("path", input)
	if !m.understandsFormat(log, reader) {
		m.metrics.fileRejected()
		return nil
	}

	if !s.baselineSet {
		if err := m.establishBaseline(outputPath, s, reader); err != nil {
			return err
		}
	} else if !m.readerIsCompatible(log, s, reader) {
		m.metrics.fileRejected()
		return nil
	} else {
		mergeMetadata(s.metadata, reader)
		if size := reader.CompressionBufferSize(); size > s.bufferSize {
			s.bufferSize = size
			if err := s.out.IncreaseCompressionBufferSize(size); err != nil {
				return err
			}
		}
	}

	if err := m.copyStripes(s, reader); err != nil {
		return err
	}
	s.accepted = append(s.accepted, input)
	m.metrics.fileAccepted()
	return nil
}

// understandsFormat is the generation gate, applied to every candidate
// including the one that would establish the baseline.
func (m *Merger) understandsFormat(log logrus.FieldLogger, reader Reader) bool {
	if reader.FormatVersion() == format.VersionFuture {
		log.Info("can't merge file because it has a future format version")
		return false
	}
	if reader.WriterVersion() == format.WriterVersionFuture {
		log.Info("can't merge file because it has a future writer version")
		return false
	}
	return true
}

// establishBaseline copies the first accepted input's layout fields over the
// requested configuration and creates the output writer with them.
func (m *Merger) establishBaseline(outputPath string, s *mergeSession, reader Reader) error {
	s.schema = reader.Schema()
	s.compression = reader.CompressionKind()
	s.bufferSize = reader.CompressionBufferSize()
	s.stride = reader.RowIndexStride()
	s.version = reader.FormatVersion()
	s.writerVersion = reader.WriterVersion()
	s.baselineSet = true

	cfg := m.cfg
	cfg.Schema = s.schema
	cfg.Compression = s.compression
	cfg.CompressionBufferSize = s.bufferSize
	cfg.RowIndexStride = s.stride
	cfg.Version = s.version
	cfg.WriterVersion = s.writerVersion
	if s.compression != format.CompressionNone {
		cfg.EnforceBufferSize = true
	}

	mergeMetadata(s.metadata, reader)
	out, err := m.createWriter(outputPath, cfg)
	if err != nil {
		return err
	}
	s.out = out
	return nil
}

// readerIsCompatible runs the baseline checks in order, logging the first
// mismatch and admitting the file only if none fires. Every check compares
// for exact equality; in particular writer versions are not compared with
// Includes, since copied stripes must decode identically.
func (m *Merger) readerIsCompatible(log logrus.FieldLogger, s *mergeSession, reader Reader) bool {
	if !reader.Schema().Equal(s.schema) {
		log.WithFields(logrus.Fields{
			"got": reader.Schema().String(), "want": s.schema.String(),
		}).Info("can't merge file because of different schemas")
		return false
	}
	if reader.CompressionKind() != s.compression {
		log.WithFields(logrus.Fields{
			"got": reader.CompressionKind(), "want": s.compression,
		}).Info("can't merge file because of different compression")
		return false
	}
	if reader.FormatVersion() != s.version {
		log.WithFields(logrus.Fields{
			"got": reader.FormatVersion(), "want": s.version,
		}).Info("can't merge file because of different format versions")
		return false
	}
	if reader.WriterVersion() != s.writerVersion {
		log.WithFields(logrus.Fields{
			"got": reader.WriterVersion(), "want": s.writerVersion,
		}).Info("can't merge file because of different writer versions")
		return false
	}
	if reader.RowIndexStride() != s.stride {
		log.WithFields(logrus.Fields{
			"got": reader.RowIndexStride(), "want": s.stride,
		}).Info("can't merge file because of different row index strides")
		return false
	}
	for _, key := range reader.MetadataKeys() {
		current, ok := s.metadata[key]
		if ok && !bytes.Equal(current, reader.MetadataValue(key)) {
			log.WithField("key", key).Info("can't merge file because of conflicting user metadata")
			return false
		}
	}
	return true
}

// mergeMetadata overwrites unconditionally. It only runs after the
// compatibility checks, so overwriting an existing key is a no-op and new
// keys are simply inserted.
func mergeMetadata(metadata map[string][]byte, reader Reader) {
	for _, key := range reader.MetadataKeys() {
		metadata[key] = reader.MetadataValue(key)
	}
}

// copyStripes moves every stripe of one input, in file order, through the
// session's scratch buffer. The buffer grows to the largest stripe seen and
// never shrinks, amortizing allocation over the whole merge.
func (m *Merger) copyStripes(s *mergeSession, reader Reader) error {
	for _, stripe := range reader.Stripes() {
		if int64(len(s.buf)) < stripe.Length {
			s.buf = make([]byte, stripe.Length)
		}
		data := s.buf[:stripe.Length]
		if err := reader.ReadRange(stripe.Offset, data); err != nil {
			return err
		}
		if err := s.out.AppendStripe(data, stripe); err != nil {
			return err
		}
		m.metrics.stripeCopied(stripe.Length)
	}
	return nil
}

// finalize writes the merged metadata and commits the output.
func (m *Merger) finalize(s *mergeSession) error {
	keys := make([]string, 0, len(s.metadata))
	for key := range s.metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := s.out.AddUserMetadata(key, s.metadata[key]); err != nil {
			return err
		}
	}
	return s.out.Close()
}

// rollback unwinds a failed merge: abort the output writer if one exists and
// clear the output path, both best effort, then hand the original failure
// back untouched. No partial file survives at outputPath.
func (m *Merger) rollback(outputPath string, s *mergeSession, cause error) error {
	if s.out != nil {
		if err := s.out.Abort(); err != nil {
			m.logger.WithError(err).WithField("path", outputPath).
				Warn("abort output writer during merge rollback")
		}
		if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
			m.logger.WithError(err).WithField("path", outputPath).
				Warn("remove output file during merge rollback")
		}
		m.metrics.rolledBack()
	}
	return cause
}
