package persistent

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"stripefile/format"
	"stripefile/utils"
)

const writeBufferSize = 64 << 10

// Options configures a physical writer. Unlike the merge-level configuration
// it is deliberately permissive: the low-level writer will happily stamp any
// version pair into a footer, which tests rely on to fabricate files from
// other writer generations.
type Options struct {
	Schema                format.Schema
	Compression           format.CompressionKind
	CompressionBufferSize int
	RowIndexStride        int
	Version               format.Version
	WriterVersion         format.WriterVersion
}

// Writer appends raw, already-encoded stripes to a new table file. It writes
// to <path>.tmp and renames into place on Close, so a crash or abort never
// leaves a partial file at the final path.
type Writer struct {
	opt      Options
	fd       *os.File
	bufw     *bufio.Writer
	path     string
	tmpPath  string
	offset   int64
	rows     uint64
	stripes  []format.StripeInfo
	metadata map[string][]byte
	closed   bool
}

func CreateWriter(path string, opt Options) (*Writer, error) {
	tmpPath := utils.TempFileName(path)
	fd, err := os.OpenFile(tmpPath, utils.DefaultFileFlag, utils.DefaultFileMode)
	if err != nil {
		return nil, errors.Wrapf(err, "create file error: %s", tmpPath)
	}
	w := &Writer{
		opt:      opt,
		fd:       fd,
		bufw:     bufio.NewWriterSize(fd, writeBufferSize),
		path:     path,
		tmpPath:  tmpPath,
		metadata: make(map[string][]byte),
	}
	if _, err := w.bufw.Write(utils.MagicText[:]); err != nil {
		w.Abort()
		return nil, errors.Wrapf(err, "write magic to %s", tmpPath)
	}
	w.offset = magicSize
	return w, nil
}

// Path is the final path the writer commits to on Close.
func (w *Writer) Path() string { return w.path }

// AppendStripe writes one stripe's bytes verbatim and records a directory
// entry reusing the caller's row count and statistics blob. The entry's
// offset is the stripe's position in this file, not the source's.
func (w *Writer) AppendStripe(data []byte, info format.StripeInfo) error {
	if w.closed {
		return utils.ErrClosed
	}
	if int64(len(data)) != info.Length {
		return errors.Errorf("stripe length %d does not match descriptor length %d", len(data), info.Length)
	}
	if _, err := w.bufw.Write(data); err != nil {
		return errors.Wrapf(err, "append stripe to %s", w.tmpPath)
	}
	w.stripes = append(w.stripes, format.StripeInfo{
		Offset:     w.offset,
		Length:     info.Length,
		Rows:       info.Rows,
		Statistics: info.Statistics,
	})
	w.offset += info.Length
	w.rows += info.Rows
	return nil
}

func (w *Writer) AddUserMetadata(key string, value []byte) error {
	if w.closed {
		return utils.ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	w.metadata[key] = v
	return nil
}

// IncreaseCompressionBufferSize grows the recorded compression buffer size.
// Shrinking is refused: stripes already appended may need the larger buffer
// to decompress.
func (w *Writer) IncreaseCompressionBufferSize(size int) error {
	if w.closed {
		return utils.ErrClosed
	}
	if size < w.opt.CompressionBufferSize {
		return errors.Wrapf(utils.ErrBufferShrink, "%d < %d", size, w.opt.CompressionBufferSize)
	}
	w.opt.CompressionBufferSize = size
	return nil
}

// Close writes the footer and tail, syncs, and renames the temp file into
// place. Only a Close that returns nil leaves a file at the final path.
func (w *Writer) Close() error {
	if w.closed {
		return utils.ErrClosed
	}
	tail, err := encodeTail(&Footer{
		VersionName:           w.opt.Version.Name(),
		WriterID:              w.opt.WriterVersion.Identity().ID(),
		WriterVersionID:       w.opt.WriterVersion.ID(),
		Schema:                w.opt.Schema,
		Compression:           w.opt.Compression,
		CompressionBufferSize: w.opt.CompressionBufferSize,
		RowIndexStride:        w.opt.RowIndexStride,
		Rows:                  w.rows,
		Stripes:               w.stripes,
		Metadata:              w.metadata,
	})
	if err != nil {
		return err
	}
	if _, err := w.bufw.Write(tail); err != nil {
		return errors.Wrapf(err, "write footer to %s", w.tmpPath)
	}
	if err := w.bufw.Flush(); err != nil {
		return errors.Wrapf(err, "flush %s", w.tmpPath)
	}
	if err := w.fd.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", w.tmpPath)
	}
	if err := w.fd.Close(); err != nil {
		return errors.Wrapf(err, "close %s", w.tmpPath)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return errors.Wrapf(err, "rename %s -> %s", w.tmpPath, w.path)
	}
	w.closed = true
	return utils.SyncDir(filepath.Dir(w.path))
}

// Abort drops the temp file. Safe to call after a failed Close; never called
// after a successful one by the merge path.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.fd.Close()
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove %s", w.tmpPath)
	}
	return nil
}
