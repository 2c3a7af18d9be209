package persistent

import (
	"io"
	"sort"

	"github.com/pkg/errors"

	"stripefile/format"
)

// Reader serves the metadata and raw byte ranges of one table file. The
// mapping stays open for the reader's lifetime; stripe payloads are never
// decoded here.
type Reader struct {
	f             *MmapFile
	footer        *Footer
	path          string
	version       format.Version
	writerVersion format.WriterVersion
}

// OpenReader maps the file and parses its footer. A version name from a newer
// build degrades to the future sentinel; an illegal writer version id fails.
func OpenReader(path string) (*Reader, error) {
	f, err := OpenMmapFile(path)
	if err != nil {
		return nil, err
	}
	footer, err := decodeFooter(f.Data)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "read footer of %s", path)
	}
	identity := format.WriterIdentityFromID(footer.WriterID)
	writerVersion, err := format.WriterVersionFrom(identity, footer.WriterVersionID)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "resolve writer version of %s", path)
	}
	return &Reader{
		f:             f,
		footer:        footer,
		path:          path,
		version:       format.VersionFromName(footer.VersionName),
		writerVersion: writerVersion,
	}, nil
}

func (r *Reader) Path() string { return r.path }

func (r *Reader) Schema() format.Schema { return r.footer.Schema }

func (r *Reader) CompressionKind() format.CompressionKind { return r.footer.Compression }

func (r *Reader) CompressionBufferSize() int { return r.footer.CompressionBufferSize }

func (r *Reader) RowIndexStride() int { return r.footer.RowIndexStride }

func (r *Reader) FormatVersion() format.Version { return r.version }

func (r *Reader) WriterVersion() format.WriterVersion { return r.writerVersion }

func (r *Reader) Rows() uint64 { return r.footer.Rows }

// Stripes returns the stripe directory in file order.
func (r *Reader) Stripes() []format.StripeInfo { return r.footer.Stripes }

func (r *Reader) MetadataKeys() []string {
	keys := make([]string, 0, len(r.footer.Metadata))
	for k := range r.footer.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Reader) MetadataValue(key string) []byte { return r.footer.Metadata[key] }

// ReadRange fills buf with the bytes starting at off, failing with io.EOF if
// the range runs past the end of the file.
func (r *Reader) ReadRange(off int64, buf []byte) error {
	src, err := r.f.Bytes(int(off), len(buf))
	if err != nil {
		return errors.Wrapf(io.EOF, "read %d bytes at offset %d of %s", len(buf), off, r.path)
	}
	copy(buf, src)
	return nil
}

func (r *Reader) Close() error { return r.f.Close() }
