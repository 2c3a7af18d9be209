package persistent

import (
	"io"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// MmapFile is a read-only file mapping. Byte-range reads come straight out of
// the mapping without copying.
type MmapFile struct {
	Data mmap.MMap
	Fd   *os.File
}

func OpenMmapFile(filename string) (*MmapFile, error) {
	fd, err := os.OpenFile(filename, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open file error: %s", filename)
	}
	fi, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "stat file error: %s", filename)
	}
	if fi.Size() == 0 {
		fd.Close()
		return nil, errors.Errorf("empty file: %s", filename)
	}
	buf, err := mmap.Map(fd, mmap.RDONLY, 0)
	if err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "mmap mapping %s with size %d error", filename, fi.Size())
	}
	return &MmapFile{
		Data: buf,
		Fd:   fd,
	}, nil
}

// Bytes returns data starting from offset off of size sz. If there's not
// enough data, it returns a nil slice and io.EOF.
func (m *MmapFile) Bytes(off, sz int) ([]byte, error) {
	if off < 0 || sz < 0 || off+sz > len(m.Data) {
		return nil, io.EOF
	}
	return m.Data[off : off+sz], nil
}

func (m *MmapFile) Close() error {
	if m.Fd == nil {
		return nil
	}
	if err := m.Data.Unmap(); err != nil {
		return errors.Wrapf(err, "while munmap file: %s", m.Fd.Name())
	}
	m.Data = nil
	return m.Fd.Close()
}
