package persistent

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"stripefile/format"
	"stripefile/utils"
)

// Physical layout:
//
//	magic | stripe bytes ... | footer | xxhash64(footer) | footer len | magic
//
// The footer is parsed backwards from the end of the file, so a reader never
// touches stripe bytes it was not asked for.
const (
	magicSize     = 4
	checksumSize  = 8
	footerLenSize = 4
	tailSize      = checksumSize + footerLenSize + magicSize
)

// Footer carries everything about a file except the stripe payloads
// themselves. Stripe offsets are relative to the start of the file.
type Footer struct {
	VersionName           string                 `msgpack:"version"`
	WriterID              int32                  `msgpack:"writer"`
	WriterVersionID       int32                  `msgpack:"writerVersion"`
	Schema                format.Schema          `msgpack:"schema"`
	Compression           format.CompressionKind `msgpack:"compression"`
	CompressionBufferSize int                    `msgpack:"bufferSize"`
	RowIndexStride        int                    `msgpack:"rowIndexStride"`
	Rows                  uint64                 `msgpack:"rows"`
	Stripes               []format.StripeInfo    `msgpack:"stripes"`
	Metadata              map[string][]byte      `msgpack:"metadata"`
}

// encodeTail serializes the footer plus the fixed-size tail that lets a
// reader locate it from the end of the file.
func encodeTail(f *Footer) ([]byte, error) {
	body, err := msgpack.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "marshal footer")
	}
	out := make([]byte, 0, len(body)+tailSize)
	out = append(out, body...)
	out = append(out, utils.U64ToBytes(utils.CalculateChecksum(body))...)
	out = append(out, utils.U32ToBytes(uint32(len(body)))...)
	out = append(out, utils.MagicText[:]...)
	return out, nil
}

// decodeFooter parses the tail of a complete file image.
func decodeFooter(data []byte) (*Footer, error) {
	if len(data) < magicSize+tailSize {
		return nil, errors.Errorf("file too small to hold a footer: %d bytes", len(data))
	}
	if !bytes.Equal(data[:magicSize], utils.MagicText[:]) {
		return nil, errors.Errorf("bad magic %q at start of file", data[:magicSize])
	}
	readPos := len(data)

	readPos -= magicSize
	if !bytes.Equal(data[readPos:], utils.MagicText[:]) {
		return nil, errors.Errorf("bad magic %q at end of file", data[readPos:])
	}

	readPos -= footerLenSize
	footerLen := int(utils.BytesToU32(data[readPos : readPos+footerLenSize]))
	footerStart := readPos - checksumSize - footerLen
	if footerLen < 0 || footerStart < magicSize {
		return nil, errors.Errorf("footer length %d out of range. Data corrupted", footerLen)
	}

	expected := utils.BytesToU64(data[footerStart+footerLen : footerStart+footerLen+checksumSize])
	body := data[footerStart : footerStart+footerLen]
	if err := utils.VerifyChecksum(body, expected); err != nil {
		return nil, errors.Wrap(err, "failed to verify footer checksum")
	}

	footer := &Footer{}
	if err := msgpack.Unmarshal(body, footer); err != nil {
		return nil, errors.Wrap(err, "unmarshal footer")
	}
	return footer, nil
}
