package format

import (
	"github.com/pkg/errors"

	"stripefile/utils"
)

// CompressionKind identifies the codec stripes were compressed with. Codec
// implementations live outside this module; the merge layer only needs the
// identifier because merged files must agree on it.
type CompressionKind uint8

const (
	CompressionNone CompressionKind = iota
	CompressionSnappy
	CompressionZstd
	CompressionLz4
)

var compressionKindNames = [...]string{
	CompressionNone:   "none",
	CompressionSnappy: "snappy",
	CompressionZstd:   "zstd",
	CompressionLz4:    "lz4",
}

func (c CompressionKind) String() string {
	if int(c) < len(compressionKindNames) {
		return compressionKindNames[c]
	}
	return "unknown"
}

func CompressionByName(name string) (CompressionKind, error) {
	for i, n := range compressionKindNames {
		if n == name {
			return CompressionKind(i), nil
		}
	}
	return CompressionNone, errors.Wrapf(utils.ErrConfiguration, "unknown compression kind %q", name)
}
