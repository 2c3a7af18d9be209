package utils

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// BytesToU32 converts the given byte slice to uint32
func BytesToU32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// BytesToU64 _
func BytesToU64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// U32ToBytes _
func U32ToBytes(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// U64ToBytes _
func U64ToBytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// CalculateChecksum xxhash64 over data
func CalculateChecksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// VerifyChecksum compares the xxhash64 of data against the expected value
func VerifyChecksum(data []byte, expected uint64) error {
	actual := xxhash.Sum64(data)
	if actual != expected {
		return errors.Wrapf(ErrChecksumMismatch, "actual: %d, expected: %d", actual, expected)
	}
	return nil
}
