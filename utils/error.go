package utils

import "github.com/pkg/errors"

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrConfiguration    = errors.New("invalid configuration")
	ErrClosed           = errors.New("file already closed")
	ErrBufferShrink     = errors.New("compression buffer size may only grow")
)
