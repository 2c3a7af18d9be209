package utils

import "os"

// file
const (
	TableFileSuffix = ".strf"
	TempFileSuffix  = ".tmp"
	DefaultFileMode = 0666
)

// codec
var MagicText = [4]byte{'S', 'T', 'R', 'F'}

var DefaultFileFlag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
