package format

// StripeInfo describes one stripe: a contiguous, independently decodable byte
// range of row data, paired with its precomputed statistics blob. The merge
// path copies the range verbatim and reattaches the statistics without ever
// decoding either. Immutable once read from a footer.
type StripeInfo struct {
	Offset     int64  `msgpack:"offset"`
	Length     int64  `msgpack:"length"`
	Rows       uint64 `msgpack:"rows"`
	Statistics []byte `msgpack:"statistics"`
}
