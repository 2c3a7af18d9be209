package format

import "strings"

// ColumnKind is the logical type of one column.
type ColumnKind uint8

const (
	KindBool ColumnKind = iota
	KindInt64
	KindFloat64
	KindString
	KindBytes
	KindTimestamp
)

var columnKindNames = [...]string{
	KindBool:      "bool",
	KindInt64:     "int64",
	KindFloat64:   "float64",
	KindString:    "string",
	KindBytes:     "bytes",
	KindTimestamp: "timestamp",
}

func (k ColumnKind) String() string {
	if int(k) < len(columnKindNames) {
		return columnKindNames[k]
	}
	return "unknown"
}

type Column struct {
	Name string     `msgpack:"name"`
	Kind ColumnKind `msgpack:"kind"`
}

// Schema is the ordered column layout of a file. Column payload encoding is
// handled elsewhere; the merge layer only ever compares schemas structurally.
type Schema struct {
	Columns []Column `msgpack:"columns"`
}

// Equal is structural: same column count, names, and kinds in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if c != other.Columns[i] {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	var sb strings.Builder
	sb.WriteString("struct<")
	for i, c := range s.Columns {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(c.Name)
		sb.WriteByte(':')
		sb.WriteString(c.Kind.String())
	}
	sb.WriteByte('>')
	return sb.String()
}
