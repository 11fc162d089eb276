package heap

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/relicdb/relic/internal/common"
)

// Binary row codec — grounded on tinySQL's MarshalRow/UnmarshalRow, adapted
// to carry common.Value instead of any and to retain each column's name so
// a heap row is self-describing without consulting the table schema.
//
// Wire format per row:
//
//	[0:2]  ColumnCount (uint16 LE)
//	For each column:
//	    [0:2]  NameLen (uint16 LE)
//	    [2:2+N] Name (UTF-8, N bytes)
//	    [N+2]  TypeTag (uint8)
//	    [..]   Payload (variable, see tags below)
//
// Type tags:
//
//	0x00 — null      (no payload)
//	0x01 — int64      (8 bytes LE)
//	0x02 — float64    (8 bytes LE)
//	0x03 — text       (uint16 LE length prefix + UTF-8)
const (
	tagNull  byte = 0x00
	tagInt   byte = 0x01
	tagFloat byte = 0x02
	tagText  byte = 0x03
)

// encodeRow serializes row into the compact binary format described above.
// The encoded length is deterministic for a given row (spec §4.2's
// serialization contract).
func encodeRow(row common.Row) []byte {
	est := 2
	for i, c := range row.Columns {
		est += 2 + len(c) + 1
		if row.Values[i].Kind == common.KindText {
			est += 2 + len(row.Values[i].S)
		} else {
			est += 8
		}
	}
	buf := make([]byte, 0, est)

	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(row.Columns)))
	buf = append(buf, hdr[:]...)

	for i, name := range row.Columns {
		var nl [2]byte
		binary.LittleEndian.PutUint16(nl[:], uint16(len(name)))
		buf = append(buf, nl[:]...)
		buf = append(buf, name...)

		v := row.Values[i]
		switch v.Kind {
		case common.KindNull:
			buf = append(buf, tagNull)
		case common.KindInt:
			buf = append(buf, tagInt)
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v.I))
			buf = append(buf, b[:]...)
		case common.KindFloat:
			buf = append(buf, tagFloat)
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F))
			buf = append(buf, b[:]...)
		case common.KindText:
			buf = append(buf, tagText)
			var sl [2]byte
			binary.LittleEndian.PutUint16(sl[:], uint16(len(v.S)))
			buf = append(buf, sl[:]...)
			buf = append(buf, v.S...)
		}
	}
	return buf
}

// decodeRow is the inverse of encodeRow.
func decodeRow(data []byte) (common.Row, error) {
	if len(data) < 2 {
		return common.Row{}, fmt.Errorf("heap: row header truncated: %w", common.ErrCorrupt)
	}
	colCount := int(binary.LittleEndian.Uint16(data[0:2]))
	off := 2

	columns := make([]string, colCount)
	values := make([]common.Value, colCount)

	for i := 0; i < colCount; i++ {
		if off+2 > len(data) {
			return common.Row{}, fmt.Errorf("heap: truncated column name length at %d: %w", i, common.ErrCorrupt)
		}
		nl := int(binary.LittleEndian.Uint16(data[off : off+2]))
		off += 2
		if off+nl > len(data) {
			return common.Row{}, fmt.Errorf("heap: truncated column name at %d: %w", i, common.ErrCorrupt)
		}
		columns[i] = string(data[off : off+nl])
		off += nl

		if off >= len(data) {
			return common.Row{}, fmt.Errorf("heap: missing type tag at column %d: %w", i, common.ErrCorrupt)
		}
		tag := data[off]
		off++

		switch tag {
		case tagNull:
			values[i] = common.Null
		case tagInt:
			if off+8 > len(data) {
				return common.Row{}, fmt.Errorf("heap: truncated int64 at column %d: %w", i, common.ErrCorrupt)
			}
			values[i] = common.IntValue(int64(binary.LittleEndian.Uint64(data[off : off+8])))
			off += 8
		case tagFloat:
			if off+8 > len(data) {
				return common.Row{}, fmt.Errorf("heap: truncated float64 at column %d: %w", i, common.ErrCorrupt)
			}
			values[i] = common.FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8])))
			off += 8
		case tagText:
			if off+2 > len(data) {
				return common.Row{}, fmt.Errorf("heap: truncated text length at column %d: %w", i, common.ErrCorrupt)
			}
			sl := int(binary.LittleEndian.Uint16(data[off : off+2]))
			off += 2
			if off+sl > len(data) {
				return common.Row{}, fmt.Errorf("heap: truncated text at column %d: %w", i, common.ErrCorrupt)
			}
			values[i] = common.TextValue(string(data[off : off+sl]))
			off += sl
		default:
			return common.Row{}, fmt.Errorf("heap: unknown type tag 0x%02x at column %d: %w", tag, i, common.ErrCorrupt)
		}
	}
	return common.NewRow(columns, values), nil
}
