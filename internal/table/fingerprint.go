package table

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/zeebo/xxh3"
)

// Fingerprint hashes rec with xxh3 over a canonical row encoding: column
// names, then every cell in row order. Integers of any width hash alike, as do
// float widths, so two tables that pass a family-level parity check hash the
// same.
func Fingerprint(rec arrow.Record) uint64 {
	h := xxh3.New()
	var buf [9]byte
	for c := 0; c < int(rec.NumCols()); c++ {
		name := rec.ColumnName(c)
		h.WriteString(strconv.Itoa(len(name)))
		h.WriteString(name)
	}
	for r := 0; r < int(rec.NumRows()); r++ {
		for c := 0; c < int(rec.NumCols()); c++ {
			v := Value(rec.Column(c), r)
			switch x := v.(type) {
			case nil:
				buf[0] = 0
				h.Write(buf[:1])
			case string:
				buf[0] = 's'
				binary.LittleEndian.PutUint64(buf[1:], uint64(len(x)))
				h.Write(buf[:])
				h.WriteString(x)
			case bool:
				buf[0] = 'b'
				buf[1] = 0
				if x {
					buf[1] = 1
				}
				h.Write(buf[:2])
			case float32, float64:
				f, _ := floatOf(x)
				buf[0] = 'f'
				binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(f))
				h.Write(buf[:])
			default:
				if n, err := intOf(x, math.MinInt64, math.MaxInt64); err == nil {
					buf[0] = 'i'
					binary.LittleEndian.PutUint64(buf[1:], uint64(n))
					h.Write(buf[:])
					continue
				}
				s := rec.Column(c).ValueStr(r)
				buf[0] = 's'
				binary.LittleEndian.PutUint64(buf[1:], uint64(len(s)))
				h.Write(buf[:])
				h.WriteString(s)
			}
		}
	}
	return h.Sum64()
}
