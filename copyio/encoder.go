// Package copyio implements CopyEncoder: serializing a sealed batch of
// rows in Postgres's binary COPY wire format and streaming it over one
// connection. See spec.md §4.7. The framing and per-type encoding table
// are exact; the scratch-buffer reuse and precompute-then-write
// discipline is grounded on the teacher's pileup/snp.MarshalPileupRow,
// adapted from little-endian pileup-row framing to the big-endian order
// Postgres's wire protocol requires throughout.
package copyio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrEncoding is returned when a value falls outside its declared
// domain (e.g. a disallowed NaN); the batch must not be committed when
// this occurs, per spec.md §4.7.
var ErrEncoding = errors.New("copyio: value outside declared domain")

// signature is the fixed 11-byte PGCOPY signature required at the start
// of a binary COPY stream, followed by a 4-byte flags field and a
// 4-byte header-extension-length field (always 0 here).
var signature = [11]byte{'P', 'G', 'C', 'O', 'P', 'Y', '\n', 0xff, '\r', '\n', 0}

// Kind enumerates the column encodings in spec.md §4.7's table.
type Kind int

const (
	KindInt64 Kind = iota
	KindInt32
	KindFloat64
	KindBool
	KindText
	KindUUID
	KindArrayText
	KindArrayInt64
	KindArrayFloat64
	KindRangeInt8
	KindTimestamp
)

// Element type OIDs used inside array headers, matching
// github.com/jackc/pgx/v5/pgtype's well-known OID constants.
const (
	oidText  = 25
	oidInt8  = 20
	oidFloat8 = 701
)

// Field is one encoded tuple field: a Kind tag, a Null flag, and
// exactly one populated value slot for that Kind.
type Field struct {
	Kind Kind
	Null bool

	Int64   int64
	Int32   int32
	Float64 float64
	Bool    bool
	Text    string
	UUID    [16]byte

	ArrayText    []string
	ArrayInt64   []int64
	ArrayFloat64 []float64

	// RangeInt8 fields.
	RangeLower, RangeUpper             int64
	RangeLowerInc, RangeUpperInc, Empty bool

	Timestamp int64 // microseconds since 2000-01-01 UTC
}

// WriteHeader writes the fixed PGCOPY header to w: signature, flags=0,
// header-extension-length=0.
func WriteHeader(w io.Writer) error {
	if _, err := w.Write(signature[:]); err != nil {
		return err
	}
	var rest [8]byte // flags (4) + extension length (4), both zero
	_, err := w.Write(rest[:])
	return err
}

// WriteTrailer writes the COPY trailer marker: a tuple field count of -1.
func WriteTrailer(w io.Writer) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(int16(-1)))
	_, err := w.Write(buf[:])
	return err
}

// WriteTuple encodes one row's fields and writes them to w: a 16-bit
// field count, then per field a 32-bit length prefix (or -1 for NULL)
// followed by the value bytes.
func WriteTuple(w io.Writer, fields []Field) error {
	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(fields)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}
	for i := range fields {
		if err := writeField(w, &fields[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeField(w io.Writer, f *Field) error {
	if f.Null {
		return writeLenPrefix(w, -1, nil)
	}
	switch f.Kind {
	case KindInt64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(f.Int64))
		return writeLenPrefix(w, 8, b[:])
	case KindInt32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(f.Int32))
		return writeLenPrefix(w, 4, b[:])
	case KindFloat64:
		if math.IsNaN(f.Float64) {
			return ErrEncoding
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(f.Float64))
		return writeLenPrefix(w, 8, b[:])
	case KindBool:
		v := byte(0x00)
		if f.Bool {
			v = 0x01
		}
		return writeLenPrefix(w, 1, []byte{v})
	case KindText:
		b := []byte(f.Text)
		return writeLenPrefix(w, int32(len(b)), b)
	case KindUUID:
		return writeLenPrefix(w, 16, f.UUID[:])
	case KindArrayText:
		return writeArray(w, oidText, len(f.ArrayText), func(i int) ([]byte, bool) {
			return []byte(f.ArrayText[i]), false
		})
	case KindArrayInt64:
		return writeArray(w, oidInt8, len(f.ArrayInt64), func(i int) ([]byte, bool) {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(f.ArrayInt64[i]))
			return b[:], false
		})
	case KindArrayFloat64:
		return writeArray(w, oidFloat8, len(f.ArrayFloat64), func(i int) ([]byte, bool) {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], math.Float64bits(f.ArrayFloat64[i]))
			return b[:], false
		})
	case KindRangeInt8:
		return writeRangeInt8(w, f)
	case KindTimestamp:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(f.Timestamp))
		return writeLenPrefix(w, 8, b[:])
	default:
		return ErrEncoding
	}
}

func writeLenPrefix(w io.Writer, n int32, data []byte) error {
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(n))
	if _, err := w.Write(lb[:]); err != nil {
		return err
	}
	if n <= 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

// writeArray encodes the standard single-dimension array header (ndim=1,
// has-null flag, element OID, dim length, lower bound=1) followed by
// each element with its own length prefix, per spec.md §4.7.
func writeArray(w io.Writer, elemOID uint32, n int, elem func(int) ([]byte, bool)) error {
	var head [20]byte
	binary.BigEndian.PutUint32(head[0:4], 1)    // ndim
	binary.BigEndian.PutUint32(head[4:8], 0)    // has-null flag
	binary.BigEndian.PutUint32(head[8:12], elemOID)
	binary.BigEndian.PutUint32(head[12:16], uint32(n))
	binary.BigEndian.PutUint32(head[16:20], 1) // lower bound

	// The array body (including this fixed header) is itself wrapped by
	// the tuple-level 32-bit length prefix, so buffer the body here and
	// write it as one length-prefixed field.
	body := make([]byte, 0, 20+n*8)
	body = append(body, head[:]...)
	for i := 0; i < n; i++ {
		b, isNull := elem(i)
		if isNull {
			var lb [4]byte
			binary.BigEndian.PutUint32(lb[:], uint32(int32(-1)))
			body = append(body, lb[:]...)
			continue
		}
		var lb [4]byte
		binary.BigEndian.PutUint32(lb[:], uint32(len(b)))
		body = append(body, lb[:]...)
		body = append(body, b...)
	}
	return writeLenPrefix(w, int32(len(body)), body)
}

func writeRangeInt8(w io.Writer, f *Field) error {
	var flags byte
	if f.Empty {
		flags |= 0x01
	}
	if f.RangeLowerInc {
		flags |= 0x02
	}
	if f.RangeUpperInc {
		flags |= 0x04
	}
	body := make([]byte, 0, 1+4+8+4+8)
	body = append(body, flags)
	if !f.Empty {
		var lb [4]byte
		binary.BigEndian.PutUint32(lb[:], 8)
		body = append(body, lb[:]...)
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], uint64(f.RangeLower))
		body = append(body, v[:]...)

		binary.BigEndian.PutUint32(lb[:], 8)
		body = append(body, lb[:]...)
		binary.BigEndian.PutUint64(v[:], uint64(f.RangeUpper))
		body = append(body, v[:]...)
	}
	return writeLenPrefix(w, int32(len(body)), body)
}
