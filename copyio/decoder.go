package copyio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrTrailer is returned by ReadTuple when the next field-count int16 is
// the -1 trailer marker rather than a tuple; callers should stop reading.
var ErrTrailer = errors.New("copyio: trailer reached")

// ReadHeader consumes and validates the fixed PGCOPY header.
func ReadHeader(r io.Reader) error {
	var got [19]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return err
	}
	if !bytes.Equal(got[:11], signature[:]) {
		return errors.New("copyio: bad signature")
	}
	return nil
}

// ReadTuple reads one tuple's fields, using kinds to know how to decode
// each field. It returns ErrTrailer (with a nil slice) once the trailer
// marker is read instead of a tuple.
func ReadTuple(r io.Reader, kinds []Kind) ([]Field, error) {
	var countBuf [2]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	count := int16(binary.BigEndian.Uint16(countBuf[:]))
	if count == -1 {
		return nil, ErrTrailer
	}
	if int(count) != len(kinds) {
		return nil, errors.New("copyio: field count does not match projection")
	}
	out := make([]Field, count)
	for i := 0; i < int(count); i++ {
		f, err := readField(r, kinds[i])
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func readLen(r io.Reader) (int32, error) {
	var lb [4]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(lb[:])), nil
}

func readField(r io.Reader, kind Kind) (Field, error) {
	n, err := readLen(r)
	if err != nil {
		return Field{}, err
	}
	if n == -1 {
		return Field{Kind: kind, Null: true}, nil
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Field{}, err
	}
	switch kind {
	case KindInt64:
		return Field{Kind: kind, Int64: int64(binary.BigEndian.Uint64(body))}, nil
	case KindInt32:
		return Field{Kind: kind, Int32: int32(binary.BigEndian.Uint32(body))}, nil
	case KindFloat64:
		return Field{Kind: kind, Float64: math.Float64frombits(binary.BigEndian.Uint64(body))}, nil
	case KindBool:
		return Field{Kind: kind, Bool: body[0] == 0x01}, nil
	case KindText:
		return Field{Kind: kind, Text: string(body)}, nil
	case KindUUID:
		var u [16]byte
		copy(u[:], body)
		return Field{Kind: kind, UUID: u}, nil
	case KindArrayText:
		vals, err := readArray(body)
		if err != nil {
			return Field{}, err
		}
		texts := make([]string, len(vals))
		for i, v := range vals {
			texts[i] = string(v)
		}
		return Field{Kind: kind, ArrayText: texts}, nil
	case KindArrayInt64:
		vals, err := readArray(body)
		if err != nil {
			return Field{}, err
		}
		ints := make([]int64, len(vals))
		for i, v := range vals {
			ints[i] = int64(binary.BigEndian.Uint64(v))
		}
		return Field{Kind: kind, ArrayInt64: ints}, nil
	case KindArrayFloat64:
		vals, err := readArray(body)
		if err != nil {
			return Field{}, err
		}
		floats := make([]float64, len(vals))
		for i, v := range vals {
			floats[i] = math.Float64frombits(binary.BigEndian.Uint64(v))
		}
		return Field{Kind: kind, ArrayFloat64: floats}, nil
	case KindRangeInt8:
		return readRangeInt8(body, kind)
	case KindTimestamp:
		return Field{Kind: kind, Timestamp: int64(binary.BigEndian.Uint64(body))}, nil
	default:
		return Field{}, errors.New("copyio: unknown kind")
	}
}

func readArray(body []byte) ([][]byte, error) {
	if len(body) < 20 {
		return nil, errors.New("copyio: truncated array header")
	}
	n := int(binary.BigEndian.Uint32(body[12:16]))
	off := 20
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		if off+4 > len(body) {
			return nil, errors.New("copyio: truncated array element length")
		}
		l := int32(binary.BigEndian.Uint32(body[off : off+4]))
		off += 4
		if l == -1 {
			out[i] = nil
			continue
		}
		if off+int(l) > len(body) {
			return nil, errors.New("copyio: truncated array element")
		}
		out[i] = body[off : off+int(l)]
		off += int(l)
	}
	return out, nil
}

func readRangeInt8(body []byte, kind Kind) (Field, error) {
	if len(body) < 1 {
		return Field{}, errors.New("copyio: truncated range")
	}
	flags := body[0]
	f := Field{
		Kind:          kind,
		Empty:         flags&0x01 != 0,
		RangeLowerInc: flags&0x02 != 0,
		RangeUpperInc: flags&0x04 != 0,
	}
	if f.Empty {
		return f, nil
	}
	off := 1
	ll, err := bigEndianInt32(body, off)
	if err != nil {
		return Field{}, err
	}
	off += 4
	f.RangeLower = int64(binary.BigEndian.Uint64(body[off : off+int(ll)]))
	off += int(ll)
	ul, err := bigEndianInt32(body, off)
	if err != nil {
		return Field{}, err
	}
	off += 4
	f.RangeUpper = int64(binary.BigEndian.Uint64(body[off : off+int(ul)]))
	return f, nil
}

func bigEndianInt32(body []byte, off int) (int32, error) {
	if off+4 > len(body) {
		return 0, errors.New("copyio: truncated range bound length")
	}
	return int32(binary.BigEndian.Uint32(body[off : off+4])), nil
}
