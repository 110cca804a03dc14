// Package vcfio provides a lazy, restartable sequence of vcfpb.RawRecord
// values decoded from a (possibly gzip or bgzf-compressed) VCF byte
// stream. It performs no type coercion and no per-ALT logic; it only
// frames lines and splits fields into untyped byte tokens, the same
// division of labor the teacher's fastq.Scanner draws between framing
// and interpretation.
package vcfio

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"strconv"

	"github.com/grailbio/hts/bgzf"

	"github.com/Zacharyr41/vcfload/header"
	"github.com/Zacharyr41/vcfload/vcfpb"
)

// Sentinel scan errors, spec.md §4.2's per-record taxonomy.
var (
	ErrMalformedRecord = errors.New("vcfio: malformed record")
	ErrIO              = errors.New("vcfio: I/O error")
	ErrCodec           = errors.New("vcfio: decompression error")
)

var errEOF = errors.New("vcfio: eof")

const minColumns = 8

// missingToken is the canonical "." token sentinel. A field that is exactly
// "." is missing; an empty-string token (only legal for String fields)
// is distinct and preserved.
var missingToken = []byte(".")

// Open wraps r with transparent gzip/bgzf decompression based on the
// stream's magic bytes, or passes it through unchanged for plain text.
// bgzfWorkers controls bgzf decompression parallelism (0 picks the
// hts/bgzf default).
func Open(r io.Reader, bgzfWorkers int) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, errWrap(ErrIO, "peeking magic bytes", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		if isBGZF(br) {
			bg, err := bgzf.NewReader(br, bgzfWorkers)
			if err != nil {
				return nil, errWrap(ErrCodec, "opening bgzf stream", err)
			}
			return bg, nil
		}
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errWrap(ErrCodec, "opening gzip stream", err)
		}
		return gz, nil
	}
	return br, nil
}

// isBGZF peeks far enough to distinguish a BGZF block (which carries the
// BC extra subfield right after the standard gzip header) from plain
// gzip. Both share the 0x1f 0x8b magic, so the extra-field layout is the
// only distinguishing signal available without consuming the stream.
func isBGZF(br *bufio.Reader) bool {
	head, err := br.Peek(18)
	if err != nil || len(head) < 18 {
		return false
	}
	// FLG.FEXTRA must be set (bit 2 of byte 3) and the subfield id must
	// be "BC" (bytes 12-13), per the BGZF extension to RFC 1952 §2.3.1.1.
	return head[3]&0x04 != 0 && head[12] == 'B' && head[13] == 'C'
}

func errWrap(sentinel error, msg string, cause error) error {
	return &wrappedErr{sentinel: sentinel, msg: msg, cause: cause}
}

type wrappedErr struct {
	sentinel error
	msg      string
	cause    error
}

func (e *wrappedErr) Error() string {
	if e.cause != nil {
		return "vcfio: " + e.msg + ": " + e.cause.Error()
	}
	return "vcfio: " + e.msg
}

func (e *wrappedErr) Unwrap() error { return e.cause }
func (e *wrappedErr) Is(target error) bool {
	return target == e.sentinel
}

// Scanner reads successive VCF data lines and splits them into a
// vcfpb.RawRecord. Scan returns false once EOF or an error is hit; check
// Err after the final false return. Not safe for concurrent use, same
// contract as the teacher's fastq.Scanner.
type Scanner struct {
	b       *bufio.Scanner
	dict    *header.Dict
	err     error
	lineNum int64
	// SkipMalformed controls whether a short line is skipped-and-counted
	// (default) or treated as fatal, per spec.md §4.2's configurable
	// policy.
	SkipMalformed bool
	skipped       int64
}

// NewScanner constructs a Scanner over r (which should already have any
// compression stripped by Open), using dict to size sample columns.
func NewScanner(r io.Reader, dict *header.Dict) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 64*1024*1024)
	return &Scanner{b: s, dict: dict, SkipMalformed: true}
}

// Err returns the terminal scan error, or nil if the stream ended
// cleanly.
func (s *Scanner) Err() error {
	if s.err == errEOF {
		return nil
	}
	return s.err
}

// Skipped returns the number of MalformedRecord lines skipped so far.
func (s *Scanner) Skipped() int64 { return s.skipped }

// Scan decodes the next data line into rec. It returns false once
// scanning can no longer continue; the caller should stop iterating.
func (s *Scanner) Scan(rec *vcfpb.RawRecord) bool {
	for {
		if s.err != nil {
			return false
		}
		if !s.b.Scan() {
			if s.err = s.b.Err(); s.err == nil {
				s.err = errEOF
			} else {
				s.err = errWrap(ErrIO, "reading record", s.err)
			}
			return false
		}
		s.lineNum++
		raw := s.b.Bytes()
		if len(raw) == 0 {
			continue
		}
		// s.b.Bytes() aliases the Scanner's reused internal buffer, which
		// the next Scan call overwrites; copy it here so every []byte
		// field parseLine derives from line belongs to this RawRecord
		// alone; with records handed off across goroutines (load.stream),
		// aliasing the scan buffer would be both a data race and a source
		// of corrupted fields once the buffer is reused.
		line := make([]byte, len(raw))
		copy(line, raw)
		if err := parseLine(line, rec, s.dict); err != nil {
			if s.SkipMalformed {
				s.skipped++
				continue
			}
			s.err = errWrap(ErrMalformedRecord, "line", err)
			return false
		}
		rec.LineNumber = s.lineNum
		return true
	}
}

func parseLine(line []byte, rec *vcfpb.RawRecord, dict *header.Dict) error {
	fields := bytes.Split(line, []byte{'\t'})
	if len(fields) < minColumns {
		return errors.New("fewer than 8 columns")
	}
	rec.Chrom = fields[0]
	pos, err := parseInt(fields[1])
	if err != nil {
		return errors.New("malformed POS")
	}
	rec.Pos = pos
	rec.ID = orNil(fields[2])
	rec.Ref = fields[3]

	rec.Alts = rec.Alts[:0]
	for _, a := range bytes.Split(fields[4], []byte{','}) {
		rec.Alts = append(rec.Alts, a)
	}
	if len(rec.Alts) == 0 {
		return errors.New("empty ALT list")
	}

	if isMissing(fields[5]) {
		rec.Qual = nil
	} else {
		q, err := parseFloat(fields[5])
		if err != nil {
			return errors.New("malformed QUAL")
		}
		rec.Qual = &q
	}

	rec.Filter = rec.Filter[:0]
	if !isMissing(fields[6]) {
		for _, f := range bytes.Split(fields[6], []byte{';'}) {
			rec.Filter = append(rec.Filter, string(f))
		}
	}

	if rec.InfoValues == nil {
		rec.InfoValues = make(map[string][][]byte)
	} else {
		for k := range rec.InfoValues {
			delete(rec.InfoValues, k)
		}
	}
	rec.InfoOrder = rec.InfoOrder[:0]
	if !isMissing(fields[7]) {
		for _, kv := range bytes.Split(fields[7], []byte{';'}) {
			if len(kv) == 0 {
				continue
			}
			eq := bytes.IndexByte(kv, '=')
			var id string
			var vals [][]byte
			if eq < 0 {
				id = string(kv) // Flag field, bare id
			} else {
				id = string(kv[:eq])
				vals = splitInfoValue(kv[eq+1:], dict)
			}
			rec.InfoOrder = append(rec.InfoOrder, id)
			rec.InfoValues[id] = vals
		}
	}

	rec.FormatKeys = rec.FormatKeys[:0]
	rec.SampleValues = rec.SampleValues[:0]
	if len(fields) > 8 {
		if len(fields) < 10 {
			return errors.New("FORMAT column present without sample columns")
		}
		for _, k := range bytes.Split(fields[8], []byte{':'}) {
			rec.FormatKeys = append(rec.FormatKeys, string(k))
		}
		for _, sampleField := range fields[9:] {
			cells := bytes.Split(sampleField, []byte{':'})
			row := make([][][]byte, len(rec.FormatKeys))
			for i := range rec.FormatKeys {
				if i < len(cells) {
					row[i] = splitSampleValue(cells[i])
				}
			}
			rec.SampleValues = append(rec.SampleValues, row)
		}
	}
	return nil
}

// splitInfoValue splits every INFO value on ",", whatever the field's
// declared Number; dict is not consulted. For Unbounded fields the
// variant package joins the tokens back into the raw comma-joined string.
func splitInfoValue(v []byte, dict *header.Dict) [][]byte {
	return bytes.Split(v, []byte{','})
}

func splitSampleValue(v []byte) [][]byte {
	if isMissing(v) {
		return nil
	}
	return bytes.Split(v, []byte{','})
}

func isMissing(b []byte) bool {
	return len(b) == 1 && b[0] == '.'
}

func orNil(b []byte) []byte {
	if isMissing(b) {
		return nil
	}
	return b
}

func parseInt(b []byte) (int64, error) {
	var n int64
	if len(b) == 0 {
		return 0, errors.New("empty")
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errors.New("not a digit")
		}
		n = n*10 + int64(c-'0')
	}
	return n, nil
}

func parseFloat(b []byte) (float64, error) {
	// QUAL is the one place vcfio type-coerces (spec.md §4.2 says the
	// reader doesn't type-coerce INFO/FORMAT tokens, but QUAL has no
	// per-ALT projection step downstream to do it later, so it is parsed
	// here using the standard library directly).
	return strconv.ParseFloat(string(b), 64)
}
