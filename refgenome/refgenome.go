// Package refgenome defines the optional reference-genome collaborator
// consulted by the Normalizer in reference-assisted mode (spec.md §6),
// and a FASTA-backed implementation. Reading a FASTA file for random base
// lookups is grounded on the teacher's encoding/fasta package, simplified
// from whole-range substring extraction down to single-base lookups
// since the Normalizer only ever asks for one base at a time.
package refgenome

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
)

// ErrOutOfRange is returned when a requested position falls outside the
// named sequence, per spec.md §6.
var ErrOutOfRange = errors.New("refgenome: position out of range")

// Provider supplies single reference bases by (chromosome, 1-based
// position). It is consulted only by variant.Normalize in
// ModeReferenceAssisted.
type Provider interface {
	Base(chrom string, pos int64) (byte, error)
}

// Fasta is a Provider backed by an in-memory FASTA file, keyed by
// sequence name. It holds the whole reference in memory, same tradeoff
// the teacher's fasta.New makes for the "read everything" path.
type Fasta struct {
	seqs map[string]string
}

// Load reads r as FASTA text (">name" headers followed by sequence
// lines) and returns a Provider over it.
func Load(r io.Reader) (*Fasta, error) {
	f := &Fasta{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<28)
	var name string
	var seq strings.Builder
	flush := func() {
		if name != "" {
			f.seqs[name] = seq.String()
			seq.Reset()
		}
	}
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			name = strings.Fields(line[1:])[0]
			continue
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "refgenome: reading FASTA")
	}
	flush()
	return f, nil
}

// Base implements Provider. pos is 1-based, matching VCF POS semantics.
func (f *Fasta) Base(chrom string, pos int64) (byte, error) {
	seq, ok := f.seqs[chrom]
	if !ok {
		return 0, errors.E(ErrOutOfRange, "unknown chromosome", chrom)
	}
	if pos < 1 || pos > int64(len(seq)) {
		return 0, errors.E(ErrOutOfRange, "position", chrom)
	}
	return seq[pos-1], nil
}
