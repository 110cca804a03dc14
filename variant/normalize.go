package variant

import "github.com/Zacharyr41/vcfload/refgenome"

// NormalizeMode selects between the two algorithms in spec.md §4.4.
type NormalizeMode int

const (
	// ModeContextFree left-aligns using only the trimming steps, with no
	// reference lookup. Exact whenever the input already carries a VCF
	// anchoring base.
	ModeContextFree NormalizeMode = iota
	// ModeReferenceAssisted continues shifting left using a
	// refgenome.Provider after context-free trimming bottoms out.
	ModeReferenceAssisted
)

// Normalize rewrites row's (Pos, Ref, Alt) into parsimonious, left-aligned
// form in place and returns it as a NormalizedRow. provider is consulted
// only in ModeReferenceAssisted and may be nil in ModeContextFree.
//
// Spanning deletions (Alt == "*") and symbolic alleles (<DEL>, ...) are
// never normalized: they have no literal sequence to trim, per spec.md
// §4.4 step 4.
func Normalize(row BiallelicRow, mode NormalizeMode, provider refgenome.Provider) (NormalizedRow, error) {
	if row.Spanning || row.Symbolic {
		return NormalizedRow{row}, nil
	}

	ref, alt, pos := []byte(row.Ref), []byte(row.Alt), row.Pos

	// Step 1: trim from the right while the final bases match and at
	// least one string has more than one base left.
	for len(ref) >= 1 && len(alt) >= 1 && ref[len(ref)-1] == alt[len(alt)-1] && (len(ref) > 1 || len(alt) > 1) {
		ref = ref[:len(ref)-1]
		alt = alt[:len(alt)-1]
	}
	// Step 2: trim from the left while the first bases match and at
	// least one string has more than one base left, advancing pos.
	for len(ref) >= 1 && len(alt) >= 1 && ref[0] == alt[0] && (len(ref) > 1 || len(alt) > 1) {
		ref = ref[1:]
		alt = alt[1:]
		pos++
	}

	if len(ref) == 0 || len(alt) == 0 {
		if mode == ModeReferenceAssisted && provider != nil {
			var err error
			ref, alt, pos, err = extendLeft(ref, alt, pos, row.Chrom, provider)
			if err != nil {
				return NormalizedRow{}, err
			}
		} else {
			// Context-free mode: trimming removes the shared VCF
			// anchoring base of an indel (REF=A, ALT=AT becomes "" / "T"),
			// and with no reference to read the base before pos there is
			// nothing to refill it with. Leave the shorter side empty
			// rather than guess.
		}
	}

	row.Ref = string(ref)
	row.Alt = string(alt)
	row.Pos = pos
	return NormalizedRow{row}, nil
}

// extendLeft implements spec.md §4.4's reference-assisted continuation:
// keep prepending the reference base immediately before pos to both ref
// and alt while it matches, terminating at a mismatch or pos==1.
func extendLeft(ref, alt []byte, pos int64, chrom string, provider refgenome.Provider) ([]byte, []byte, int64, error) {
	for pos > 1 && (len(ref) == 0 || len(alt) == 0) {
		base, err := provider.Base(chrom, pos-1)
		if err != nil {
			return nil, nil, 0, err
		}
		ref = append([]byte{base}, ref...)
		alt = append([]byte{base}, alt...)
		pos--
		// The newly prepended base may now make the pair's trailing
		// bases match again (the classic repeat-unit shift); trim right
		// before deciding whether another left extension is needed.
		for len(ref) >= 1 && len(alt) >= 1 && ref[len(ref)-1] == alt[len(alt)-1] && (len(ref) > 1 || len(alt) > 1) {
			ref = ref[:len(ref)-1]
			alt = alt[:len(alt)-1]
		}
	}
	return ref, alt, pos, nil
}
