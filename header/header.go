// Package header parses VCF meta-lines into a frozen, typed field
// dictionary consulted by every downstream pipeline stage. Parsing
// follows the ##key=<key=value,...> meta-line grammar common to VCF 4.x;
// see other_examples' awilkey-bio-format-tools-go vcf reader for the
// tag-list grammar this is modeled on.
package header

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/Zacharyr41/vcfload/vcfpb"
)

// Sentinel kinds for the taxonomy in spec.md §7. Wrapped with
// github.com/grailbio/base/errors.E for context, matching the teacher's
// errors.E(err, "message:", detail) idiom.
var (
	ErrMalformedHeader        = errors.New("header: malformed meta-line")
	ErrInvalidFieldDeclaration = errors.New("header: invalid field declaration")
)

// Dict is the frozen, read-only field dictionary built from a VCF
// header. It is shared by reference across the whole pipeline, mirroring
// how the teacher shares a *sam.Header across all BAM readers in a shard.
type Dict struct {
	FileFormat string
	Info       map[string]*vcfpb.HeaderField
	Format     map[string]*vcfpb.HeaderField
	// Contigs preserves declared contig order. It is not consulted by
	// rowbuild: an unset constrained alphabet falls back to
	// rowbuild.DefaultConstrainedAlphabet.
	Contigs []string
	// Other holds opaque, non-INFO/FORMAT/contig meta key/value pairs
	// (e.g. ##source=, ##reference=), preserved for provenance only.
	Other []KV
	// Samples is the ordered sample-column list taken from the column
	// header line; empty if the file carries no genotype columns.
	Samples []string

	// Warnings accumulates non-fatal parse issues (duplicate ids), in
	// occurrence order.
	Warnings []string
}

// KV is an opaque, order-preserved meta-line key/value pair.
type KV struct {
	Key, Value string
}

// columnHeaderPrefix is the required column header, spec.md §6.
const columnHeaderPrefix = "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"

// Parse reads VCF meta-lines from r until (and including) the column
// header line, and returns the frozen Dict. It does not consume any data
// lines; callers should keep using the same *bufio.Reader (or a
// bufio.Scanner built atop the same stream) to read records afterward.
func Parse(r *bufio.Reader) (*Dict, error) {
	d := &Dict{
		Info:   make(map[string]*vcfpb.HeaderField),
		Format: make(map[string]*vcfpb.HeaderField),
	}
	seenInfo := make(map[string]int)
	seenFormat := make(map[string]int)
	sawFileformat := false
	sawColumnHeader := false

	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.E(err, "header: reading meta-lines")
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if err == io.EOF {
				break
			}
			continue
		}
		if strings.HasPrefix(trimmed, "##") {
			if perr := parseMetaLine(d, trimmed[2:], seenInfo, seenFormat); perr != nil {
				return nil, perr
			}
			if strings.HasPrefix(trimmed[2:], "fileformat=") {
				sawFileformat = true
			}
		} else if strings.HasPrefix(trimmed, "#") {
			if !sawFileformat {
				return nil, errors.E(ErrMalformedHeader, "missing ##fileformat meta-line before column header")
			}
			if perr := parseColumnHeader(d, trimmed); perr != nil {
				return nil, perr
			}
			sawColumnHeader = true
			break
		} else {
			return nil, errors.E(ErrMalformedHeader, "unexpected non-meta line before column header")
		}
		if err == io.EOF {
			break
		}
	}
	if !sawColumnHeader {
		return nil, errors.E(ErrMalformedHeader, "missing #CHROM column header line")
	}
	return d, nil
}

func parseColumnHeader(d *Dict, line string) error {
	if !strings.HasPrefix(line, columnHeaderPrefix) {
		return errors.E(ErrMalformedHeader, "column header missing required columns:", line)
	}
	rest := strings.TrimPrefix(line, columnHeaderPrefix)
	rest = strings.TrimPrefix(rest, "\t")
	if rest == "" {
		return nil
	}
	cols := strings.Split(rest, "\t")
	if cols[0] != "FORMAT" {
		return errors.E(ErrMalformedHeader, "expected FORMAT column before sample columns")
	}
	if len(cols) < 2 {
		return errors.E(ErrMalformedHeader, "FORMAT column present with no sample columns")
	}
	d.Samples = append(d.Samples, cols[1:]...)
	return nil
}

func parseMetaLine(d *Dict, body string, seenInfo, seenFormat map[string]int) error {
	eq := strings.IndexByte(body, '=')
	if eq < 0 {
		return errors.E(ErrMalformedHeader, "meta-line missing '=':", body)
	}
	key, value := body[:eq], body[eq+1:]
	if !strings.HasPrefix(value, "<") || !strings.HasSuffix(value, ">") {
		// Simple ##key=value line (fileformat, source, reference, ...).
		d.Other = append(d.Other, KV{Key: key, Value: value})
		return nil
	}
	tags, err := parseTagList(value[1 : len(value)-1])
	if err != nil {
		return errors.E(ErrMalformedHeader, "malformed tag list in", key, "line:", err.Error())
	}
	switch key {
	case "INFO":
		return addFieldDecl(d, vcfpb.NamespaceInfo, tags, seenInfo, d.Warnings)
	case "FORMAT":
		return addFieldDecl(d, vcfpb.NamespaceFormat, tags, seenFormat, d.Warnings)
	case "contig":
		if id, ok := tags["ID"]; ok {
			d.Contigs = append(d.Contigs, id)
		}
	default:
		d.Other = append(d.Other, KV{Key: key, Value: value})
	}
	return nil
}

// parseTagList splits a "K1=V1,K2=V2,..." body, respecting double-quoted
// values that may themselves contain commas (Description="a, b").
func parseTagList(body string) (map[string]string, error) {
	out := make(map[string]string)
	var i int
	for i < len(body) {
		eq := strings.IndexByte(body[i:], '=')
		if eq < 0 {
			return nil, errors.New("tag missing '='")
		}
		k := strings.TrimSpace(body[i : i+eq])
		i += eq + 1
		var v string
		if i < len(body) && body[i] == '"' {
			end := i + 1
			for end < len(body) && body[end] != '"' {
				if body[end] == '\\' && end+1 < len(body) {
					end++
				}
				end++
			}
			if end >= len(body) {
				return nil, errors.New("unterminated quoted value")
			}
			v = body[i+1 : end]
			i = end + 1
			if i < len(body) && body[i] == ',' {
				i++
			}
		} else {
			comma := strings.IndexByte(body[i:], ',')
			if comma < 0 {
				v = body[i:]
				i = len(body)
			} else {
				v = body[i : i+comma]
				i += comma + 1
			}
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func addFieldDecl(d *Dict, ns vcfpb.Namespace, tags map[string]string, seen map[string]int, _ []string) error {
	id, ok := tags["ID"]
	if !ok {
		return errors.E(ErrInvalidFieldDeclaration, ns.String(), "declaration missing ID")
	}
	numberStr, hasNumber := tags["Number"]
	typeStr, hasType := tags["Type"]
	if !hasNumber || !hasType {
		return errors.E(ErrInvalidFieldDeclaration, id, "missing Number or Type")
	}
	vt, err := parseVCFType(typeStr)
	if err != nil {
		return errors.E(ErrInvalidFieldDeclaration, id, "unknown Type:", typeStr)
	}
	card, err := parseCardinality(numberStr, ns, vt)
	if err != nil {
		return errors.E(ErrInvalidFieldDeclaration, id, err.Error())
	}
	if vt == vcfpb.TypeFlag && !card.Fixed(0) {
		return errors.E(ErrInvalidFieldDeclaration, id, "Type=Flag requires Number=0")
	}

	target := d.Info
	if ns == vcfpb.NamespaceFormat {
		target = d.Format
	}
	if _, dup := target[id]; dup {
		d.Warnings = append(d.Warnings, "duplicate "+ns.String()+" declaration for id "+id+", first wins")
		log.Error.Printf("header: duplicate %s declaration for %q, keeping first", ns, id)
		seen[id]++
		return nil
	}
	seen[id] = 1
	target[id] = &vcfpb.HeaderField{
		ID:          id,
		Namespace:   ns,
		VCFType:     vt,
		Cardinality: card,
		Description: tags["Description"],
		ColumnName:  SanitizeColumn(id, globalColumnNames(target)),
		StorageKind: storageKindFor(vt, card),
	}
	return nil
}

func globalColumnNames(m map[string]*vcfpb.HeaderField) map[string]int {
	used := make(map[string]int, len(m))
	for _, f := range m {
		used[f.ColumnName]++
	}
	return used
}

func storageKindFor(vt vcfpb.VCFType, c vcfpb.Cardinality) vcfpb.StorageKind {
	if vt == vcfpb.TypeFlag {
		return vcfpb.StorageFlag
	}
	// Number=A and Number=. project to one value per decomposed row (the
	// row's own ALT element, or the raw comma-joined string).
	if c.Fixed(1) || c.Kind == vcfpb.CardPerAlt || c.Kind == vcfpb.CardUnbounded {
		return vcfpb.StorageScalar
	}
	return vcfpb.StorageArray
}

func parseVCFType(s string) (vcfpb.VCFType, error) {
	switch s {
	case "Integer":
		return vcfpb.TypeInteger, nil
	case "Float":
		return vcfpb.TypeFloat, nil
	case "Flag":
		return vcfpb.TypeFlag, nil
	case "Character":
		return vcfpb.TypeCharacter, nil
	case "String":
		return vcfpb.TypeString, nil
	default:
		return 0, errors.New("unknown VCF Type " + s)
	}
}

func parseCardinality(s string, ns vcfpb.Namespace, vt vcfpb.VCFType) (vcfpb.Cardinality, error) {
	switch s {
	case "A":
		return vcfpb.Cardinality{Kind: vcfpb.CardPerAlt}, nil
	case "R":
		return vcfpb.Cardinality{Kind: vcfpb.CardPerAllele}, nil
	case "G":
		return vcfpb.Cardinality{Kind: vcfpb.CardPerGenotype}, nil
	case ".":
		return vcfpb.Cardinality{Kind: vcfpb.CardUnbounded}, nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return vcfpb.Cardinality{}, errors.New("invalid Number value " + s)
		}
		if n == 0 && !(ns == vcfpb.NamespaceInfo && vt == vcfpb.TypeFlag) {
			return vcfpb.Cardinality{}, errors.New("Number=0 only valid for INFO Type=Flag")
		}
		return vcfpb.Cardinality{Kind: vcfpb.CardFixed, N: n}, nil
	}
}

// SanitizeColumn derives a stable, lossless column name from a field id:
// lowercase, replace every rune outside [a-z0-9_] with '_', and break
// collisions with a numeric suffix. used tracks column names already
// assigned within the same namespace so repeated calls stay collision-free.
func SanitizeColumn(id string, used map[string]int) string {
	var b bytes.Buffer
	for _, r := range strings.ToLower(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	base := b.String()
	if base == "" {
		base = "field"
	}
	name := base
	for n := 1; ; n++ {
		if _, taken := used[name]; !taken {
			used[name] = 1
			return name
		}
		name = base + "_" + strconv.Itoa(n)
	}
}

// Lookup finds a declared field by namespace and id, reporting ok=false
// if undeclared (callers treat undeclared ANN/CSQ-style fields as String
// per spec.md §3's invariant).
func (d *Dict) Lookup(ns vcfpb.Namespace, id string) (*vcfpb.HeaderField, bool) {
	m := d.Info
	if ns == vcfpb.NamespaceFormat {
		m = d.Format
	}
	f, ok := m[id]
	return f, ok
}
