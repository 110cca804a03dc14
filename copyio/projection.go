package copyio

import (
	"sort"
	"strconv"

	"github.com/Zacharyr41/vcfload/header"
	"github.com/Zacharyr41/vcfload/rowbuild"
	"github.com/Zacharyr41/vcfload/variant"
	"github.com/Zacharyr41/vcfload/vcfpb"
)

// ColumnSpec names one destination column and the wire Kind its values
// are encoded with. The ordering here IS the frozen projection from
// spec.md §4.1/§4.5: computed once from the header dictionary and reused
// for every row in the load.
type ColumnSpec struct {
	Name string
	Kind Kind

	// infoID/formatID/sampleIdx identify which dynamic value this column
	// pulls from a Row, empty/zero for the fixed leading columns.
	infoID    string
	formatID  string
	sampleIdx int
	isFormat  bool
}

// BuildProjection derives the frozen column list from dict: the fixed
// core columns first, then one column per declared INFO field (sorted by
// id for determinism), then one column per (sample, FORMAT field) pair.
func BuildProjection(dict *header.Dict) []ColumnSpec {
	cols := []ColumnSpec{
		{Name: "chrom", Kind: KindText},
		{Name: "pos", Kind: KindInt64},
		{Name: "id", Kind: KindText},
		{Name: "ref", Kind: KindText},
		{Name: "alt", Kind: KindText},
		{Name: "alt_index", Kind: KindInt32},
		{Name: "qual", Kind: KindFloat64},
		{Name: "filter", Kind: KindArrayText},
		{Name: "pos_range", Kind: KindRangeInt8},
		{Name: "fingerprint", Kind: KindText},
		{Name: "batch_id", Kind: KindText},
	}

	ids := make([]string, 0, len(dict.Info))
	for id := range dict.Info {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		f := dict.Info[id]
		cols = append(cols, ColumnSpec{Name: f.ColumnName, Kind: kindFor(f), infoID: id})
	}

	fids := make([]string, 0, len(dict.Format))
	for id := range dict.Format {
		fids = append(fids, id)
	}
	sort.Strings(fids)
	for sIdx, sample := range dict.Samples {
		for _, id := range fids {
			f := dict.Format[id]
			cols = append(cols, ColumnSpec{
				Name:      sample + "_" + f.ColumnName,
				Kind:      kindFor(f),
				formatID:  id,
				sampleIdx: sIdx,
				isFormat:  true,
			})
		}
	}
	return cols
}

func kindFor(f *vcfpb.HeaderField) Kind {
	// Number=. values are carried as the raw comma-joined string.
	if f.Cardinality.Kind == vcfpb.CardUnbounded {
		return KindText
	}
	switch f.StorageKind {
	case vcfpb.StorageFlag:
		return KindBool
	case vcfpb.StorageArray:
		switch f.VCFType {
		case vcfpb.TypeInteger:
			return KindArrayInt64
		case vcfpb.TypeFloat:
			return KindArrayFloat64
		default:
			return KindArrayText
		}
	default:
		switch f.VCFType {
		case vcfpb.TypeInteger:
			return KindInt64
		case vcfpb.TypeFloat:
			return KindFloat64
		default:
			return KindText
		}
	}
}

// EncodeRow projects row into []Field following spec, one Field per
// ColumnSpec in order.
func EncodeRow(row rowbuild.Row, cols []ColumnSpec) []Field {
	out := make([]Field, len(cols))
	for i, c := range cols {
		switch c.Name {
		case "chrom":
			out[i] = Field{Kind: KindText, Text: row.Chrom}
		case "pos":
			out[i] = Field{Kind: KindInt64, Int64: row.Pos}
		case "id":
			if row.ID == "" {
				out[i] = Field{Kind: KindText, Null: true}
			} else {
				out[i] = Field{Kind: KindText, Text: row.ID}
			}
		case "ref":
			out[i] = Field{Kind: KindText, Text: row.Ref}
		case "alt":
			out[i] = Field{Kind: KindText, Text: row.Alt}
		case "alt_index":
			out[i] = Field{Kind: KindInt32, Int32: int32(row.AltIndex)}
		case "qual":
			if row.Qual == nil {
				out[i] = Field{Kind: KindFloat64, Null: true}
			} else {
				out[i] = Field{Kind: KindFloat64, Float64: *row.Qual}
			}
		case "filter":
			out[i] = Field{Kind: KindArrayText, ArrayText: row.Filter}
		case "pos_range":
			out[i] = Field{
				Kind:          KindRangeInt8,
				RangeLower:    row.RangeLower,
				RangeUpper:    row.RangeUpper,
				RangeLowerInc: true,
				RangeUpperInc: false,
			}
		case "fingerprint":
			out[i] = Field{Kind: KindText, Text: row.Fingerprint}
		case "batch_id":
			out[i] = Field{Kind: KindText, Text: row.BatchID}
		default:
			var tv variant.TypedValue
			var ok bool
			if c.isFormat {
				if c.sampleIdx < len(row.Format) {
					tv, ok = row.Format[c.sampleIdx][c.formatID]
				}
			} else {
				tv, ok = row.Info[c.infoID]
			}
			out[i] = encodeTypedValue(c.Kind, tv, ok)
		}
	}
	return out
}

func encodeTypedValue(kind Kind, tv variant.TypedValue, ok bool) Field {
	if !ok || (!tv.Present && kind != KindBool) {
		return Field{Kind: kind, Null: true}
	}
	switch kind {
	case KindBool:
		return Field{Kind: kind, Bool: tv.ScalarFlag}
	case KindInt64:
		return Field{Kind: kind, Int64: tv.ScalarInt}
	case KindFloat64:
		return Field{Kind: kind, Float64: tv.ScalarFloat}
	case KindArrayInt64:
		vals := make([]int64, 0, len(tv.Array))
		for _, s := range tv.Array {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				continue
			}
			vals = append(vals, n)
		}
		return Field{Kind: kind, ArrayInt64: vals}
	case KindArrayFloat64:
		vals := make([]float64, 0, len(tv.Array))
		for _, s := range tv.Array {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				continue
			}
			vals = append(vals, f)
		}
		return Field{Kind: kind, ArrayFloat64: vals}
	case KindArrayText:
		return Field{Kind: kind, ArrayText: tv.Array}
	default:
		return Field{Kind: kind, Text: tv.ScalarStr}
	}
}
