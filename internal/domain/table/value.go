package table

import (
	"math"
	"strconv"
	"strings"
)

// Kind tells which variant a Value holds.
type Kind uint8

// Value kinds.
const (
	KindEmpty Kind = iota
	KindNumber
	KindText
)

// missingTokens are the cell spellings read as a missing value.
var missingTokens = map[string]struct{}{ //nolint:gochecknoglobals // read-only lookup
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {},
	"n/a": {}, "nan": {}, "null": {},
}

// Value is a single table cell: empty, a number or text. A parsed number
// keeps its source spelling in raw so it is written back unchanged.
type Value struct {
	kind Kind
	num  float64
	text string
	raw  string
}

// Empty returns the missing value.
func Empty() Value { return Value{} }

// Number wraps f.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text wraps s.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// ParseValue classifies a raw cell: blank or a missing-value token such as
// "NA" or "null" is empty, anything strconv accepts as a finite float is a
// number, everything else is text kept verbatim.
func ParseValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Empty()
	}
	if _, ok := missingTokens[trimmed]; ok {
		return Empty()
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return Value{kind: KindNumber, num: f, raw: trimmed}
	}
	return Text(raw)
}

// Kind returns the variant.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether the cell is missing.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// Float returns the numeric content. Text that parses as a number is accepted.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders the cell the way it is written to CSV. Parsed numbers keep
// their source spelling; built numbers use the shortest round-trip form.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		if v.raw != "" {
			return v.raw
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}
