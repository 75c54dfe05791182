package model

import (
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValueAbsent ValueKind = iota
	ValueString
	ValueNumber
)

// Value is a single cell produced by a tabular parser: a string, a number, or absent.
type Value struct {
	kind ValueKind
	str  string
	num  float64
}

// Absent returns the empty cell value.
func Absent() Value { return Value{} }

// String wraps raw cell text. Whitespace-only text is Absent.
func String(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{}
	}
	return Value{kind: ValueString, str: s}
}

// Number wraps a numeric cell.
func Number(f float64) Value {
	return Value{kind: ValueNumber, num: f}
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether the cell was empty or missing.
func (v Value) IsAbsent() bool { return v.kind == ValueAbsent }

// Text renders the value as trimmed text. Whole numbers render without a
// fractional part so that 2026 reads as "2026", not "2026.000000".
func (v Value) Text() string {
	switch v.kind {
	case ValueString:
		return strings.TrimSpace(v.str)
	case ValueNumber:
		if v.num == float64(int64(v.num)) {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Float returns the numeric content of a Number cell.
func (v Value) Float() (float64, bool) {
	if v.kind != ValueNumber {
		return 0, false
	}
	return v.num, true
}

// Row maps a file's literal header labels to cell values.
type Row map[string]Value

// Get returns the value under header, or Absent when header is empty or missing.
func (r Row) Get(header string) Value {
	if header == "" {
		return Absent()
	}
	return r[header]
}

// Blank reports whether every cell in the row is absent.
func (r Row) Blank() bool {
	for _, v := range r {
		if !v.IsAbsent() {
			return false
		}
	}
	return true
}

// CanonicalFieldMap maps a canonical field name to the header label that
// carries it in one specific file. Unmapped fields have no entry.
type CanonicalFieldMap map[string]string

// Lookup returns the value of canonical field in row and whether the field is
// mapped for this file.
func (m CanonicalFieldMap) Lookup(row Row, field string) (Value, bool) {
	header, ok := m[field]
	if !ok {
		return Absent(), false
	}
	return row.Get(header), true
}
