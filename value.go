package gridline

import "strconv"

// ValueKind identifies the concrete kind of a Value.
type ValueKind uint8

const (
	// KindMissing marks a sample that carried no usable value.
	KindMissing ValueKind = iota
	// KindNumber is a float64 measurement.
	KindNumber
	// KindText is a free-form string reading.
	KindText
	// KindBoolean is an on/off state reading.
	KindBoolean
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	default:
		return "missing"
	}
}

// Value is a tagged telemetry reading. Channels may emit numeric samples,
// textual status strings, boolean flags, or nothing at all; the kind tag makes
// interpolation eligibility an explicit branch instead of runtime reflection.
//
// The zero Value is Missing.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	flag bool
}

// Number creates a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text creates a textual Value.
func Text(s string) Value { return Value{kind: KindText, str: s} }

// Boolean creates a boolean Value.
func Boolean(b bool) Value { return Value{kind: KindBoolean, flag: b} }

// Missing creates an explicitly absent Value.
func Missing() Value { return Value{} }

// Kind returns the value's kind tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNumeric reports whether the value can participate in interpolation.
func (v Value) IsNumeric() bool { return v.kind == KindNumber }

// IsMissing reports whether the value carries no reading.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Float returns the numeric reading, if the value is numeric.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Text returns the textual reading, if the value is text.
func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.str, true
}

// Bool returns the boolean reading, if the value is boolean.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.flag, true
}

// String renders the value for display and row formatting.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return v.str
	case KindBoolean:
		return strconv.FormatBool(v.flag)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == other.num
	case KindText:
		return v.str == other.str
	case KindBoolean:
		return v.flag == other.flag
	default:
		return true
	}
}
