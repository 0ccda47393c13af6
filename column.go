package gridline

import "fmt"

// Policy selects how a column's channel is matched to the reference timebase.
type Policy int

const (
	// Synchronized columns only accept points whose absolute timestamp
	// matches the reference anchor's within a microsecond-scale tolerance.
	// This captures values that physically arrived in the same update burst
	// as the reference, independent of elapsed-time rounding.
	Synchronized Policy = iota
	// Interpolated columns linearly interpolate numeric values between the
	// bracketing points around the grid time.
	Interpolated
	// Asynchronous columns snap to the nearest point, never interpolating.
	Asynchronous
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Synchronized:
		return "synchronized"
	case Interpolated:
		return "interpolated"
	case Asynchronous:
		return "asynchronous"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name as used in schema files.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "synchronized":
		return Synchronized, nil
	case "interpolated":
		return Interpolated, nil
	case "asynchronous":
		return Asynchronous, nil
	default:
		return 0, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, s)
	}
}

// ConverterFunc transforms a raw resolved value into the column's output
// units. A failed conversion marks the cell unresolved; it never fails the
// row or the build.
type ConverterFunc func(Value) (Value, error)

// IdentityConverter returns the value unchanged.
func IdentityConverter(v Value) (Value, error) { return v, nil }

// LinearConverter returns a converter computing value*scale + offset.
// Non-numeric input is a conversion error.
func LinearConverter(scale, offset float64) ConverterFunc {
	return func(v Value) (Value, error) {
		f, ok := v.Float()
		if !ok {
			return Value{}, fmt.Errorf("%w: linear conversion needs a numeric value, got %s", ErrConversion, v.Kind())
		}
		return Number(f*scale + offset), nil
	}
}

// ColumnSpec is the static configuration for one output column. Immutable
// once a table is constructed.
type ColumnSpec struct {
	// Name is the output column name, unique within a table.
	Name string
	// Channel is the source channel id. Empty means a computed column: the
	// engine leaves its cells unresolved for the consumer to populate (row
	// timestamps, note fields).
	Channel ChannelID
	// Policy selects the alignment algorithm.
	Policy Policy
	// Convert transforms raw resolved values. Nil means identity.
	Convert ConverterFunc
}

// computed reports whether the column has no source channel.
func (c ColumnSpec) computed() bool { return c.Channel == "" }

// validateColumns checks name uniqueness and fills nil converters.
func validateColumns(columns []ColumnSpec) ([]ColumnSpec, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: at least one column required", ErrInvalidConfig)
	}
	out := make([]ColumnSpec, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrInvalidConfig, i)
		}
		if _, dup := seen[col.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column name %q", ErrInvalidConfig, col.Name)
		}
		seen[col.Name] = struct{}{}
		if col.Convert == nil {
			col.Convert = IdentityConverter
		}
		out[i] = col
	}
	return out, nil
}
