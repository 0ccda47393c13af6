// Package encoding provides the binary codec for telemetry snapshot payloads.
package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Value kind tags on the wire. These mirror the package-level value kinds and
// must not be renumbered.
const (
	WireMissing byte = 0
	WireNumber  byte = 1
	WireText    byte = 2
	WireBoolean byte = 3
)

var errStringTooLong = errors.New("string exceeds maximum encodable length")

const maxStringLen = 1 << 20

// WriteString writes a length-prefixed string.
func WriteString(buf *bytes.Buffer, s string) error {
	if len(s) > maxStringLen {
		return errStringTooLong
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

// ReadString reads a length-prefixed string.
func ReadString(reader *bytes.Reader) (string, error) {
	var length uint32
	if err := binary.Read(reader, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds maximum", length)
	}
	raw := make([]byte, length)
	if _, err := reader.Read(raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

// WireValue is the codec-level representation of a tagged value.
type WireValue struct {
	Kind byte
	Num  float64
	Str  string
	Flag bool
}

// WriteValue writes a tagged value.
func WriteValue(buf *bytes.Buffer, v WireValue) error {
	if err := buf.WriteByte(v.Kind); err != nil {
		return err
	}
	switch v.Kind {
	case WireNumber:
		return binary.Write(buf, binary.LittleEndian, math.Float64bits(v.Num))
	case WireText:
		return WriteString(buf, v.Str)
	case WireBoolean:
		flag := byte(0)
		if v.Flag {
			flag = 1
		}
		return buf.WriteByte(flag)
	case WireMissing:
		return nil
	default:
		return fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// ReadValue reads a tagged value.
func ReadValue(reader *bytes.Reader) (WireValue, error) {
	kind, err := reader.ReadByte()
	if err != nil {
		return WireValue{}, err
	}
	v := WireValue{Kind: kind}
	switch kind {
	case WireNumber:
		var bits uint64
		if err := binary.Read(reader, binary.LittleEndian, &bits); err != nil {
			return WireValue{}, err
		}
		v.Num = math.Float64frombits(bits)
	case WireText:
		s, err := ReadString(reader)
		if err != nil {
			return WireValue{}, err
		}
		v.Str = s
	case WireBoolean:
		flag, err := reader.ReadByte()
		if err != nil {
			return WireValue{}, err
		}
		v.Flag = flag != 0
	case WireMissing:
	default:
		return WireValue{}, fmt.Errorf("unknown value kind %d", kind)
	}
	return v, nil
}

// WirePoint is the codec-level representation of one observation.
type WirePoint struct {
	Value     WireValue
	Timestamp int64
	Elapsed   float64
}

// WritePoint writes one observation.
func WritePoint(buf *bytes.Buffer, p WirePoint) error {
	if err := WriteValue(buf, p.Value); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, p.Timestamp); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, math.Float64bits(p.Elapsed))
}

// ReadPoint reads one observation.
func ReadPoint(reader *bytes.Reader) (WirePoint, error) {
	v, err := ReadValue(reader)
	if err != nil {
		return WirePoint{}, err
	}
	p := WirePoint{Value: v}
	if err := binary.Read(reader, binary.LittleEndian, &p.Timestamp); err != nil {
		return WirePoint{}, err
	}
	var bits uint64
	if err := binary.Read(reader, binary.LittleEndian, &bits); err != nil {
		return WirePoint{}, err
	}
	p.Elapsed = math.Float64frombits(bits)
	return p, nil
}
