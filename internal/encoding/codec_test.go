package encoding

import (
	"bytes"
	"strings"
	"testing"
)

func TestString_RoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	for _, s := range []string{"", "adc/channel_sum", "unicode Δt"} {
		if err := WriteString(buf, s); err != nil {
			t.Fatalf("WriteString(%q): %v", s, err)
		}
	}

	reader := bytes.NewReader(buf.Bytes())
	for _, want := range []string{"", "adc/channel_sum", "unicode Δt"} {
		got, err := ReadString(reader)
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestWriteString_TooLong(t *testing.T) {
	buf := &bytes.Buffer{}
	s := strings.Repeat("x", maxStringLen+1)
	if err := WriteString(buf, s); err == nil {
		t.Error("expected an error for an oversized string")
	}
}

func TestReadString_BogusLength(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	if _, err := ReadString(bytes.NewReader(buf.Bytes())); err == nil {
		t.Error("expected an error for a bogus length prefix")
	}
}

func TestValue_RoundTrip(t *testing.T) {
	values := []WireValue{
		{Kind: WireMissing},
		{Kind: WireNumber, Num: 42.5},
		{Kind: WireNumber, Num: -0.0001},
		{Kind: WireText, Str: "armed"},
		{Kind: WireBoolean, Flag: true},
		{Kind: WireBoolean, Flag: false},
	}

	buf := &bytes.Buffer{}
	for _, v := range values {
		if err := WriteValue(buf, v); err != nil {
			t.Fatalf("WriteValue(%+v): %v", v, err)
		}
	}

	reader := bytes.NewReader(buf.Bytes())
	for _, want := range values {
		got, err := ReadValue(reader)
		if err != nil {
			t.Fatalf("ReadValue: %v", err)
		}
		if got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	}
}

func TestValue_UnknownKind(t *testing.T) {
	if err := WriteValue(&bytes.Buffer{}, WireValue{Kind: 99}); err == nil {
		t.Error("expected an error writing an unknown kind")
	}
	if _, err := ReadValue(bytes.NewReader([]byte{99})); err == nil {
		t.Error("expected an error reading an unknown kind")
	}
}

func TestPoint_RoundTrip(t *testing.T) {
	points := []WirePoint{
		{Value: WireValue{Kind: WireNumber, Num: 1.5}, Timestamp: 1709294400000000000, Elapsed: 0},
		{Value: WireValue{Kind: WireText, Str: "ok"}, Timestamp: 1709294401000000000, Elapsed: 1},
		{Value: WireValue{Kind: WireMissing}, Timestamp: -5, Elapsed: -5e-9},
	}

	buf := &bytes.Buffer{}
	for _, p := range points {
		if err := WritePoint(buf, p); err != nil {
			t.Fatalf("WritePoint(%+v): %v", p, err)
		}
	}

	reader := bytes.NewReader(buf.Bytes())
	for _, want := range points {
		got, err := ReadPoint(reader)
		if err != nil {
			t.Fatalf("ReadPoint: %v", err)
		}
		if got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	}
}

func TestReadPoint_Truncated(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WritePoint(buf, WirePoint{Value: WireValue{Kind: WireNumber, Num: 1}}); err != nil {
		t.Fatalf("WritePoint: %v", err)
	}
	data := buf.Bytes()
	if _, err := ReadPoint(bytes.NewReader(data[:len(data)-4])); err == nil {
		t.Error("expected an error for truncated input")
	}
}
