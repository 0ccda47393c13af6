package gridline

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/golang/snappy"

	"github.com/gridline-db/gridline/internal/encoding"
)

// Snapshot framing: magic, CRC32 of the compressed payload, payload length,
// snappy-compressed payload.
const (
	snapshotMagic      = "GRDSNP1"
	snapshotHeaderSize = len(snapshotMagic) + 8
)

// StoreSnapshot is a decoded point-in-time copy of a TelemetryStore, used for
// diagnostics handoff (bug reports, offline timing analysis). It is plain
// bytes in memory; callers own any durability.
type StoreSnapshot struct {
	SessionID            string
	GlobalFirstTimestamp int64
	Channels             map[ChannelID][]Point
}

// EncodeStoreSnapshot serializes the store's current contents into a
// compressed, checksummed byte block. Each channel is snapshotted
// independently; a concurrent producer may land points between channel
// snapshots, which is acceptable for a diagnostic dump.
func EncodeStoreSnapshot(store *TelemetryStore) ([]byte, error) {
	payload := &bytes.Buffer{}

	if err := encoding.WriteString(payload, store.SessionID()); err != nil {
		return nil, err
	}
	globalFirst, _ := store.GlobalFirstTimestamp()
	if err := binary.Write(payload, binary.LittleEndian, globalFirst); err != nil {
		return nil, err
	}

	ids := store.ChannelIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if err := binary.Write(payload, binary.LittleEndian, uint32(len(ids))); err != nil {
		return nil, err
	}
	for _, id := range ids {
		var pts []Point
		if ledger := store.Ledger(id); ledger != nil {
			pts = ledger.snapshot()
		}
		if err := encoding.WriteString(payload, string(id)); err != nil {
			return nil, err
		}
		if err := binary.Write(payload, binary.LittleEndian, uint32(len(pts))); err != nil {
			return nil, err
		}
		for _, p := range pts {
			if err := encoding.WritePoint(payload, wirePoint(p)); err != nil {
				return nil, err
			}
		}
	}

	compressed := snappy.Encode(nil, payload.Bytes())

	out := &bytes.Buffer{}
	out.WriteString(snapshotMagic)
	if err := binary.Write(out, binary.LittleEndian, crc32.ChecksumIEEE(compressed)); err != nil {
		return nil, err
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return nil, err
	}
	out.Write(compressed)
	return out.Bytes(), nil
}

// DecodeStoreSnapshot parses a block produced by EncodeStoreSnapshot,
// rejecting truncated or corrupted input.
func DecodeStoreSnapshot(data []byte) (*StoreSnapshot, error) {
	if len(data) < snapshotHeaderSize {
		return nil, fmt.Errorf("%w: snapshot block truncated", ErrStructural)
	}
	if string(data[:len(snapshotMagic)]) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad snapshot magic", ErrStructural)
	}
	checksum := binary.LittleEndian.Uint32(data[len(snapshotMagic):])
	length := binary.LittleEndian.Uint32(data[len(snapshotMagic)+4:])
	body := data[snapshotHeaderSize:]
	if uint32(len(body)) != length {
		return nil, fmt.Errorf("%w: snapshot length mismatch", ErrStructural)
	}
	if crc32.ChecksumIEEE(body) != checksum {
		return nil, fmt.Errorf("%w: snapshot checksum mismatch", ErrStructural)
	}

	payload, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructural, err)
	}
	reader := bytes.NewReader(payload)

	snap := &StoreSnapshot{Channels: make(map[ChannelID][]Point)}
	if snap.SessionID, err = encoding.ReadString(reader); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.LittleEndian, &snap.GlobalFirstTimestamp); err != nil {
		return nil, err
	}

	var channelCount uint32
	if err := binary.Read(reader, binary.LittleEndian, &channelCount); err != nil {
		return nil, err
	}
	for i := uint32(0); i < channelCount; i++ {
		id, err := encoding.ReadString(reader)
		if err != nil {
			return nil, err
		}
		var pointCount uint32
		if err := binary.Read(reader, binary.LittleEndian, &pointCount); err != nil {
			return nil, err
		}
		pts := make([]Point, 0, pointCount)
		for j := uint32(0); j < pointCount; j++ {
			wp, err := encoding.ReadPoint(reader)
			if err != nil {
				return nil, err
			}
			pts = append(pts, storedPoint(wp))
		}
		snap.Channels[ChannelID(id)] = pts
	}
	return snap, nil
}

func wirePoint(p Point) encoding.WirePoint {
	wp := encoding.WirePoint{Timestamp: p.Timestamp, Elapsed: p.Elapsed}
	switch p.Value.Kind() {
	case KindNumber:
		f, _ := p.Value.Float()
		wp.Value = encoding.WireValue{Kind: encoding.WireNumber, Num: f}
	case KindText:
		s, _ := p.Value.Text()
		wp.Value = encoding.WireValue{Kind: encoding.WireText, Str: s}
	case KindBoolean:
		b, _ := p.Value.Bool()
		wp.Value = encoding.WireValue{Kind: encoding.WireBoolean, Flag: b}
	default:
		wp.Value = encoding.WireValue{Kind: encoding.WireMissing}
	}
	return wp
}

func storedPoint(wp encoding.WirePoint) Point {
	p := Point{Timestamp: wp.Timestamp, Elapsed: wp.Elapsed}
	switch wp.Value.Kind {
	case encoding.WireNumber:
		p.Value = Number(wp.Value.Num)
	case encoding.WireText:
		p.Value = Text(wp.Value.Str)
	case encoding.WireBoolean:
		p.Value = Boolean(wp.Value.Flag)
	default:
		p.Value = Missing()
	}
	return p
}
