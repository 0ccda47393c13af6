package gridline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TelemetryStore holds one ChannelLedger per channel plus the single global
// reference timestamp used to derive elapsed time consistently across
// channels. Ledgers are created lazily on first write and live until Clear.
//
// AddPoint is the only mutation entry point. It never fails: invalid
// timestamps are absorbed by the per-channel reference rule.
type TelemetryStore struct {
	mu           sync.RWMutex
	channels     map[ChannelID]*ChannelLedger
	globalFirst  int64
	hasGlobal    bool
	sessionID    string
	sessionStart time.Time
}

// StoreStats aggregates ledger statistics across the store.
type StoreStats struct {
	SessionID            string
	SessionStart         time.Time
	SessionDuration      time.Duration
	GlobalFirstTimestamp int64
	TotalChannels        int
	TotalPoints          int
	Channels             map[ChannelID]LedgerStats
}

// NewTelemetryStore creates an empty store for a fresh logging session.
func NewTelemetryStore() *TelemetryStore {
	return &TelemetryStore{
		channels:     make(map[ChannelID]*ChannelLedger),
		sessionID:    uuid.NewString(),
		sessionStart: time.Now(),
	}
}

// SessionID returns the identifier of the current logging session. A new id
// is generated on construction and on Clear.
func (s *TelemetryStore) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// SessionStart returns when the current session began.
func (s *TelemetryStore) SessionStart() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionStart
}

// AddPoint routes one observation to the channel's ledger, creating the
// ledger on first use. The first valid (> 0) timestamp seen anywhere in the
// store becomes the global reference for elapsed-time derivation.
func (s *TelemetryStore) AddPoint(channel ChannelID, v Value, timestamp int64) {
	s.mu.Lock()
	ledger := s.channels[channel]
	if ledger == nil {
		ledger = newChannelLedger(channel)
		s.channels[channel] = ledger
	}
	if !s.hasGlobal && timestamp > 0 {
		s.globalFirst = timestamp
		s.hasGlobal = true
	}
	globalRef, hasGlobal := s.globalFirst, s.hasGlobal
	s.mu.Unlock()

	ledger.append(v, timestamp, globalRef, hasGlobal)
}

// Ledger returns the ledger for a channel, or nil if the channel has never
// received a point.
func (s *TelemetryStore) Ledger(channel ChannelID) *ChannelLedger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[channel]
}

// ChannelIDs returns the ids of all channels that have received points.
func (s *TelemetryStore) ChannelIDs() []ChannelID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ChannelID, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	return ids
}

// ChannelCount returns the number of points stored for one channel.
func (s *TelemetryStore) ChannelCount(channel ChannelID) int {
	ledger := s.Ledger(channel)
	if ledger == nil {
		return 0
	}
	return ledger.Count()
}

// TotalPoints returns the number of points stored across all channels.
func (s *TelemetryStore) TotalPoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, ledger := range s.channels {
		total += ledger.Count()
	}
	return total
}

// GlobalFirstTimestamp returns the store-wide reference timestamp, if one has
// been observed.
func (s *TelemetryStore) GlobalFirstTimestamp() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.globalFirst, s.hasGlobal
}

// SnapshotAt fans a nearest-point query out to every channel. Channels with
// no point within tolerance map to nil.
func (s *TelemetryStore) SnapshotAt(targetElapsed, tolerance float64) map[ChannelID]*Point {
	s.mu.RLock()
	ledgers := make(map[ChannelID]*ChannelLedger, len(s.channels))
	for id, ledger := range s.channels {
		ledgers[id] = ledger
	}
	s.mu.RUnlock()

	out := make(map[ChannelID]*Point, len(ledgers))
	for id, ledger := range ledgers {
		if p, ok := ledger.NearestPoint(targetElapsed, tolerance); ok {
			point := p
			out[id] = &point
		} else {
			out[id] = nil
		}
	}
	return out
}

// Prune applies time-based and cap-based pruning to every channel, returning
// the number of points removed per channel. Channels with nothing removed are
// omitted from the result.
func (s *TelemetryStore) Prune(minElapsed float64, maxPointsPerChannel int) map[ChannelID]int {
	s.mu.RLock()
	ledgers := make([]*ChannelLedger, 0, len(s.channels))
	for _, ledger := range s.channels {
		ledgers = append(ledgers, ledger)
	}
	s.mu.RUnlock()

	removed := make(map[ChannelID]int)
	for _, ledger := range ledgers {
		n := ledger.PruneOlderThan(minElapsed)
		if maxPointsPerChannel > 0 {
			n += ledger.PruneToCap(maxPointsPerChannel)
		}
		if n > 0 {
			removed[ledger.Channel()] = n
		}
	}
	return removed
}

// Statistics returns aggregate and per-channel statistics.
func (s *TelemetryStore) Statistics() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StoreStats{
		SessionID:            s.sessionID,
		SessionStart:         s.sessionStart,
		SessionDuration:      time.Since(s.sessionStart),
		GlobalFirstTimestamp: s.globalFirst,
		TotalChannels:        len(s.channels),
		Channels:             make(map[ChannelID]LedgerStats, len(s.channels)),
	}
	for id, ledger := range s.channels {
		ls := ledger.Statistics()
		stats.Channels[id] = ls
		stats.TotalPoints += ls.Count
	}
	return stats
}

// Clear drops every ledger and resets the global reference, starting a new
// session.
func (s *TelemetryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[ChannelID]*ChannelLedger)
	s.globalFirst = 0
	s.hasGlobal = false
	s.sessionID = uuid.NewString()
	s.sessionStart = time.Now()
}
