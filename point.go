package gridline

// ChannelID names a single telemetry source (e.g., "adc/channel_sum").
type ChannelID string

// Point is one observation on a channel: the reading, the absolute timestamp
// reported by the device, and the elapsed time derived against the session
// reference at ingest.
type Point struct {
	// Value is the reading.
	Value Value
	// Timestamp is the observation time in Unix nanoseconds as reported by
	// the source. Zero and negative timestamps are stored as-is.
	Timestamp int64
	// Elapsed is seconds since the session reference timestamp. Derived once
	// at ingest; never recomputed in place.
	Elapsed float64
}

// elapsedSince converts a nanosecond delta to elapsed seconds.
func elapsedSince(timestamp, reference int64) float64 {
	return float64(timestamp-reference) / 1e9
}
