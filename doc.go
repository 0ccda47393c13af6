// Package gridline reconstructs regularly-spaced tables from high-rate,
// multi-channel telemetry arriving asynchronously at irregular rates.
//
// Gridline stores raw observations losslessly per channel and projects them
// onto a regular timebase defined by a reference channel, handling clock
// skew, bursty arrival, missing data and invalid timestamps along the way.
//
// # Basic Usage
//
// Ingest observations into a store:
//
//	store := gridline.NewTelemetryStore()
//	store.AddPoint("adc/channel_sum", gridline.Number(42.5), time.Now().UnixNano())
//
// Define the output table and build it:
//
//	columns := []gridline.ColumnSpec{
//	    {Name: "Timestamp (s)"},
//	    {Name: "Dose", Channel: "adc/channel_sum", Policy: gridline.Interpolated},
//	    {Name: "Gate", Channel: "adc/gate", Policy: gridline.Synchronized},
//	}
//	table, err := gridline.NewVirtualTable(store, "adc/channel_sum",
//	    gridline.DefaultTableConfig(100), columns, gridline.SlogSink(nil))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = table.Build()
//
// Extend incrementally as data keeps arriving, then hand rows to a consumer:
//
//	_ = table.Rebuild()
//	for _, row := range table.Rows() {
//	    // persist row, then release it:
//	}
//	table.PruneRows(1000)
//
// # Alignment Policies
//
// Each column aligns its channel to the row grid under one of three policies:
//
//   - Synchronized: exact absolute-timestamp match with the reference anchor,
//     capturing values that arrived in the same update burst
//   - Interpolated: linear interpolation between bracketing points
//   - Asynchronous: snap to the nearest point, no interpolation
//
// Tables can also be declared in YAML schema files; see ParseTableSchema.
package gridline
