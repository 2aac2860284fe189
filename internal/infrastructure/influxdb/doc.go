// Package influxdb ships reading telemetry to an InfluxDB v2 bucket.
//
// It wraps the official influxdb-client-go v2 non-blocking write API. A
// client lives for one operate phase: Connect after the network is up,
// register ForCycle as a snapshot sink, and Close during teardown so the
// batch is flushed before the node sleeps.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID, logger)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteSnapshot(cycleID, snap)
//
// Write failures are delivered asynchronously and logged; they never
// affect the cycle.
package influxdb
