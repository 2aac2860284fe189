package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/plantnode/internal/sensor"
)

// Measurement is the InfluxDB measurement every reading is written to.
const Measurement = "plant_readings"

// SnapshotPoints converts a snapshot to one point per reading, tagged with
// the device, sensor key and cycle. Classified readings carry their label
// in a "text" field next to the numeric value.
//
// Example line: plant_readings,cycle_id=c1,device_id=esp32,sensor=moisture text="Dry",value=2i
func SnapshotPoints(deviceID, cycleID string, snap sensor.Snapshot) []*write.Point {
	at := snap.TakenAt
	if at.IsZero() {
		at = time.Now()
	}

	points := make([]*write.Point, 0, snap.Len())
	for _, r := range snap.Readings {
		fields := map[string]interface{}{
			"value": int64(r.Value),
		}
		switch r.Kind {
		case sensor.SoilMoisture, sensor.WaterLevel, sensor.PumpTrigger:
			fields["text"] = r.Text()
		}

		points = append(points, write.NewPoint(
			Measurement,
			map[string]string{
				"device_id": deviceID,
				"sensor":    r.Kind.Key(),
				"cycle_id":  cycleID,
			},
			fields,
			at,
		))
	}
	return points
}

// WriteSnapshot queues the snapshot's points. Non-blocking; failures are
// reported to the logger asynchronously.
func (c *Client) WriteSnapshot(cycleID string, snap sensor.Snapshot) {
	if !c.IsConnected() {
		return
	}
	for _, p := range SnapshotPoints(c.deviceID, cycleID, snap) {
		c.writeAPI.WritePoint(p)
	}
}

// CycleSink writes snapshots for one cycle. It implements broker.Sink.
type CycleSink struct {
	client  *Client
	cycleID string
}

// ForCycle returns a sink tagging points with cycleID.
func (c *Client) ForCycle(cycleID string) *CycleSink {
	return &CycleSink{client: c, cycleID: cycleID}
}

// HandleSnapshot implements broker.Sink.
func (s *CycleSink) HandleSnapshot(_ context.Context, snap sensor.Snapshot) {
	s.client.WriteSnapshot(s.cycleID, snap)
}
