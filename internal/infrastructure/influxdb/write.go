package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceMetric writes one device state sample.
//
// Called by telemetry ingest for every accepted state update. The
// write is non-blocking; points are batched and sent asynchronously.
// Power is recorded as 0/1 and brightness only when the device
// reported one, so the series reflects exactly what was stored.
func (c *Client) WriteDeviceMetric(deviceID, ownerID string, power bool, brightness *int) {
	if !c.IsConnected() {
		return
	}

	powerVal := 0
	if power {
		powerVal = 1
	}

	fields := map[string]interface{}{
		"power": powerVal,
	}
	if brightness != nil {
		fields["brightness"] = *brightness
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
			"owner_id":  ownerID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and
// fields, for measurements that do not fit the helpers.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
