package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementMedia  = "roku_media"
	measurementDevice = "device_metrics"
)

// Playback states as numeric codes so Grafana can graph them.
var playbackStateCodes = map[string]int{
	"standby": 1,
	"idle":    2,
	"home":    3,
	"playing": 4,
}

// WriteMediaState records one media player snapshot as published on
// graylogic/state/roku/<id>.
//
// Tags are device_id plus the current app so playback can be grouped per
// channel. Missing keys are skipped; an empty state writes nothing.
//
// Example point:
//
//	roku_media,app_id=12,device_id=1GU48T017973,state=playing available=1i,is_on=1i,state_code=4i
func (c *Client) WriteMediaState(deviceID string, state map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := MediaStatePoint(deviceID, state, ts)
	if point == nil {
		return
	}
	c.writeAPI.WritePoint(point)
}

// MediaStatePoint builds the roku_media point for a state map, or nil when
// the map carries no recognised fields.
func MediaStatePoint(deviceID string, state map[string]any, ts time.Time) *write.Point {
	tags := map[string]string{"device_id": deviceID}
	fields := make(map[string]any)

	if v, ok := state["available"].(bool); ok {
		fields["available"] = boolToInt(v)
	}
	if v, ok := state["is_on"].(bool); ok {
		fields["is_on"] = boolToInt(v)
	}
	if v, ok := state["state"].(string); ok && v != "" {
		tags["state"] = v
		if code, known := playbackStateCodes[v]; known {
			fields["state_code"] = code
		}
	}
	if v, ok := state["app_id"].(string); ok && v != "" {
		tags["app_id"] = v
	}
	if v, ok := state["app_name"].(string); ok && v != "" {
		fields["app_name"] = v
	}

	if len(fields) == 0 {
		return nil
	}

	return write.NewPoint(measurementMedia, tags, fields, ts)
}

// WriteDeviceMetric writes a single numeric measurement. The Roku bridge
// writes its poll and command counters with the bridge id as device_id.
//
//	client.WriteDeviceMetric("roku-bridge-01", "poll_errors", 3)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementDevice,
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]any{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
