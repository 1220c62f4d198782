package data

import "time"

const (
	MeasurementTorrents = "torrents"
	MeasurementTrackers = "trackers"
)

// Point is a flat metric record handed to a sink.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}
