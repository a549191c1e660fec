package orch

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/dkeye/LivePodcast/internal/telemetry"
)

var (
	framesRelayed   metric.Int64Counter
	framesDelivered metric.Int64Counter
	framesDropped   metric.Int64Counter
	framesRecorded  metric.Int64Counter
	membersKicked   metric.Int64Counter
)

func init() {
	f := telemetry.NewFactory("livepodcast.relay", "relay")

	f.Int64Counter(&framesRelayed, "frames.received",
		metric.WithDescription("Audio frames received from room members"))
	f.Int64Counter(&framesDelivered, "frames.delivered",
		metric.WithDescription("Audio frames queued to listeners"))
	f.Int64Counter(&framesDropped, "frames.dropped",
		metric.WithDescription("Audio frames dropped because a listener queue was full"))
	f.Int64Counter(&framesRecorded, "frames.recorded",
		metric.WithDescription("Audio frames accepted by a recording"))
	f.Int64Counter(&membersKicked, "members.kicked",
		metric.WithDescription("Slow listeners disconnected by policy"))
}
