package app

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/dkeye/LivePodcast/internal/telemetry"
)

var liveBroadcasts metric.Int64UpDownCounter

func init() {
	f := telemetry.NewFactory("livepodcast.app", "broadcasts")

	f.Int64UpDownCounter(&liveBroadcasts, "live",
		metric.WithDescription("Connections currently broadcasting"))
}
