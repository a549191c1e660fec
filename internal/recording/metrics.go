package recording

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/dkeye/LivePodcast/internal/telemetry"
)

var (
	activeStreams   metric.Int64UpDownCounter
	streamsStarted  metric.Int64Counter
	streamsFailed   metric.Int64Counter
	framesDropped   metric.Int64Counter
	encodedBytes    metric.Int64Counter
	finalizeLatency metric.Int64Histogram
)

func init() {
	f := telemetry.NewFactory("livepodcast.recording", "recording")

	f.Int64UpDownCounter(&activeStreams, "streams.active",
		metric.WithDescription("Number of recordings currently open"))
	f.Int64Counter(&streamsStarted, "streams.started",
		metric.WithDescription("Total number of recordings started"))
	f.Int64Counter(&streamsFailed, "streams.failed",
		metric.WithDescription("Recordings that could not be opened or finalized cleanly"))
	f.Int64Counter(&framesDropped, "frames.dropped",
		metric.WithDescription("Frames skipped by the recorder because of backpressure"))
	f.Int64Counter(&encodedBytes, "encoded.bytes",
		metric.WithDescription("Compressed bytes appended to recordings"),
		metric.WithUnit("By"))
	f.Int64Histogram(&finalizeLatency, "finalize.duration",
		metric.WithDescription("Time from end-of-input to closed file"),
		metric.WithUnit("ms"))
}
