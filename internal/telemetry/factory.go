package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// MetricFactory creates package-level instruments on the global meter, all
// named "<prefix>.<name>". Instruments created before Init delegate to the
// provider installed later, so metrics.go files can register them in init.
type MetricFactory struct {
	meter  metric.Meter
	prefix string
}

func NewFactory(meterName, prefix string) *MetricFactory {
	return &MetricFactory{meter: otel.Meter(meterName), prefix: prefix}
}

func (f *MetricFactory) name(suffix string) string {
	if f.prefix == "" {
		return suffix
	}
	return f.prefix + "." + suffix
}

// register stores the instrument built by create in target and panics on a
// bad definition; instruments are declared at init time only.
func register[T any](f *MetricFactory, target *T, kind, name string, create func(string) (T, error)) {
	fullName := f.name(name)
	inst, err := create(fullName)
	if err != nil {
		panic(fmt.Sprintf("telemetry: %s %q: %v", kind, fullName, err))
	}
	*target = inst
}

func (f *MetricFactory) Int64Counter(target *metric.Int64Counter, name string, opts ...metric.Int64CounterOption) {
	register(f, target, "counter", name, func(n string) (metric.Int64Counter, error) {
		return f.meter.Int64Counter(n, opts...)
	})
}

func (f *MetricFactory) Int64UpDownCounter(target *metric.Int64UpDownCounter, name string, opts ...metric.Int64UpDownCounterOption) {
	register(f, target, "up-down counter", name, func(n string) (metric.Int64UpDownCounter, error) {
		return f.meter.Int64UpDownCounter(n, opts...)
	})
}

func (f *MetricFactory) Int64Histogram(target *metric.Int64Histogram, name string, opts ...metric.Int64HistogramOption) {
	register(f, target, "histogram", name, func(n string) (metric.Int64Histogram, error) {
		return f.meter.Int64Histogram(n, opts...)
	})
}
