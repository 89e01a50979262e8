package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// OtelAPI implements API on top of the global otel providers. Broken and warning
// reports become short spans, counts become gauges keyed by report id.
// Debug reports are dropped.
type OtelAPI struct {
	tracer trace.Tracer
	meter  metric.Meter

	mu     sync.Mutex
	gauges map[string]metric.Int64Gauge
}

func NewOtelAPI(name string) *OtelAPI {
	return &OtelAPI{
		tracer: otel.Tracer(name),
		meter:  otel.Meter(name),
		gauges: map[string]metric.Int64Gauge{},
	}
}

func paramAttributes(params []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(params))
	for i, p := range params {
		attrs[i] = attribute.String(fmt.Sprintf("params.%d", i), fmt.Sprint(p))
	}
	return attrs
}

func (o *OtelAPI) ReportBroken(id string, params ...any) {
	_, span := o.tracer.Start(context.Background(), id)
	defer span.End()
	span.SetAttributes(paramAttributes(params)...)
	span.SetStatus(codes.Error, "broken component")
}

func (o *OtelAPI) ReportWarning(id string, params ...any) {
	_, span := o.tracer.Start(context.Background(), id)
	defer span.End()
	span.AddEvent("warning", trace.WithAttributes(paramAttributes(params)...))
}

func (o *OtelAPI) ReportDebug(string, ...any) {}

func (o *OtelAPI) ReportCount(id string, count int64) {
	o.mu.Lock()
	gauge, ok := o.gauges[id]
	if !ok {
		var err error
		gauge, err = o.meter.Int64Gauge(id)
		if err != nil {
			o.mu.Unlock()
			return
		}
		o.gauges[id] = gauge
	}
	o.mu.Unlock()

	gauge.Record(context.Background(), count)
}
