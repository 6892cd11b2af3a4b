package log

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ SpanEventRecorder = &OtelSpanEventRecorder{}

const (
	missingAttributeValue = "MISSING"
	invalidAttributeKey   = "invalidKeysAndValues"
)

// OtelSpanEventRecorder records log entries as OpenTelemetry span events.
type OtelSpanEventRecorder struct {
	span trace.Span
}

func NewOtelSpanEventRecorder(span trace.Span) *OtelSpanEventRecorder {
	return &OtelSpanEventRecorder{span: span}
}

func (ser *OtelSpanEventRecorder) TraceID() string { return ser.span.SpanContext().TraceID().String() }
func (ser *OtelSpanEventRecorder) SpanID() string  { return ser.span.SpanContext().SpanID().String() }

func (ser *OtelSpanEventRecorder) RecordEvent(name string, keysAndValues ...any) {
	ser.span.AddEvent(name, trace.WithAttributes(kvToAttributes(keysAndValues)...))
}

// RecordError adds the event and sets the span status to Error.
func (ser *OtelSpanEventRecorder) RecordError(name string, keysAndValues ...any) {
	ser.span.AddEvent(name, trace.WithAttributes(kvToAttributes(keysAndValues)...))
	ser.span.SetStatus(codes.Error, name)
}

func kvToAttributes(keysAndValues []any) []attribute.KeyValue {
	if len(keysAndValues)%2 != 0 {
		keysAndValues = append(keysAndValues, missingAttributeValue)
	}

	attrs := make([]attribute.KeyValue, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			// Everything after a non-string key is kept verbatim under one attribute.
			attrs = append(attrs, attribute.String(invalidAttributeKey, fmt.Sprint(keysAndValues[i:])))
			break
		}

		switch v := keysAndValues[i+1].(type) {
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case uint8:
			attrs = append(attrs, attribute.Int64(key, int64(v)))
		case uint32:
			attrs = append(attrs, attribute.Int64(key, int64(v)))
		case uint64:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case error:
			attrs = append(attrs, attribute.String(key, v.Error()))
		case fmt.Stringer:
			attrs = append(attrs, attribute.String(key, v.String()))
		default:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return attrs
}
