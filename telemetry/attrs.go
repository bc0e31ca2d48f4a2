package telemetry

import "go.opentelemetry.io/otel/attribute"

func toOtelAttrs(kvs []attrKV) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kvs))
	for _, kv := range kvs {
		out = append(out, attribute.String(kv.key, kv.value))
	}
	return out
}
