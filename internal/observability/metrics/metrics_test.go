package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsUnknownKeys(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("entry_type", "earned"),
		attribute.String("customer_id", "123456789"),
		attribute.String("outcome", "cancelled"),
	)

	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "customer_id" {
			t.Fatalf("high-cardinality key should have been filtered")
		}
	}
}
