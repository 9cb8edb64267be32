// Package otel publishes token engine metrics through OpenTelemetry observable
// instruments. A single callback reads the engine snapshot on each collection.
// Callers own the MeterProvider.
package otel
