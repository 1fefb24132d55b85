package tracing

// NewNoopTracer returns a tracer that records nothing. Used when tracing
// is disabled and in tests.
func NewNoopTracer() Tracer {
	return &NewRelicTracer{enabled: false}
}
