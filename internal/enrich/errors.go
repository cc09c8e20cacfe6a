package enrich

import "fmt"

// Failure kinds routed into the failed queue's error_kind field. Only
// timeout and transport failures are retryable.
const (
	KindTimeout         = "timeout"
	KindTransport       = "transport"
	KindSchemaViolation = "schema_violation"
	KindAmbiguousEntity = "ambiguous_entity"
	KindEnrichment      = "enrichment"
)

// WorkError is a structured per-work failure. It carries enough detail for
// the failed queue to be useful at triage time: which field was bad, or
// which candidate entities were in conflict.
type WorkError struct {
	Kind       string
	Msg        string
	Field      string
	Value      string
	Candidates []string
}

func (e *WorkError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field %q, value %q)", e.Kind, e.Msg, e.Field, e.Value)
	case len(e.Candidates) > 0:
		return fmt.Sprintf("%s: %s (candidates %v)", e.Kind, e.Msg, e.Candidates)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

// Retryable reports whether the worker should try the work once more before
// marking it failed.
func (e *WorkError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransport
}

func schemaViolation(field, value, msg string) *WorkError {
	return &WorkError{Kind: KindSchemaViolation, Msg: msg, Field: field, Value: value}
}
