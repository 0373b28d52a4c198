package model

import (
	"fmt"
	"strings"
)

// SchemaError reports a dataset row that cannot be mapped to a FeatureVector
// because required columns are missing. The row is excluded from output and
// tallied; it never aborts a batch.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required feature columns: %s", strings.Join(e.Missing, ", "))
}

// ExtractionError reports a record that is malformed beyond the defined
// defaulting rules (bad JSON, unparsable numeric). Per-record, non-fatal.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return "extraction failed: " + e.Reason
}

// InferenceError reports a failure inside a model's prediction call. It is
// raised by the model store, propagated unmodified through the classifier,
// and handled by the caller: excluded and tallied in batch mode, HTTP 500
// in the service. It is never silently defaulted to a label.
type InferenceError struct {
	Stage string // "binary" or "secondary"
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s model inference: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
