package domain

import "errors"

// Error taxonomy for resolution and override operations. Callers classify
// with errors.Is; repository and API layers wrap these with context.
var (
	// ErrNotFound: an unknown finding, override version, or record.
	ErrNotFound = errors.New("not found")

	// ErrConflict: an override write superseded by a newer version.
	ErrConflict = errors.New("version conflict")

	// ErrConfig: a malformed rule, condition, or profile. The offending
	// item is skipped and resolution continues.
	ErrConfig = errors.New("config error")

	// ErrValidation: a merged plan failed structural checks. Plans are
	// still returned with validation flags set false.
	ErrValidation = errors.New("validation failed")
)

// Diagnostic kinds.
const (
	DiagConfig     = "config"
	DiagValidation = "validation"
)

// Diagnostic is a per-item, non-fatal problem captured during resolution so
// one bad rule cannot prevent generation of an entire report.
type Diagnostic struct {
	Kind      string `json:"kind"`
	RuleIndex int    `json:"ruleIndex,omitempty"`
	FindingID string `json:"findingId,omitempty"`
	Detail    string `json:"detail"`
}
