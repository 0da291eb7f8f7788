package model

// Outcome tags an ExtractionResult.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailed   Outcome = "failed"
)

// FailReason distinguishes recoverable per-key failures.
type FailReason string

const (
	ReasonSelectorTimeout FailReason = "selector_timeout"
	ReasonNavigation      FailReason = "navigation"
	ReasonUnexpectedPage  FailReason = "unexpected_page"
)

// ExtractionResult is the outcome of one driver call. Only Found results carry
// rows; only Failed results carry a reason.
type ExtractionResult struct {
	Outcome Outcome
	Rows    []RawFields
	Reason  FailReason
	Detail  string
}

// Found builds a successful result.
func Found(rows ...RawFields) ExtractionResult {
	return ExtractionResult{Outcome: OutcomeFound, Rows: rows}
}

// NotFound builds a result for a page that carried no usable rows.
func NotFound() ExtractionResult {
	return ExtractionResult{Outcome: OutcomeNotFound}
}

// Failed builds a recoverable failure result.
func Failed(reason FailReason, detail string) ExtractionResult {
	return ExtractionResult{Outcome: OutcomeFailed, Reason: reason, Detail: detail}
}
