package domain

// RejectReason explains why a candidate produced no Opportunity or
// VolumeSpike. Unmet eligibility conditions are policy rejections, not
// errors: the caller receives an absent result plus one of these codes.
type RejectReason string

const (
	// ReasonNone marks an accepted candidate.
	ReasonNone RejectReason = ""

	ReasonOutcomeTokenNotFound RejectReason = "outcome_token_not_found"
	ReasonAlreadyPriced        RejectReason = "already_priced"
	ReasonCertaintyTooLow      RejectReason = "certainty_too_low"
	ReasonVolumeOutOfRange     RejectReason = "volume_out_of_range"
	ReasonPositionBelowFloor   RejectReason = "position_below_floor"
	ReasonInvalidEntryPrice    RejectReason = "invalid_entry_price"
	ReasonROIBelowThreshold    RejectReason = "roi_below_threshold"
	ReasonInsufficientHistory  RejectReason = "insufficient_history"
	ReasonSignalBelowThreshold RejectReason = "signal_below_threshold"
	ReasonDeadlineTooFar       RejectReason = "deadline_too_far"
)

// Rejected reports whether the reason marks a rejection.
func (r RejectReason) Rejected() bool { return r != ReasonNone }
