package domain

import "time"

// RejectReason explains why a submission was not accepted
type RejectReason string

const (
	ReasonNone      RejectReason = ""
	ReasonLocked    RejectReason = "locked"
	ReasonDuplicate RejectReason = "duplicate"
)

// Message returns the short uppercase text shown to the visitor
func (r RejectReason) Message() string {
	switch r {
	case ReasonLocked:
		return "SUBMISSIONS LOCKED"
	case ReasonDuplicate:
		return "NUMBER ALREADY REGISTERED"
	default:
		return ""
	}
}

// Decision is the outcome of a submission. Rejections are values, not errors.
type Decision struct {
	Accepted bool
	Reason   RejectReason
	Contact  *Contact
	// Patch always carries TotalCollected on acceptance and the countdown start
	// when this submission reached the target.
	Patch            SettingsPatch
	CountdownStarted bool
}

// CountdownStatus describes the countdown as seen at a given instant
type CountdownStatus struct {
	Active      bool          `json:"active"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	Remaining   time.Duration `json:"-"`
	RemainingMs int64         `json:"remainingMs"`
	Display     string        `json:"display"`
}
