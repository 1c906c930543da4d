package models

import "time"

// ActionKind names a mutating operation performed on a review.
type ActionKind string

const (
	ActionEdit    ActionKind = "edit"
	ActionApprove ActionKind = "approve"
	ActionReject  ActionKind = "reject"
	ActionSubmit  ActionKind = "submit"
)

// ActionOutcome is the result of a mutating operation.
type ActionOutcome string

const (
	ActionOutcomeOK     ActionOutcome = "ok"
	ActionOutcomeFailed ActionOutcome = "failed"
)

// ReviewAction is a local log entry for one mutating call against the collaborator.
type ReviewAction struct {
	ID        string        `json:"id"`
	ReviewID  string        `json:"review_id"`
	Kind      ActionKind    `json:"kind"`
	Outcome   ActionOutcome `json:"outcome"`
	Detail    string        `json:"detail,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
