// Package workflow derives the position of a review in its approval
// lifecycle. It renders state; the collaborator enforces transitions.
package workflow

import (
	"strings"

	"github.com/joescharf/pmo/internal/models"
)

// Stage is a lifecycle position with a total order along the happy path
// Pending < Approved < Created. Rejected is a branch off Pending.
type Stage int

const (
	StageUnknown Stage = iota - 1
	StagePending
	StageApproved
	StageCreated
	StageRejected
)

// happyPath is the ordered sequence rendered when a review is not rejected.
var happyPath = []Stage{StagePending, StageApproved, StageCreated}

// StageOf maps a status to its stage. Unrecognized values yield StageUnknown.
func StageOf(status models.ReviewStatus) Stage {
	switch status {
	case models.ReviewStatusPending:
		return StagePending
	case models.ReviewStatusApproved:
		return StageApproved
	case models.ReviewStatusCreated:
		return StageCreated
	case models.ReviewStatusRejected:
		return StageRejected
	default:
		return StageUnknown
	}
}

// Status returns the wire status for a stage.
func (s Stage) Status() models.ReviewStatus {
	switch s {
	case StagePending:
		return models.ReviewStatusPending
	case StageApproved:
		return models.ReviewStatusApproved
	case StageCreated:
		return models.ReviewStatusCreated
	case StageRejected:
		return models.ReviewStatusRejected
	default:
		return ""
	}
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCreated || s == StageRejected
}

// IsTerminal reports whether status is rejected or created.
func IsTerminal(status models.ReviewStatus) bool {
	return StageOf(status).Terminal()
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to models.ReviewStatus) bool {
	f, t := StageOf(from), StageOf(to)
	switch f {
	case StagePending:
		return t == StageApproved || t == StageRejected
	case StageApproved:
		return t == StageCreated
	default:
		return false
	}
}

// Action is something a reviewer may do to a review.
type Action string

const (
	ActionEdit    Action = "edit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Available lists the actions a caller should offer for status.
// Only pending reviews can be edited, approved, or rejected.
func Available(status models.ReviewStatus) []Action {
	if StageOf(status) != StagePending {
		return nil
	}
	return []Action{ActionEdit, ActionApprove, ActionReject}
}

// Allows reports whether action is available for status.
func Allows(status models.ReviewStatus, action Action) bool {
	for _, a := range Available(status) {
		if a == action {
			return true
		}
	}
	return false
}

// Label returns a capitalized status for display, or "Unknown".
func Label(status models.ReviewStatus) string {
	if StageOf(status) == StageUnknown {
		return "Unknown"
	}
	s := string(status)
	return strings.ToUpper(s[:1]) + s[1:]
}
