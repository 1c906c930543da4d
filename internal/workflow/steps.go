package workflow

import "github.com/joescharf/pmo/internal/models"

// StepState is the derived state of one step in the progress view.
type StepState string

const (
	StepCompleted StepState = "completed"
	StepActive    StepState = "active"
	StepPending   StepState = "pending"
)

// Step is one rendered position in the progress view.
type Step struct {
	Stage       Stage     `json:"-"`
	Status      string    `json:"status"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       StepState `json:"state"`
}

// View is the full progress view for a review.
type View struct {
	Status   models.ReviewStatus `json:"current"`
	Label    string              `json:"label"`
	Known    bool                `json:"known"`
	Rejected bool                `json:"rejected"`
	Steps    []Step              `json:"steps"`
}

type stepText struct {
	title       string
	description string
}

var stepTexts = map[Stage]stepText{
	StagePending:  {"Pending Review", "Generated content awaiting review"},
	StageApproved: {"Review Complete", "Content reviewed and approved"},
	StageCreated:  {"Jira Tickets Created", "Tickets successfully created in Jira"},
	StageRejected: {"Rejected", "Content rejected and workflow stopped"},
}

func newStep(stage Stage, state StepState) Step {
	t := stepTexts[stage]
	return Step{
		Stage:       stage,
		Status:      string(stage.Status()),
		Title:       t.title,
		Description: t.description,
		State:       state,
	}
}

// Steps derives the progress view from status. It is recomputed on every
// call and holds no state. A rejected review renders Pending (completed)
// followed by the Rejected branch (active) in place of the happy-path tail.
// An unknown status renders every happy-path step as pending.
func Steps(status models.ReviewStatus) View {
	current := StageOf(status)
	v := View{
		Status: status,
		Label:  Label(status),
		Known:  current != StageUnknown,
	}

	if current == StageRejected {
		v.Rejected = true
		v.Steps = []Step{
			newStep(StagePending, StepCompleted),
			newStep(StageRejected, StepActive),
		}
		return v
	}

	v.Steps = make([]Step, 0, len(happyPath))
	for _, stage := range happyPath {
		v.Steps = append(v.Steps, newStep(stage, stepState(stage, current)))
	}
	return v
}

func stepState(step, current Stage) StepState {
	switch {
	case current == StageUnknown:
		return StepPending
	case step < current:
		return StepCompleted
	case step == current:
		return StepActive
	default:
		return StepPending
	}
}

// Active returns the single active step, if any.
func (v View) Active() (Step, bool) {
	for _, s := range v.Steps {
		if s.State == StepActive {
			return s, true
		}
	}
	return Step{}, false
}
