//nolint:revive // types is a standard Go package name pattern
package types

// StatusSnapshot is the read-only view of a workflow returned to callers
type StatusSnapshot struct {
	ResumeIsAvailable          bool     `json:"resumeIsAvailable"`
	ApplicationFormIsAvailable bool     `json:"applicationFormIsAvailable"`
	Status                     string   `json:"status"`
	Answers                    []Answer `json:"answers"`
}

// SnapshotOf derives the caller-facing snapshot from a workflow state
func SnapshotOf(s WorkflowState) StatusSnapshot {
	answers := make([]Answer, len(s.Answers))
	copy(answers, s.Answers)
	return StatusSnapshot{
		ResumeIsAvailable:          s.HasResume(),
		ApplicationFormIsAvailable: s.HasApplicationForm(),
		Status:                     s.Stage.String(),
		Answers:                    answers,
	}
}
