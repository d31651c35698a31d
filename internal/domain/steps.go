package domain

import "fmt"

// Step is the next action a submission is waiting on.
type Step string

const (
	StepNone           Step = "none"
	StepLeaderApproval Step = "leader_approval"
	StepCHMApproval    Step = "chm_approval"
	StepExitInterview  Step = "exit_interview"
	StepITClearance    Step = "it_clearance"
	StepMedicalCheck   Step = "medical_check"
	StepVendorFinalize Step = "vendor_finalize"
)

func ParseStep(v string) (Step, error) {
	s := Step(v)
	switch s {
	case StepNone, StepLeaderApproval, StepCHMApproval, StepExitInterview, StepITClearance, StepMedicalCheck, StepVendorFinalize:
		return s, nil
	}
	return "", fmt.Errorf("unknown step %q", v)
}

func (s *Step) UnmarshalText(b []byte) error {
	parsed, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Actor is whoever is expected to act on a step.
type Actor string

const (
	ActorNone     Actor = ""
	ActorLeader   Actor = "leader"
	ActorCHM      Actor = "chm"
	ActorIT       Actor = "it"
	ActorHR       Actor = "hr"
	ActorEmployee Actor = "employee"
)

var stepByStatus = map[ResignationStatus]Step{
	StatusSubmitted:      StepLeaderApproval,
	StatusLeaderApproved: StepCHMApproval,
	StatusCHMApproved:    StepExitInterview,
	StatusExitDone:       StepITClearance,
	StatusAssetsRecorded: StepMedicalCheck,
	StatusMedicalChecked: StepVendorFinalize,
}

// RequiredStep derives the step a submission currently waits on from its status.
func RequiredStep(status ResignationStatus) Step {
	if step, ok := stepByStatus[status]; ok {
		return step
	}
	return StepNone
}

func (s Step) Actor() Actor {
	switch s {
	case StepLeaderApproval:
		return ActorLeader
	case StepCHMApproval:
		return ActorCHM
	case StepITClearance:
		return ActorIT
	case StepExitInterview, StepMedicalCheck, StepVendorFinalize:
		return ActorHR
	}
	return ActorNone
}

// LinkAuthorized reports whether the step is performed through an emailed
// capability link rather than the staff dashboard.
func (s Step) LinkAuthorized() bool {
	switch s.Actor() {
	case ActorLeader, ActorCHM, ActorIT:
		return true
	}
	return false
}

// WaitingStatuses are the statuses in which an external actor's reply is outstanding.
var WaitingStatuses = []ResignationStatus{
	StatusSubmitted,
	StatusLeaderApproved,
	StatusExitDone,
}

// WaitingActor returns the actor a submission is pending on, or ActorNone when
// the submission is not in a waiting state.
func WaitingActor(sub Submission) Actor {
	switch sub.ResignationStatus {
	case StatusSubmitted:
		if !sub.TeamLeaderReply.IsSet() {
			return ActorLeader
		}
	case StatusLeaderApproved:
		if !sub.ChineseHeadReply.IsSet() {
			return ActorCHM
		}
	case StatusExitDone:
		if !sub.ITSupportReply.IsSet() {
			return ActorIT
		}
	}
	return ActorNone
}
