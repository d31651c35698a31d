package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrMissingNotes      = errors.New("notes are required")
	ErrGuardFailed       = errors.New("transition guard failed")
)

type Transition string

const (
	TransitionLeaderApprove     Transition = "leader_approve"
	TransitionLeaderReject      Transition = "leader_reject"
	TransitionCHMApprove        Transition = "chm_approve"
	TransitionCHMReject         Transition = "chm_reject"
	TransitionScheduleInterview Transition = "schedule_interview"
	TransitionInterviewNoShow   Transition = "interview_no_show"
	TransitionInterviewDone     Transition = "interview_done"
	TransitionSkipInterview     Transition = "skip_interview"
	TransitionITClear           Transition = "it_clear"
	TransitionMedicalMark       Transition = "medical_mark"
	TransitionFinalize          Transition = "finalize"
)

// AllTransitions lists every transition the machine knows about.
var AllTransitions = []Transition{
	TransitionLeaderApprove,
	TransitionLeaderReject,
	TransitionCHMApprove,
	TransitionCHMReject,
	TransitionScheduleInterview,
	TransitionInterviewNoShow,
	TransitionInterviewDone,
	TransitionSkipInterview,
	TransitionITClear,
	TransitionMedicalMark,
	TransitionFinalize,
}

func ParseTransition(v string) (Transition, error) {
	t := Transition(v)
	if _, ok := transitionTable[t]; !ok {
		return "", fmt.Errorf("%w: unknown transition %q", ErrInvalidTransition, v)
	}
	return t, nil
}

// Step returns the step a transition completes or works on.
func (t Transition) Step() Step {
	if r, ok := transitionTable[t]; ok {
		return r.step
	}
	return StepNone
}

type ITOutcome string

const (
	ITOutcomeOK    ITOutcome = "ok"
	ITOutcomeIssue ITOutcome = "issue"
)

// Payload carries the actor-supplied data of a transition.
type Payload struct {
	Notes     string             `json:"notes,omitempty"`
	ITOutcome ITOutcome          `json:"it_outcome,omitempty"`
	Schedule  *InterviewSchedule `json:"schedule,omitempty"`
	Result    *InterviewResult   `json:"result,omitempty"`
	Assets    *AssetChecklist    `json:"assets,omitempty"`
}

type TransitionError struct {
	From       ResignationStatus
	Transition Transition
	Err        error
	Detail     string
}

func (e *TransitionError) Error() string {
	name := string(e.Transition)
	if name == "" {
		name = "action"
	}
	msg := fmt.Sprintf("%s from %s: %v", name, e.From, e.Err)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

type transitionRule struct {
	from ResignationStatus
	to   ResignationStatus
	step Step
	// subState marks exit-interview bookkeeping that is gated on chm_approved.
	subState      bool
	requiresNotes func(Payload) bool
	effect        func(*Submission, Payload) error
}

func always(Payload) bool { return true }

var transitionTable = map[Transition]transitionRule{
	TransitionLeaderApprove: {
		from: StatusSubmitted, to: StatusLeaderApproved, step: StepLeaderApproval,
		effect: func(s *Submission, p Payload) error {
			s.TeamLeaderReply = ReplyApproved
			s.TeamLeaderNotes = strings.TrimSpace(p.Notes)
			return nil
		},
	},
	TransitionLeaderReject: {
		from: StatusSubmitted, to: StatusLeaderRejected, step: StepLeaderApproval,
		requiresNotes: always,
		effect: func(s *Submission, p Payload) error {
			s.TeamLeaderReply = ReplyRejected
			s.TeamLeaderNotes = strings.TrimSpace(p.Notes)
			return nil
		},
	},
	TransitionCHMApprove: {
		from: StatusLeaderApproved, to: StatusCHMApproved, step: StepCHMApproval,
		effect: func(s *Submission, p Payload) error {
			s.ChineseHeadReply = ReplyApproved
			s.ChineseHeadNotes = strings.TrimSpace(p.Notes)
			return nil
		},
	},
	TransitionCHMReject: {
		from: StatusLeaderApproved, to: StatusCHMRejected, step: StepCHMApproval,
		requiresNotes: always,
		effect: func(s *Submission, p Payload) error {
			s.ChineseHeadReply = ReplyRejected
			s.ChineseHeadNotes = strings.TrimSpace(p.Notes)
			return nil
		},
	},
	TransitionScheduleInterview: {
		from: StatusCHMApproved, to: StatusCHMApproved, step: StepExitInterview, subState: true,
		effect: func(s *Submission, p Payload) error {
			switch s.ExitInterviewStatus {
			case InterviewNotScheduled, InterviewScheduled, InterviewNoShow:
			default:
				return fmt.Errorf("%w: exit interview already %s", ErrGuardFailed, s.ExitInterviewStatus)
			}
			if err := p.Schedule.validate(); err != nil {
				return err
			}
			s.ExitInterview.schedule(*p.Schedule)
			s.ExitInterview.CompletedAt = nil
			s.ExitInterviewStatus = InterviewScheduled
			if notes := strings.TrimSpace(p.Notes); notes != "" {
				s.ExitInterviewNotes = notes
			}
			return nil
		},
	},
	TransitionInterviewNoShow: {
		from: StatusCHMApproved, to: StatusCHMApproved, step: StepExitInterview, subState: true,
		effect: func(s *Submission, p Payload) error {
			if s.ExitInterviewStatus != InterviewScheduled {
				return fmt.Errorf("%w: exit interview is %s, not scheduled", ErrGuardFailed, s.ExitInterviewStatus)
			}
			s.ExitInterviewStatus = InterviewNoShow
			if notes := strings.TrimSpace(p.Notes); notes != "" {
				s.ExitInterviewNotes = notes
			}
			return nil
		},
	},
	TransitionInterviewDone: {
		from: StatusCHMApproved, to: StatusExitDone, step: StepExitInterview,
		effect: func(s *Submission, p Payload) error {
			if err := p.Result.validate(); err != nil {
				return err
			}
			s.ExitInterview.complete(p.Result, s.UpdatedAt)
			s.ExitInterviewStatus = InterviewDone
			if notes := strings.TrimSpace(p.Notes); notes != "" {
				s.ExitInterviewNotes = notes
			}
			return nil
		},
	},
	TransitionSkipInterview: {
		from: StatusCHMApproved, to: StatusExitDone, step: StepExitInterview,
		effect: func(s *Submission, p Payload) error {
			s.ExitInterviewStatus = InterviewSkipped
			if notes := strings.TrimSpace(p.Notes); notes != "" {
				s.ExitInterviewNotes = notes
			}
			return nil
		},
	},
	TransitionITClear: {
		from: StatusExitDone, to: StatusAssetsRecorded, step: StepITClearance,
		requiresNotes: func(p Payload) bool { return p.ITOutcome == ITOutcomeIssue },
		effect: func(s *Submission, p Payload) error {
			switch p.ITOutcome {
			case ITOutcomeOK:
				s.ITSupportReply = ReplyApproved
			case ITOutcomeIssue:
				s.ITSupportReply = ReplyRejected
			default:
				return fmt.Errorf("%w: it outcome must be ok or issue, got %q", ErrGuardFailed, p.ITOutcome)
			}
			s.ITSupportNotes = strings.TrimSpace(p.Notes)
			if p.Assets != nil {
				s.Assets = *p.Assets
				s.Assets.Others = strings.TrimSpace(s.Assets.Others)
			}
			return nil
		},
	},
	TransitionMedicalMark: {
		from: StatusAssetsRecorded, to: StatusMedicalChecked, step: StepMedicalCheck,
		effect: func(s *Submission, _ Payload) error {
			s.MedicalCardCollected = true
			return nil
		},
	},
	TransitionFinalize: {
		from: StatusMedicalChecked, to: StatusOffboarded, step: StepVendorFinalize,
		effect: func(s *Submission, _ Payload) error {
			s.VendorMailSent = true
			return nil
		},
	},
}

// Apply computes the submission that results from performing t on sub. It is
// pure: sub is never modified and nothing is persisted. On failure the
// returned error wraps ErrInvalidTransition, ErrMissingNotes, ErrGuardFailed
// or ErrInvalidDetails.
func Apply(sub Submission, t Transition, p Payload, now time.Time) (Submission, error) {
	fail := func(err error, detail string) (Submission, error) {
		return sub, &TransitionError{From: sub.ResignationStatus, Transition: t, Err: err, Detail: detail}
	}

	rule, ok := transitionTable[t]
	if !ok {
		return fail(ErrInvalidTransition, "unknown transition")
	}
	if !sub.ResignationStatus.Valid() {
		return fail(ErrInvalidTransition, "unknown current status")
	}
	if sub.ResignationStatus.IsTerminal() {
		return fail(ErrInvalidTransition, "submission is closed")
	}
	if sub.ResignationStatus != rule.from {
		if rule.subState && sub.ResignationStatus.Before(StatusCHMApproved) {
			return fail(ErrGuardFailed, "exit interview requires chm approval")
		}
		return fail(ErrInvalidTransition, "")
	}
	if rule.requiresNotes != nil && rule.requiresNotes(p) && strings.TrimSpace(p.Notes) == "" {
		return fail(ErrMissingNotes, "")
	}

	next := sub
	next.UpdatedAt = now
	if err := rule.effect(&next, p); err != nil {
		for _, kind := range []error{ErrGuardFailed, ErrInvalidDetails} {
			if errors.Is(err, kind) {
				return sub, &TransitionError{From: sub.ResignationStatus, Transition: t, Err: kind, Detail: err.Error()}
			}
		}
		return fail(err, "")
	}
	next.ResignationStatus = rule.to
	return next, nil
}

// DecisionTransition maps a link actor's decision for a step onto a transition.
func DecisionTransition(step Step, decision string) (Transition, Payload, error) {
	decision = strings.ToLower(strings.TrimSpace(decision))
	switch step {
	case StepLeaderApproval:
		switch decision {
		case "approve":
			return TransitionLeaderApprove, Payload{}, nil
		case "reject":
			return TransitionLeaderReject, Payload{}, nil
		}
	case StepCHMApproval:
		switch decision {
		case "approve":
			return TransitionCHMApprove, Payload{}, nil
		case "reject":
			return TransitionCHMReject, Payload{}, nil
		}
	case StepITClearance:
		switch decision {
		case string(ITOutcomeOK):
			return TransitionITClear, Payload{ITOutcome: ITOutcomeOK}, nil
		case string(ITOutcomeIssue):
			return TransitionITClear, Payload{ITOutcome: ITOutcomeIssue}, nil
		}
	}
	return "", Payload{}, fmt.Errorf("%w: decision %q is not accepted for step %s", ErrInvalidTransition, decision, step)
}
