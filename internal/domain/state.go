package domain

import (
	"database/sql/driver"
	"fmt"
)

type ResignationStatus string

const (
	StatusSubmitted      ResignationStatus = "submitted"
	StatusLeaderApproved ResignationStatus = "leader_approved"
	StatusLeaderRejected ResignationStatus = "leader_rejected"
	StatusCHMApproved    ResignationStatus = "chm_approved"
	StatusCHMRejected    ResignationStatus = "chm_rejected"
	StatusExitDone       ResignationStatus = "exit_done"
	StatusAssetsRecorded ResignationStatus = "assets_recorded"
	StatusMedicalChecked ResignationStatus = "medical_checked"
	StatusOffboarded     ResignationStatus = "offboarded"
)

// AllStatuses lists every status in workflow order.
var AllStatuses = []ResignationStatus{
	StatusSubmitted,
	StatusLeaderApproved,
	StatusLeaderRejected,
	StatusCHMApproved,
	StatusCHMRejected,
	StatusExitDone,
	StatusAssetsRecorded,
	StatusMedicalChecked,
	StatusOffboarded,
}

// statusRank orders statuses along the happy path. Rejections share the rank
// of the state they were rejected from plus one, so nothing re-enters them.
var statusRank = map[ResignationStatus]int{
	StatusSubmitted:      0,
	StatusLeaderApproved: 1,
	StatusLeaderRejected: 1,
	StatusCHMApproved:    2,
	StatusCHMRejected:    2,
	StatusExitDone:       3,
	StatusAssetsRecorded: 4,
	StatusMedicalChecked: 5,
	StatusOffboarded:     6,
}

func ParseResignationStatus(v string) (ResignationStatus, error) {
	s := ResignationStatus(v)
	if _, ok := statusRank[s]; !ok {
		return "", fmt.Errorf("unknown resignation status %q", v)
	}
	return s, nil
}

func (s ResignationStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

func (s ResignationStatus) IsTerminal() bool {
	switch s {
	case StatusLeaderRejected, StatusCHMRejected, StatusOffboarded:
		return true
	}
	return false
}

// Before reports whether s comes strictly earlier than other on the workflow path.
func (s ResignationStatus) Before(other ResignationStatus) bool {
	return statusRank[s] < statusRank[other]
}

func (s ResignationStatus) String() string {
	return string(s)
}

func (s *ResignationStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseResignationStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s *ResignationStatus) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return fmt.Errorf("scan resignation status: %w", err)
	}
	return s.UnmarshalText([]byte(raw))
}

func (s ResignationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown resignation status %q", string(s))
	}
	return string(s), nil
}

type ExitInterviewStatus string

const (
	InterviewNotScheduled ExitInterviewStatus = "not_scheduled"
	InterviewScheduled    ExitInterviewStatus = "scheduled"
	InterviewDone         ExitInterviewStatus = "done"
	InterviewNoShow       ExitInterviewStatus = "no_show"
	InterviewSkipped      ExitInterviewStatus = "skipped"
)

func ParseExitInterviewStatus(v string) (ExitInterviewStatus, error) {
	s := ExitInterviewStatus(v)
	switch s {
	case InterviewNotScheduled, InterviewScheduled, InterviewDone, InterviewNoShow, InterviewSkipped:
		return s, nil
	}
	return "", fmt.Errorf("unknown exit interview status %q", v)
}

func (s ExitInterviewStatus) String() string {
	return string(s)
}

func (s *ExitInterviewStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseExitInterviewStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s *ExitInterviewStatus) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return fmt.Errorf("scan exit interview status: %w", err)
	}
	return s.UnmarshalText([]byte(raw))
}

func (s ExitInterviewStatus) Value() (driver.Value, error) {
	if _, err := ParseExitInterviewStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}

// Reply is a tri-state approver answer. The zero value means no answer yet.
type Reply string

const (
	ReplyUnset    Reply = ""
	ReplyApproved Reply = "approved"
	ReplyRejected Reply = "rejected"
)

func (r Reply) IsSet() bool {
	return r != ReplyUnset
}

// ReplyFromBool maps the nullable boolean column representation to a Reply.
func ReplyFromBool(valid, approved bool) Reply {
	if !valid {
		return ReplyUnset
	}
	if approved {
		return ReplyApproved
	}
	return ReplyRejected
}

// Bool is the inverse of ReplyFromBool.
func (r Reply) Bool() (approved bool, valid bool) {
	switch r {
	case ReplyApproved:
		return true, true
	case ReplyRejected:
		return false, true
	}
	return false, false
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("unexpected NULL")
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}
