package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrSubmissionNotFound = errors.New("submission not found")

type Submission struct {
	ID                   string              `json:"id"`
	EmployeeName         string              `json:"employee_name"`
	EmployeeEmail        string              `json:"employee_email"`
	TeamLeader           string              `json:"team_leader"`
	JoiningDate          time.Time           `json:"joining_date"`
	SubmissionDate       time.Time           `json:"submission_date"`
	LastWorkingDay       time.Time           `json:"last_working_day"`
	InProbation          bool                `json:"in_probation"`
	NoticePeriodDays     int                 `json:"notice_period_days"`
	ResignationStatus    ResignationStatus   `json:"resignation_status"`
	ExitInterviewStatus  ExitInterviewStatus `json:"exit_interview_status"`
	TeamLeaderReply      Reply               `json:"team_leader_reply,omitempty"`
	TeamLeaderNotes      string              `json:"team_leader_notes,omitempty"`
	ChineseHeadReply     Reply               `json:"chinese_head_reply,omitempty"`
	ChineseHeadNotes     string              `json:"chinese_head_notes,omitempty"`
	ExitInterviewNotes   string              `json:"exit_interview_notes,omitempty"`
	ExitInterview        ExitInterview       `json:"exit_interview"`
	ITSupportReply       Reply               `json:"it_support_reply,omitempty"`
	ITSupportNotes       string              `json:"it_support_notes,omitempty"`
	Assets               AssetChecklist      `json:"assets"`
	MedicalCardCollected bool                `json:"medical_card_collected"`
	VendorMailSent       bool                `json:"vendor_mail_sent"`
	LastRemindedAt       *time.Time          `json:"last_reminded_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// EmployeeInfo is what HR supplies when opening a resignation.
type EmployeeInfo struct {
	EmployeeName     string    `json:"employee_name"`
	EmployeeEmail    string    `json:"employee_email"`
	TeamLeader       string    `json:"team_leader"`
	JoiningDate      time.Time `json:"joining_date"`
	SubmissionDate   time.Time `json:"submission_date"`
	LastWorkingDay   time.Time `json:"last_working_day"`
	InProbation      bool      `json:"in_probation"`
	NoticePeriodDays int       `json:"notice_period_days"`
}

const defaultNoticePeriodDays = 30

// NewSubmission builds a submission in its initial state.
func NewSubmission(id string, info EmployeeInfo, now time.Time) Submission {
	notice := info.NoticePeriodDays
	if notice <= 0 {
		notice = defaultNoticePeriodDays
	}
	submitted := info.SubmissionDate
	if submitted.IsZero() {
		submitted = now
	}
	return Submission{
		ID:                  id,
		EmployeeName:        strings.TrimSpace(info.EmployeeName),
		EmployeeEmail:       strings.TrimSpace(info.EmployeeEmail),
		TeamLeader:          strings.TrimSpace(info.TeamLeader),
		JoiningDate:         info.JoiningDate,
		SubmissionDate:      submitted,
		LastWorkingDay:      info.LastWorkingDay,
		InProbation:         info.InProbation,
		NoticePeriodDays:    notice,
		ResignationStatus:   StatusSubmitted,
		ExitInterviewStatus: InterviewNotScheduled,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Precondition identifies the exact state a compare-and-set must still observe.
type Precondition struct {
	ID                  string
	ResignationStatus   ResignationStatus
	ExitInterviewStatus ExitInterviewStatus
}

func PreconditionOf(sub Submission) Precondition {
	return Precondition{
		ID:                  sub.ID,
		ResignationStatus:   sub.ResignationStatus,
		ExitInterviewStatus: sub.ExitInterviewStatus,
	}
}

// Recipient is a resolved notification target.
type Recipient struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Locale string `json:"locale,omitempty"`
}

// SubmissionFilter narrows dashboard listings. Zero values match everything.
type SubmissionFilter struct {
	Statuses []ResignationStatus
	Limit    int
}

// LeaderMapping is one row of the team leader to department head directory.
type LeaderMapping struct {
	TeamLeaderName   string `json:"team_leader_name"`
	TeamLeaderEmail  string `json:"team_leader_email"`
	ChineseHeadName  string `json:"chinese_head_name"`
	ChineseHeadEmail string `json:"chinese_head_email"`
	CRM              string `json:"crm,omitempty"`
}

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

type EmailLogEntry struct {
	SubmissionID string         `json:"submission_id"`
	Template     string         `json:"template"`
	Recipient    string         `json:"recipient"`
	Subject      string         `json:"subject"`
	Status       DeliveryStatus `json:"status"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
