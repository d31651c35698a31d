package notify

import (
	"context"

	"offboarding-workflow/internal/domain"
)

type Template string

const (
	TemplateLeaderApprovalRequest  Template = "leader_approval_request"
	TemplateCHMApprovalRequest     Template = "chm_approval_request"
	TemplateITClearanceRequest     Template = "it_clearance_request"
	TemplateLeaderApprovalReminder Template = "leader_approval_reminder"
	TemplateCHMApprovalReminder    Template = "chm_approval_reminder"
	TemplateITClearanceReminder    Template = "it_clearance_reminder"
	TemplateHRStatusUpdate         Template = "hr_status_update"
	TemplateEmployeeStatusUpdate   Template = "employee_status_update"
)

var AllTemplates = []Template{
	TemplateLeaderApprovalRequest,
	TemplateCHMApprovalRequest,
	TemplateITClearanceRequest,
	TemplateLeaderApprovalReminder,
	TemplateCHMApprovalReminder,
	TemplateITClearanceReminder,
	TemplateHRStatusUpdate,
	TemplateEmployeeStatusUpdate,
}

// RequestTemplate is the first-contact template for a link-authorized actor.
func RequestTemplate(actor domain.Actor) (Template, bool) {
	switch actor {
	case domain.ActorLeader:
		return TemplateLeaderApprovalRequest, true
	case domain.ActorCHM:
		return TemplateCHMApprovalRequest, true
	case domain.ActorIT:
		return TemplateITClearanceRequest, true
	}
	return "", false
}

func ReminderTemplate(actor domain.Actor) (Template, bool) {
	switch actor {
	case domain.ActorLeader:
		return TemplateLeaderApprovalReminder, true
	case domain.ActorCHM:
		return TemplateCHMApprovalReminder, true
	case domain.ActorIT:
		return TemplateITClearanceReminder, true
	}
	return "", false
}

// Data is what templates may reference.
type Data struct {
	SubmissionID   string
	EmployeeName   string
	EmployeeEmail  string
	TeamLeader     string
	LastWorkingDay string
	Status         string
	Step           string
	Link           string
	LinkExpires    string
	Notes          string
}

func DataFor(sub domain.Submission) Data {
	d := Data{
		SubmissionID:  sub.ID,
		EmployeeName:  sub.EmployeeName,
		EmployeeEmail: sub.EmployeeEmail,
		TeamLeader:    sub.TeamLeader,
		Status:        string(sub.ResignationStatus),
		Step:          string(domain.RequiredStep(sub.ResignationStatus)),
	}
	if !sub.LastWorkingDay.IsZero() {
		d.LastWorkingDay = sub.LastWorkingDay.Format(domain.DateLayout)
	}
	return d
}

// Dispatcher delivers one templated notification. Delivery is at most once
// per call and never retried here.
type Dispatcher interface {
	Send(ctx context.Context, template Template, to domain.Recipient, data Data) error
}
