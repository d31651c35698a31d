package domain

import (
	"net/mail"
	"strings"
)

const DateLayout = "2006-01-02"

type ValidationResult struct {
	FailedRules []string `json:"failed_rules"`
}

func ValidateEmployeeInfo(v EmployeeInfo) ValidationResult {
	failed := make([]string, 0)

	if strings.TrimSpace(v.EmployeeName) == "" {
		failed = append(failed, "submission.employee_name_present")
	}
	if !ValidEmail(v.EmployeeEmail) {
		failed = append(failed, "submission.employee_email_valid")
	}
	if strings.TrimSpace(v.TeamLeader) == "" {
		failed = append(failed, "submission.team_leader_present")
	}
	if v.NoticePeriodDays < 0 {
		failed = append(failed, "submission.notice_period_non_negative")
	}
	if v.JoiningDate.IsZero() {
		failed = append(failed, "submission.joining_date_present")
	}
	if v.LastWorkingDay.IsZero() {
		failed = append(failed, "submission.last_working_day_present")
	} else if !v.JoiningDate.IsZero() && v.LastWorkingDay.Before(v.JoiningDate) {
		failed = append(failed, "submission.last_working_day_after_joining")
	}
	if !v.SubmissionDate.IsZero() && !v.LastWorkingDay.IsZero() && v.LastWorkingDay.Before(v.SubmissionDate) {
		failed = append(failed, "submission.last_working_day_after_submission")
	}

	return ValidationResult{FailedRules: failed}
}

// ValidEmail reports whether v is a bare address such as a@example.com.
func ValidEmail(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	addr, err := mail.ParseAddress(v)
	return err == nil && addr.Address == v
}

func ValidationPassed(r ValidationResult) bool {
	return len(r.FailedRules) == 0
}
