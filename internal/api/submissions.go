package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"offboarding-workflow/internal/domain"
)

type createSubmissionRequest struct {
	EmployeeName     string `json:"employee_name"`
	EmployeeEmail    string `json:"employee_email"`
	TeamLeader       string `json:"team_leader"`
	JoiningDate      string `json:"joining_date"`
	SubmissionDate   string `json:"submission_date,omitempty"`
	LastWorkingDay   string `json:"last_working_day"`
	InProbation      bool   `json:"in_probation"`
	NoticePeriodDays int    `json:"notice_period_days"`
}

func (req createSubmissionRequest) employeeInfo() (domain.EmployeeInfo, []string) {
	info := domain.EmployeeInfo{
		EmployeeName:     req.EmployeeName,
		EmployeeEmail:    req.EmployeeEmail,
		TeamLeader:       req.TeamLeader,
		InProbation:      req.InProbation,
		NoticePeriodDays: req.NoticePeriodDays,
	}
	var bad []string
	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Time
	}{
		{"joining_date", req.JoiningDate, &info.JoiningDate},
		{"submission_date", req.SubmissionDate, &info.SubmissionDate},
		{"last_working_day", req.LastWorkingDay, &info.LastWorkingDay},
	} {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			continue
		}
		t, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			bad = append(bad, f.name)
			continue
		}
		*f.dst = t
	}
	return info, bad
}

type transitionRequest struct {
	Transition string                    `json:"transition"`
	Notes      string                    `json:"notes,omitempty"`
	ITOutcome  domain.ITOutcome          `json:"it_outcome,omitempty"`
	Schedule   *domain.InterviewSchedule `json:"schedule,omitempty"`
	Result     *domain.InterviewResult   `json:"result,omitempty"`
}

func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	info, badDates := req.employeeInfo()
	if len(badDates) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "dates must be YYYY-MM-DD", "fields": badDates})
		return
	}

	id, _, err := h.workflow.Create(ctx, info)
	if err != nil {
		writeError(w, err)
		return
	}
	// The first link goes to the team leader by mail and is not echoed back.
	writeJSON(w, http.StatusCreated, map[string]any{
		"submission_id":      id,
		"resignation_status": domain.StatusSubmitted,
		"next_step":          domain.StepLeaderApproval,
	})
}

func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var filter domain.SubmissionFilter
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, err := domain.ParseResignationStatus(part)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}

	items, err := h.workflow.List(ctx, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request, submissionID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sub, err := h.workflow.Get(ctx, submissionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submission": sub,
		"next_step":  domain.RequiredStep(sub.ResignationStatus),
	})
}

func (h *Handler) ApplyTransition(w http.ResponseWriter, r *http.Request, submissionID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	t, err := domain.ParseTransition(req.Transition)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown transition"})
		return
	}

	out, err := h.workflow.ApplyStaffAction(ctx, submissionID, t, domain.Payload{
		Notes:     req.Notes,
		ITOutcome: req.ITOutcome,
		Schedule:  req.Schedule,
		Result:    req.Result,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ResendLink(w http.ResponseWriter, r *http.Request, submissionID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if _, err := h.workflow.Resend(ctx, submissionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"submission_id": submissionID, "status": "resent"})
}

func (h *Handler) TickReminders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	summary, err := h.reminders.Tick(ctx)
	if err != nil {
		logger.Errorf("manual reminder tick: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "reminder sweep failed"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) PendingReminders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	backlog, err := h.reminders.Pending(ctx)
	if err != nil {
		logger.Errorf("pending reminders: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "failed to fetch pending reminders"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": backlog})
}

// ListInterviews is the HR agenda of exit interviews.
func (h *Handler) ListInterviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	agenda, err := h.workflow.Interviews(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agenda)
}
