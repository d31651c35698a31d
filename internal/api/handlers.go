package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/juju/loggo"

	"offboarding-workflow/internal/capability"
	"offboarding-workflow/internal/config"
	"offboarding-workflow/internal/domain"
	"offboarding-workflow/internal/engine"
	"offboarding-workflow/internal/reminder"
)

var logger = loggo.GetLogger("offboarding.api")

// Workflow is the subset of engine.Engine the handlers drive.
type Workflow interface {
	Create(ctx context.Context, info domain.EmployeeInfo) (string, string, error)
	ApplyAction(ctx context.Context, token, decision, notes string, opts ...engine.ActionOption) (engine.Outcome, error)
	Describe(ctx context.Context, token string) (engine.View, error)
	ApplyStaffAction(ctx context.Context, submissionID string, t domain.Transition, payload domain.Payload) (engine.Outcome, error)
	Resend(ctx context.Context, submissionID string) (string, error)
	Get(ctx context.Context, id string) (domain.Submission, error)
	List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error)
	Interviews(ctx context.Context) (domain.InterviewAgenda, error)
}

type Reminders interface {
	Tick(ctx context.Context) (reminder.Summary, error)
	Pending(ctx context.Context) (map[domain.Actor]reminder.ActorBacklog, error)
}

type Leaders interface {
	Search(query string) []domain.LeaderMapping
	Import(ctx context.Context, r io.Reader) (int, error)
}

type readinessChecker interface {
	Ping(ctx context.Context) error
}

type uploadBlobStore interface {
	PutObject(ctx context.Context, objectKey, contentType string, content []byte) error
}

type Handler struct {
	cfg       config.Config
	workflow  Workflow
	reminders Reminders
	leaders   Leaders
	store     readinessChecker
	blob      uploadBlobStore
	now       func() time.Time
}

// NewHandler wires the HTTP surface. blob may be nil, in which case uploaded
// mapping sheets are imported without being archived.
func NewHandler(cfg config.Config, workflow Workflow, reminders Reminders, leaders Leaders, store readinessChecker, blob uploadBlobStore) *Handler {
	return &Handler{
		cfg:       cfg,
		workflow:  workflow,
		reminders: reminders,
		leaders:   leaders,
		store:     store,
		blob:      blob,
		now:       time.Now,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

const linkUnusableMessage = "link expired or already used"

// writeLinkError answers a public link request. Every token or state problem
// looks the same to the caller.
func writeLinkError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capability.ErrTokenInvalid), errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrGuardFailed):
		logger.Debugf("link rejected: %v", err)
		writeJSON(w, http.StatusGone, map[string]any{"error": linkUnusableMessage})
	default:
		writeError(w, err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var verr *engine.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid employee info", "failed_rules": verr.FailedRules})
	case errors.Is(err, domain.ErrMissingNotes):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "notes are required to reject"})
	case errors.Is(err, domain.ErrInvalidDetails):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrGuardFailed), errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, capability.ErrTokenInvalid):
		writeJSON(w, http.StatusGone, map[string]any{"error": linkUnusableMessage})
	case errors.Is(err, domain.ErrSubmissionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "submission not found"})
	case errors.Is(err, engine.ErrStoreUnavailable):
		logger.Errorf("store unavailable: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "submission store unavailable"})
	case errors.Is(err, engine.ErrDispatchFailed):
		logger.Warningf("dispatch failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "notification could not be sent"})
	default:
		logger.Errorf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
