// Package engine applies workflow transitions to stored submissions and sends
// the notifications that follow them.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"offboarding-workflow/internal/capability"
	"offboarding-workflow/internal/domain"
	"offboarding-workflow/internal/metrics"
	"offboarding-workflow/internal/notify"
)

var (
	ErrStoreUnavailable = stderrors.New("submission store unavailable")
	ErrDispatchFailed   = stderrors.New("notification dispatch failed")
	ErrInvalidInput     = stderrors.New("invalid employee info")
)

// ValidationError lists the employee info rules that failed.
type ValidationError struct {
	FailedRules []string
}

func (e *ValidationError) Error() string {
	return "invalid employee info: " + strings.Join(e.FailedRules, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

type Store interface {
	Create(ctx context.Context, sub domain.Submission) error
	Get(ctx context.Context, id string) (domain.Submission, error)
	CompareAndSetStatus(ctx context.Context, expect domain.Precondition, next domain.Submission) (bool, error)
	List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error)
}

type Tokens interface {
	Issue(submissionID string, step domain.Step, ttl time.Duration) (string, error)
	Validate(token string, currentStep domain.Step) (capability.Claims, error)
	Inspect(token string) (capability.Claims, error)
	TTL() time.Duration
}

type Recipients interface {
	Resolve(sub domain.Submission, actor domain.Actor) (domain.Recipient, error)
}

// Logger represents the methods used by the engine to log information.
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warningf(string, ...interface{})
}

type Config struct {
	Store      Store
	Tokens     Tokens
	Dispatcher notify.Dispatcher
	Recipients Recipients
	Clock      clock.Clock
	Logger     Logger
	Metrics    *metrics.Collector
	BaseURL    string
	// NewID defaults to random UUIDs.
	NewID func() string
}

// Validate returns an error if config cannot drive the Engine.
func (config Config) Validate() error {
	if config.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if config.Tokens == nil {
		return errors.NotValidf("nil Tokens")
	}
	if config.Dispatcher == nil {
		return errors.NotValidf("nil Dispatcher")
	}
	if config.Recipients == nil {
		return errors.NotValidf("nil Recipients")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if config.BaseURL == "" {
		return errors.NotValidf("empty BaseURL")
	}
	return nil
}

type Engine struct {
	config Config
}

func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	return &Engine{config: config}, nil
}

// Outcome describes a committed transition.
type Outcome struct {
	Submission       domain.Submission `json:"submission"`
	Transition       domain.Transition `json:"transition"`
	NextStep         domain.Step       `json:"next_step"`
	Notified         []notify.Template `json:"notified"`
	DispatchFailures []string          `json:"dispatch_failures,omitempty"`
}

// View is what a link holder is being asked to decide.
type View struct {
	SubmissionID   string       `json:"submission_id"`
	EmployeeName   string       `json:"employee_name"`
	TeamLeader     string       `json:"team_leader"`
	LastWorkingDay string       `json:"last_working_day,omitempty"`
	Step           domain.Step  `json:"step"`
	Actor          domain.Actor `json:"actor"`
	Decisions      []string     `json:"decisions"`
	NotesRequired  []string     `json:"notes_required_for"`
	AssetItems     []string     `json:"asset_items,omitempty"`
	ExpiresAt      time.Time    `json:"expires_at"`
}

func (e *Engine) Create(ctx context.Context, info domain.EmployeeInfo) (string, string, error) {
	if res := domain.ValidateEmployeeInfo(info); !domain.ValidationPassed(res) {
		return "", "", &ValidationError{FailedRules: res.FailedRules}
	}
	sub := domain.NewSubmission(e.config.NewID(), info, e.config.Clock.Now())
	if err := e.config.Store.Create(ctx, sub); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	e.config.Logger.Infof("submission %s created for %s", sub.ID, sub.EmployeeEmail)

	token, err := e.config.Tokens.Issue(sub.ID, domain.StepLeaderApproval, 0)
	if err != nil {
		return sub.ID, "", fmt.Errorf("issue first token: %w", err)
	}
	if err := e.sendLink(ctx, sub, domain.ActorLeader, notify.TemplateLeaderApprovalRequest, token); err != nil {
		e.config.Logger.Warningf("submission %s: %v", sub.ID, err)
	}
	return sub.ID, token, nil
}

// ActionOption adds step specific details to a link holder's decision.
type ActionOption func(step domain.Step, p *domain.Payload)

// WithAssets attaches the checklist IT fills in when clearing the employee.
// It is ignored on every other step.
func WithAssets(assets domain.AssetChecklist) ActionOption {
	return func(step domain.Step, p *domain.Payload) {
		if step == domain.StepITClearance {
			p.Assets = &assets
		}
	}
}

// ApplyAction performs the decision a link holder made. Tokens that no longer
// match the submission's required step fail with domain.ErrInvalidTransition.
func (e *Engine) ApplyAction(ctx context.Context, token, decision, notes string, opts ...ActionOption) (Outcome, error) {
	sub, step, err := e.resolveToken(ctx, token)
	if err != nil {
		return Outcome{}, err
	}
	transition, payload, err := domain.DecisionTransition(step, decision)
	if err != nil {
		return Outcome{}, err
	}
	payload.Notes = notes
	for _, opt := range opts {
		opt(step, &payload)
	}
	return e.transition(ctx, sub, transition, payload)
}

func (e *Engine) Describe(ctx context.Context, token string) (View, error) {
	sub, step, err := e.resolveToken(ctx, token)
	if err != nil {
		return View{}, err
	}
	claims, _ := e.config.Tokens.Inspect(token)
	view := View{
		SubmissionID: sub.ID,
		EmployeeName: sub.EmployeeName,
		TeamLeader:   sub.TeamLeader,
		Step:         step,
		Actor:        step.Actor(),
		ExpiresAt:    claims.Expiry(),
	}
	if !sub.LastWorkingDay.IsZero() {
		view.LastWorkingDay = sub.LastWorkingDay.Format(domain.DateLayout)
	}
	switch step {
	case domain.StepITClearance:
		view.Decisions = []string{string(domain.ITOutcomeOK), string(domain.ITOutcomeIssue)}
		view.NotesRequired = []string{string(domain.ITOutcomeIssue)}
		view.AssetItems = []string{"laptop", "mouse", "headphones", "others"}
	default:
		view.Decisions = []string{"approve", "reject"}
		view.NotesRequired = []string{"reject"}
	}
	return view, nil
}

// resolveToken authenticates token and binds it to the submission's current step.
func (e *Engine) resolveToken(ctx context.Context, token string) (domain.Submission, domain.Step, error) {
	claims, err := e.config.Tokens.Inspect(token)
	if err != nil {
		return domain.Submission{}, domain.StepNone, err
	}
	sub, err := e.config.Store.Get(ctx, claims.SubmissionID)
	if stderrors.Is(err, domain.ErrSubmissionNotFound) {
		e.config.Logger.Warningf("authentic token for unknown submission %s", claims.SubmissionID)
		return domain.Submission{}, domain.StepNone, capability.ErrTokenInvalid
	}
	if err != nil {
		return domain.Submission{}, domain.StepNone, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	step := domain.RequiredStep(sub.ResignationStatus)
	if _, err := e.config.Tokens.Validate(token, step); err != nil {
		return domain.Submission{}, domain.StepNone, &domain.TransitionError{
			From:   sub.ResignationStatus,
			Err:    domain.ErrInvalidTransition,
			Detail: fmt.Sprintf("link is for %s, submission is at %s", claims.Step, step),
		}
	}
	if !step.LinkAuthorized() {
		return domain.Submission{}, domain.StepNone, fmt.Errorf("%w: step %s is not link authorized", domain.ErrInvalidTransition, step)
	}
	return sub, step, nil
}

// ApplyStaffAction performs an HR-owned transition for an authenticated staff member.
func (e *Engine) ApplyStaffAction(ctx context.Context, submissionID string, t domain.Transition, payload domain.Payload) (Outcome, error) {
	if t.Step().Actor() != domain.ActorHR {
		return Outcome{}, fmt.Errorf("%w: %s is performed through an emailed link", domain.ErrInvalidTransition, t)
	}
	sub, err := e.Get(ctx, submissionID)
	if err != nil {
		return Outcome{}, err
	}
	return e.transition(ctx, sub, t, payload)
}

// Resend issues a fresh link for the current step and mails it to its actor.
// For HR-owned steps HR gets a status notice instead and no token is returned.
func (e *Engine) Resend(ctx context.Context, submissionID string) (string, error) {
	sub, err := e.Get(ctx, submissionID)
	if err != nil {
		return "", err
	}
	step := domain.RequiredStep(sub.ResignationStatus)
	if step == domain.StepNone {
		return "", fmt.Errorf("%w: submission %s is closed", domain.ErrInvalidTransition, sub.ID)
	}
	tmpl, linked := notify.RequestTemplate(step.Actor())
	if !linked {
		return "", e.sendStatus(ctx, sub, domain.ActorHR, notify.TemplateHRStatusUpdate, "")
	}
	token, err := e.config.Tokens.Issue(sub.ID, step, 0)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	if err := e.sendLink(ctx, sub, step.Actor(), tmpl, token); err != nil {
		return token, err
	}
	return token, nil
}

func (e *Engine) Get(ctx context.Context, id string) (domain.Submission, error) {
	sub, err := e.config.Store.Get(ctx, id)
	if stderrors.Is(err, domain.ErrSubmissionNotFound) {
		return domain.Submission{}, err
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return sub, nil
}

func (e *Engine) List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error) {
	subs, err := e.config.Store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return subs, nil
}

// Interviews lists exit interviews that are coming up, overdue or still
// need booking.
func (e *Engine) Interviews(ctx context.Context) (domain.InterviewAgenda, error) {
	subs, err := e.List(ctx, domain.SubmissionFilter{Statuses: []domain.ResignationStatus{domain.StatusCHMApproved}})
	if err != nil {
		return domain.InterviewAgenda{}, err
	}
	return domain.BuildInterviewAgenda(subs, e.config.Clock.Now()), nil
}

func (e *Engine) transition(ctx context.Context, sub domain.Submission, t domain.Transition, payload domain.Payload) (Outcome, error) {
	next, err := domain.Apply(sub, t, payload, e.config.Clock.Now())
	if err != nil {
		e.config.Metrics.TransitionAttempted(string(t), metrics.ResultError)
		return Outcome{}, err
	}
	ok, err := e.config.Store.CompareAndSetStatus(ctx, domain.PreconditionOf(sub), next)
	if err != nil {
		e.config.Metrics.TransitionAttempted(string(t), metrics.ResultError)
		return Outcome{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !ok {
		e.config.Metrics.TransitionAttempted(string(t), metrics.ResultError)
		return Outcome{}, &domain.TransitionError{
			From:       sub.ResignationStatus,
			Transition: t,
			Err:        domain.ErrInvalidTransition,
			Detail:     "submission changed concurrently",
		}
	}
	e.config.Metrics.TransitionAttempted(string(t), metrics.ResultOK)
	e.config.Logger.Infof("submission %s: %s %s -> %s", sub.ID, t, sub.ResignationStatus, next.ResignationStatus)

	out := Outcome{
		Submission: next,
		Transition: t,
		NextStep:   domain.RequiredStep(next.ResignationStatus),
	}
	e.followUp(ctx, next, t, payload, &out)
	return out, nil
}

type followUp struct {
	actor    domain.Actor
	template notify.Template
	link     domain.Step
}

func followUpsFor(t domain.Transition) []followUp {
	switch t {
	case domain.TransitionLeaderApprove:
		return []followUp{{domain.ActorCHM, notify.TemplateCHMApprovalRequest, domain.StepCHMApproval}}
	case domain.TransitionCHMApprove, domain.TransitionITClear, domain.TransitionMedicalMark:
		return []followUp{{domain.ActorHR, notify.TemplateHRStatusUpdate, domain.StepNone}}
	case domain.TransitionInterviewDone, domain.TransitionSkipInterview:
		return []followUp{{domain.ActorIT, notify.TemplateITClearanceRequest, domain.StepITClearance}}
	case domain.TransitionLeaderReject, domain.TransitionCHMReject, domain.TransitionFinalize:
		return []followUp{
			{domain.ActorHR, notify.TemplateHRStatusUpdate, domain.StepNone},
			{domain.ActorEmployee, notify.TemplateEmployeeStatusUpdate, domain.StepNone},
		}
	}
	return nil
}

// followUp never fails the committed transition; failures are logged and
// reported on the outcome for an administrative resend.
func (e *Engine) followUp(ctx context.Context, sub domain.Submission, t domain.Transition, payload domain.Payload, out *Outcome) {
	for _, f := range followUpsFor(t) {
		var err error
		if f.link != domain.StepNone {
			var token string
			token, err = e.config.Tokens.Issue(sub.ID, f.link, 0)
			if err == nil {
				err = e.sendLink(ctx, sub, f.actor, f.template, token)
			}
		} else {
			err = e.sendStatus(ctx, sub, f.actor, f.template, payload.Notes)
		}
		if err != nil {
			e.config.Logger.Warningf("submission %s: follow-up %s after %s: %v", sub.ID, f.template, t, err)
			out.DispatchFailures = append(out.DispatchFailures, fmt.Sprintf("%s: %v", f.template, err))
			continue
		}
		out.Notified = append(out.Notified, f.template)
	}
}

func (e *Engine) sendLink(ctx context.Context, sub domain.Submission, actor domain.Actor, tmpl notify.Template, token string) error {
	data := notify.DataFor(sub)
	data.Link = capability.ActionURL(e.config.BaseURL, token)
	data.LinkExpires = e.config.Clock.Now().Add(e.config.Tokens.TTL()).Format(time.RFC1123)
	return e.dispatch(ctx, sub, actor, tmpl, data)
}

func (e *Engine) sendStatus(ctx context.Context, sub domain.Submission, actor domain.Actor, tmpl notify.Template, notes string) error {
	data := notify.DataFor(sub)
	data.Notes = strings.TrimSpace(notes)
	return e.dispatch(ctx, sub, actor, tmpl, data)
}

func (e *Engine) dispatch(ctx context.Context, sub domain.Submission, actor domain.Actor, tmpl notify.Template, data notify.Data) error {
	rcpt, err := e.config.Recipients.Resolve(sub, actor)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	if err := e.config.Dispatcher.Send(ctx, tmpl, rcpt, data); err != nil {
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	return nil
}
