// Package reminder nudges leaders, department heads and IT when a submission
// has waited on them for too long.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"offboarding-workflow/internal/capability"
	"offboarding-workflow/internal/domain"
	"offboarding-workflow/internal/metrics"
	"offboarding-workflow/internal/notify"
)

const DefaultThreshold = 24 * time.Hour

type Store interface {
	ScanWaiting(ctx context.Context, statuses []domain.ResignationStatus) ([]domain.Submission, error)
	ConditionalSetLastReminded(ctx context.Context, id string, status domain.ResignationStatus, now time.Time, threshold time.Duration) (bool, error)
}

type Tokens interface {
	Issue(submissionID string, step domain.Step, ttl time.Duration) (string, error)
	TTL() time.Duration
}

type Recipients interface {
	Resolve(sub domain.Submission, actor domain.Actor) (domain.Recipient, error)
}

// Logger represents the methods used by the scheduler to log information.
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

	// Threshold is both the minimum wait before the first reminder and the
	// dedup window between reminders.
	Threshold time.Duration
	// Interval paces Run.
	Interval time.Duration
}

// Validate returns an error if config cannot drive the Scheduler.
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
	if config.Threshold <= 0 {
		return errors.NotValidf("non-positive Threshold")
	}
	return nil
}

type Scheduler struct {
	config Config
}

func New(config Config) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Scheduler{config: config}, nil
}

type Summary struct {
	Leader  int `json:"leader_reminders"`
	CHM     int `json:"chm_reminders"`
	IT      int `json:"it_reminders"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

func (s Summary) Total() int {
	return s.Leader + s.CHM + s.IT
}

func (s *Summary) count(actor domain.Actor) {
	switch actor {
	case domain.ActorLeader:
		s.Leader++
	case domain.ActorCHM:
		s.CHM++
	case domain.ActorIT:
		s.IT++
	}
}

// Tick sends at most one reminder per waiting submission. The reminder slot is
// claimed with a conditional write before anything is sent, so concurrent
// ticks never remind the same submission twice inside one window.
func (s *Scheduler) Tick(ctx context.Context) (Summary, error) {
	var summary Summary
	subs, err := s.config.Store.ScanWaiting(ctx, domain.WaitingStatuses)
	if err != nil {
		return summary, fmt.Errorf("scan waiting submissions: %w", err)
	}
	now := s.config.Clock.Now()
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		sent, err := s.remind(ctx, sub, now)
		switch {
		case err != nil:
			summary.Errors++
			s.config.Metrics.ReminderFailed()
			s.config.Logger.Warningf("reminder for submission %s failed: %v", sub.ID, err)
		case sent == domain.ActorNone:
			summary.Skipped++
		default:
			summary.count(sent)
			s.config.Metrics.ReminderSent(string(sent))
		}
	}
	if summary.Total() > 0 || summary.Errors > 0 {
		s.config.Logger.Infof("reminders sent: leader=%d chm=%d it=%d errors=%d", summary.Leader, summary.CHM, summary.IT, summary.Errors)
	}
	return summary, nil
}

// remind returns the actor reminded, or ActorNone when the submission is not due.
func (s *Scheduler) remind(ctx context.Context, sub domain.Submission, now time.Time) (domain.Actor, error) {
	actor := domain.WaitingActor(sub)
	if actor == domain.ActorNone {
		return domain.ActorNone, nil
	}
	threshold := s.config.Threshold
	if now.Sub(sub.UpdatedAt) < threshold {
		return domain.ActorNone, nil
	}
	if sub.LastRemindedAt != nil && now.Sub(*sub.LastRemindedAt) < threshold {
		return domain.ActorNone, nil
	}

	claimed, err := s.config.Store.ConditionalSetLastReminded(ctx, sub.ID, sub.ResignationStatus, now, threshold)
	if err != nil {
		return domain.ActorNone, err
	}
	if !claimed {
		s.config.Logger.Debugf("reminder for submission %s already claimed", sub.ID)
		return domain.ActorNone, nil
	}

	tmpl, ok := notify.ReminderTemplate(actor)
	if !ok {
		return domain.ActorNone, fmt.Errorf("no reminder template for %s", actor)
	}
	step := domain.RequiredStep(sub.ResignationStatus)
	token, err := s.config.Tokens.Issue(sub.ID, step, 0)
	if err != nil {
		return domain.ActorNone, fmt.Errorf("issue token: %w", err)
	}
	rcpt, err := s.config.Recipients.Resolve(sub, actor)
	if err != nil {
		return domain.ActorNone, err
	}
	data := notify.DataFor(sub)
	data.Link = capability.ActionURL(s.config.BaseURL, token)
	data.LinkExpires = now.Add(s.config.Tokens.TTL()).Format(time.RFC1123)
	if err := s.config.Dispatcher.Send(ctx, tmpl, rcpt, data); err != nil {
		return domain.ActorNone, fmt.Errorf("send %s: %w", tmpl, err)
	}
	return actor, nil
}

type ActorBacklog struct {
	Waiting int `json:"waiting"`
	Overdue int `json:"overdue"`
}

// Pending reports how many submissions wait on each actor and how many of
// those are past the reminder threshold.
func (s *Scheduler) Pending(ctx context.Context) (map[domain.Actor]ActorBacklog, error) {
	subs, err := s.config.Store.ScanWaiting(ctx, domain.WaitingStatuses)
	if err != nil {
		return nil, fmt.Errorf("scan waiting submissions: %w", err)
	}
	now := s.config.Clock.Now()
	out := map[domain.Actor]ActorBacklog{
		domain.ActorLeader: {},
		domain.ActorCHM:    {},
		domain.ActorIT:     {},
	}
	for _, sub := range subs {
		actor := domain.WaitingActor(sub)
		if actor == domain.ActorNone {
			continue
		}
		b := out[actor]
		b.Waiting++
		if now.Sub(sub.UpdatedAt) >= s.config.Threshold {
			b.Overdue++
		}
		out[actor] = b
	}
	return out, nil
}

// Run ticks every Interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return errors.NotValidf("non-positive Interval")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.config.Clock.After(s.config.Interval):
			if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.config.Logger.Warningf("reminder tick failed: %v", err)
			}
		}
	}
}
