package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidDetails marks a transition whose payload is incomplete or out of range.
var ErrInvalidDetails = errors.New("invalid transition details")

type InterviewType string

const (
	InterviewTypeUnset    InterviewType = ""
	InterviewTypeInPerson InterviewType = "in_person"
	InterviewTypeVirtual  InterviewType = "virtual"
	InterviewTypePhone    InterviewType = "phone"
)

func ParseInterviewType(v string) (InterviewType, error) {
	t := InterviewType(strings.TrimSpace(v))
	switch t {
	case InterviewTypeUnset, InterviewTypeInPerson, InterviewTypeVirtual, InterviewTypePhone:
		return t, nil
	}
	return "", fmt.Errorf("unknown interview type %q", v)
}

func (t *InterviewType) UnmarshalText(b []byte) error {
	parsed, err := ParseInterviewType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

const (
	MinInterviewRating = 1
	MaxInterviewRating = 5
)

// ExitInterview is the record HR keeps about the exit interview. It is filled
// by schedule_interview and completed by interview_done.
type ExitInterview struct {
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty"`
	Location    string        `json:"location,omitempty"`
	Interviewer string        `json:"interviewer,omitempty"`
	Type        InterviewType `json:"type,omitempty"`
	Feedback    string        `json:"feedback,omitempty"`
	// Rating is 0 when HR gave none, otherwise 1 to 5.
	Rating      int        `json:"rating,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// InterviewSchedule is the payload of schedule_interview.
type InterviewSchedule struct {
	At          time.Time     `json:"scheduled_at"`
	Location    string        `json:"location,omitempty"`
	Interviewer string        `json:"interviewer,omitempty"`
	Type        InterviewType `json:"type,omitempty"`
}

// InterviewResult is the optional payload of interview_done.
type InterviewResult struct {
	Feedback string `json:"feedback,omitempty"`
	Rating   int    `json:"rating,omitempty"`
}

// AssetChecklist records what IT collected when clearing the employee.
type AssetChecklist struct {
	Laptop     bool   `json:"laptop"`
	Mouse      bool   `json:"mouse"`
	Headphones bool   `json:"headphones"`
	Others     string `json:"others,omitempty"`
}

func (s *InterviewSchedule) validate() error {
	if s == nil || s.At.IsZero() {
		return fmt.Errorf("%w: exit interview needs a scheduled time", ErrInvalidDetails)
	}
	if _, err := ParseInterviewType(string(s.Type)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDetails, err)
	}
	return nil
}

func (r *InterviewResult) validate() error {
	if r == nil || r.Rating == 0 {
		return nil
	}
	if r.Rating < MinInterviewRating || r.Rating > MaxInterviewRating {
		return fmt.Errorf("%w: rating must be between %d and %d, got %d", ErrInvalidDetails, MinInterviewRating, MaxInterviewRating, r.Rating)
	}
	return nil
}

func (e *ExitInterview) schedule(s InterviewSchedule) {
	at := s.At
	e.ScheduledAt = &at
	e.Location = strings.TrimSpace(s.Location)
	e.Interviewer = strings.TrimSpace(s.Interviewer)
	e.Type = s.Type
}

func (e *ExitInterview) complete(r *InterviewResult, now time.Time) {
	if r != nil {
		e.Feedback = strings.TrimSpace(r.Feedback)
		e.Rating = r.Rating
	}
	done := now
	e.CompletedAt = &done
}

// InterviewAgenda splits submissions waiting on their exit interview.
type InterviewAgenda struct {
	// Upcoming are scheduled interviews at or after now, soonest first.
	Upcoming []Submission `json:"upcoming"`
	// Overdue are scheduled interviews whose time has passed without an outcome.
	Overdue []Submission `json:"overdue"`
	// NeedsScheduling have no interview booked, including no-shows.
	NeedsScheduling []Submission `json:"needs_scheduling"`
}

// BuildInterviewAgenda sorts chm_approved submissions by where their exit
// interview stands. Submissions in any other status are ignored.
func BuildInterviewAgenda(subs []Submission, now time.Time) InterviewAgenda {
	agenda := InterviewAgenda{
		Upcoming:        make([]Submission, 0),
		Overdue:         make([]Submission, 0),
		NeedsScheduling: make([]Submission, 0),
	}
	for _, sub := range subs {
		if sub.ResignationStatus != StatusCHMApproved {
			continue
		}
		switch {
		case sub.ExitInterviewStatus == InterviewScheduled && sub.ExitInterview.ScheduledAt != nil:
			if sub.ExitInterview.ScheduledAt.Before(now) {
				agenda.Overdue = append(agenda.Overdue, sub)
			} else {
				agenda.Upcoming = append(agenda.Upcoming, sub)
			}
		default:
			agenda.NeedsScheduling = append(agenda.NeedsScheduling, sub)
		}
	}
	byTime := func(list []Submission) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].ExitInterview.ScheduledAt.Before(*list[j].ExitInterview.ScheduledAt)
		})
	}
	byTime(agenda.Upcoming)
	byTime(agenda.Overdue)
	sort.SliceStable(agenda.NeedsScheduling, func(i, j int) bool {
		return agenda.NeedsScheduling[i].UpdatedAt.Before(agenda.NeedsScheduling[j].UpdatedAt)
	})
	return agenda
}
