package directory

import (
	"errors"
	"fmt"

	"offboarding-workflow/internal/domain"
)

var ErrNoRecipient = errors.New("no recipient for actor")

// Router resolves who receives mail for an actor of a submission.
type Router struct {
	Directory     *Directory
	HREmail       string
	ITEmail       string
	DefaultLocale string
}

func (r Router) Resolve(sub domain.Submission, actor domain.Actor) (domain.Recipient, error) {
	rcpt := domain.Recipient{Locale: r.DefaultLocale}
	switch actor {
	case domain.ActorLeader, domain.ActorCHM:
		m, ok := r.lookup(sub.TeamLeader)
		if !ok {
			return domain.Recipient{}, fmt.Errorf("%w: team leader %q is not in the directory", ErrNoRecipient, sub.TeamLeader)
		}
		if actor == domain.ActorLeader {
			rcpt.Name, rcpt.Email = m.TeamLeaderName, m.TeamLeaderEmail
		} else {
			rcpt.Name, rcpt.Email = m.ChineseHeadName, m.ChineseHeadEmail
		}
	case domain.ActorIT:
		rcpt.Name, rcpt.Email = "IT Support", r.ITEmail
	case domain.ActorHR:
		rcpt.Name, rcpt.Email = "HR", r.HREmail
	case domain.ActorEmployee:
		rcpt.Name, rcpt.Email = sub.EmployeeName, sub.EmployeeEmail
	default:
		return domain.Recipient{}, fmt.Errorf("%w: %q", ErrNoRecipient, actor)
	}
	if rcpt.Email == "" {
		return domain.Recipient{}, fmt.Errorf("%w: %s has no email configured", ErrNoRecipient, actor)
	}
	return rcpt, nil
}

// lookup accepts either the leader's name or the CRM code of their team.
func (r Router) lookup(teamLeader string) (domain.LeaderMapping, bool) {
	if m, ok := r.Directory.Lookup(teamLeader); ok {
		return m, true
	}
	return r.Directory.LookupCRM(teamLeader)
}
