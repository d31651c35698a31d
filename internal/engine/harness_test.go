package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/loggo"
	"github.com/stretchr/testify/require"

	"offboarding-workflow/internal/capability"
	"offboarding-workflow/internal/directory"
	"offboarding-workflow/internal/domain"
	"offboarding-workflow/internal/notify"
	"offboarding-workflow/internal/storage"
)

var epoch = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type sentMessage struct {
	Template notify.Template
	To       domain.Recipient
	Data     notify.Data
}

type fakeDispatcher struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[notify.Template]error
}

func (f *fakeDispatcher) Send(_ context.Context, template notify.Template, to domain.Recipient, data notify.Data) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[template]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{Template: template, To: to, Data: data})
	return nil
}

func (f *fakeDispatcher) templates() []notify.Template {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.Template, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Template)
	}
	return out
}

// lastLinkToken extracts the token from the newest message carrying a link.
func (f *fakeDispatcher) lastLinkToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Data.Link == "" {
			continue
		}
		u, err := url.Parse(f.sent[i].Data.Link)
		if err != nil {
			return ""
		}
		return u.Query().Get("token")
	}
	return ""
}

func (f *fakeDispatcher) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type flakyStore struct {
	*storage.MemoryStore
	casErr error
}

func (s *flakyStore) CompareAndSetStatus(ctx context.Context, expect domain.Precondition, next domain.Submission) (bool, error) {
	if s.casErr != nil {
		return false, s.casErr
	}
	return s.MemoryStore.CompareAndSetStatus(ctx, expect, next)
}

type harness struct {
	engine *Engine
	store  *flakyStore
	tokens *capability.Service
	clock  *testclock.Clock
	mail   *fakeDispatcher
}

func newHarness(t require.TestingT) *harness {
	clk := testclock.NewClock(epoch)
	mem := storage.NewMemoryStore()
	store := &flakyStore{MemoryStore: mem}

	tokens, err := capability.NewService(capability.Config{
		Secret: []byte("test-secret"),
		TTL:    24 * time.Hour,
		Clock:  clk,
		Logger: loggo.GetLogger("offboarding.capability.test"),
	})
	require.NoError(t, err)

	dir := directory.New(mem, loggo.GetLogger("offboarding.directory.test"))
	require.NoError(t, dir.Replace(context.Background(), []domain.LeaderMapping{{
		TeamLeaderName:   "Ana Ruiz",
		TeamLeaderEmail:  "ana@example.com",
		ChineseHeadName:  "Li Wei",
		ChineseHeadEmail: "li.wei@example.com",
	}}))

	mail := &fakeDispatcher{failFor: map[notify.Template]error{}}
	seq := 0
	eng, err := New(Config{
		Store:      store,
		Tokens:     tokens,
		Dispatcher: mail,
		Recipients: directory.Router{Directory: dir, HREmail: "hr@example.com", ITEmail: "it@example.com", DefaultLocale: "en"},
		Clock:      clk,
		Logger:     loggo.GetLogger("offboarding.engine.test"),
		BaseURL:    "https://hr.example.com/",
		NewID: func() string {
			seq++
			return fmt.Sprintf("sub-%d", seq)
		},
	})
	require.NoError(t, err)
	return &harness{engine: eng, store: store, tokens: tokens, clock: clk, mail: mail}
}

func employee() domain.EmployeeInfo {
	return domain.EmployeeInfo{
		EmployeeName:   "Wei Zhang",
		EmployeeEmail:  "wei.zhang@example.com",
		TeamLeader:     "Ana Ruiz",
		JoiningDate:    time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC),
		LastWorkingDay: time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
	}
}

// advanceTo walks a fresh submission along the happy path up to status.
func (h *harness) advanceTo(t require.TestingT, status domain.ResignationStatus) (string, string) {
	ctx := context.Background()
	id, token, err := h.engine.Create(ctx, employee())
	require.NoError(t, err)

	path := []struct {
		reach domain.ResignationStatus
		do    func() error
	}{
		{domain.StatusLeaderApproved, func() error {
			_, err := h.engine.ApplyAction(ctx, token, "approve", "")
			return err
		}},
		{domain.StatusCHMApproved, func() error {
			_, err := h.engine.ApplyAction(ctx, h.mail.lastLinkToken(), "approve", "")
			return err
		}},
		{domain.StatusExitDone, func() error {
			_, err := h.engine.ApplyStaffAction(ctx, id, domain.TransitionInterviewDone, domain.Payload{})
			return err
		}},
		{domain.StatusAssetsRecorded, func() error {
			_, err := h.engine.ApplyAction(ctx, h.mail.lastLinkToken(), "ok", "")
			return err
		}},
		{domain.StatusMedicalChecked, func() error {
			_, err := h.engine.ApplyStaffAction(ctx, id, domain.TransitionMedicalMark, domain.Payload{})
			return err
		}},
		{domain.StatusOffboarded, func() error {
			_, err := h.engine.ApplyStaffAction(ctx, id, domain.TransitionFinalize, domain.Payload{})
			return err
		}},
	}
	current := domain.StatusSubmitted
	for _, p := range path {
		if current == status {
			break
		}
		h.clock.Advance(time.Minute)
		require.NoError(t, p.do())
		current = p.reach
	}
	if current != status {
		require.NoError(t, errors.New("status not on the happy path: "+string(status)))
	}
	return id, h.mail.lastLinkToken()
}
