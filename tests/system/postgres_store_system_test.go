//go:build system

package system_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"offboarding-workflow/internal/domain"
	"offboarding-workflow/internal/storage"
)

var _ = Describe("Postgres submission store under contention", Ordered, func() {
	const racers = 8

	var (
		cfg   systemTestConfig
		store *storage.PostgresStore
		db    *sql.DB
		ids   []string
	)

	seed := func(status domain.ResignationStatus, updatedAt time.Time) domain.Submission {
		id := fmt.Sprintf("race-%d", time.Now().UnixNano())
		sub := domain.NewSubmission(id, domain.EmployeeInfo{
			EmployeeName:   "Race Employee",
			EmployeeEmail:  "race@example.com",
			TeamLeader:     "Race Leader",
			JoiningDate:    time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC),
			LastWorkingDay: time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
		}, updatedAt)
		sub.ResignationStatus = status
		Expect(store.Create(context.Background(), sub)).To(Succeed())
		ids = append(ids, id)
		return sub
	}

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}
		cfg = loadSystemTestConfig()
		repoRoot, err := findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(applyMigration(repoRoot, cfg.PostgresDSN)).To(Succeed())

		store, err = storage.NewPostgresStore(cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterAll(func() {
		if db != nil {
			for _, id := range ids {
				_, _ = db.Exec(`DELETE FROM submissions WHERE id = $1`, id)
			}
			_ = db.Close()
		}
		if store != nil {
			_ = store.Close()
		}
	})

	It("lets exactly one of several concurrent transitions commit", func() {
		now := time.Now().UTC().Truncate(time.Microsecond)
		sub := seed(domain.StatusSubmitted, now)
		expect := domain.PreconditionOf(sub)

		var wins atomic.Int32
		winner := make(chan domain.ResignationStatus, racers)
		errs := make(chan error, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				t, payload := domain.TransitionLeaderApprove, domain.Payload{}
				if i%2 == 1 {
					t, payload = domain.TransitionLeaderReject, domain.Payload{Notes: "budget freeze"}
				}
				next, err := domain.Apply(sub, t, payload, now.Add(time.Second))
				if err != nil {
					errs <- err
					return
				}
				ok, err := store.CompareAndSetStatus(context.Background(), expect, next)
				if err != nil {
					errs <- err
					return
				}
				if ok {
					wins.Add(1)
					winner <- next.ResignationStatus
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		close(winner)

		for err := range errs {
			Expect(err).ToNot(HaveOccurred())
		}
		Expect(wins.Load()).To(Equal(int32(1)))
		won := <-winner

		stored, err := store.Get(context.Background(), sub.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(stored.ResignationStatus).To(Equal(won))
	})

	It("keys the exit interview compare-and-set on the interview sub-state", func() {
		now := time.Now().UTC().Truncate(time.Microsecond)
		sub := seed(domain.StatusCHMApproved, now)
		expect := domain.PreconditionOf(sub)

		var wins atomic.Int32
		booked := make(chan time.Time, racers)
		errs := make(chan error, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				at := now.Add(time.Duration(24+i) * time.Hour)
				next, err := domain.Apply(sub, domain.TransitionScheduleInterview, domain.Payload{
					Schedule: &domain.InterviewSchedule{At: at, Location: fmt.Sprintf("Room %d", i)},
				}, now.Add(time.Second))
				if err != nil {
					errs <- err
					return
				}
				ok, err := store.CompareAndSetStatus(context.Background(), expect, next)
				if err != nil {
					errs <- err
					return
				}
				if ok {
					wins.Add(1)
					booked <- at
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		close(booked)

		for err := range errs {
			Expect(err).ToNot(HaveOccurred())
		}
		Expect(wins.Load()).To(Equal(int32(1)))
		at := <-booked

		stored, err := store.Get(context.Background(), sub.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(stored.ExitInterviewStatus).To(Equal(domain.InterviewScheduled))
		Expect(stored.ExitInterview.ScheduledAt).ToNot(BeNil())
		Expect(stored.ExitInterview.ScheduledAt.Equal(at)).To(BeTrue())
	})

	It("hands the reminder slot to exactly one concurrent claimer per window", func() {
		now := time.Now().UTC().Truncate(time.Microsecond)
		threshold := 24 * time.Hour
		sub := seed(domain.StatusSubmitted, now.Add(-30*time.Hour))

		var wins atomic.Int32
		errs := make(chan error, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.ConditionalSetLastReminded(context.Background(), sub.ID, domain.StatusSubmitted, now, threshold)
				if err != nil {
					errs <- err
					return
				}
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			Expect(err).ToNot(HaveOccurred())
		}
		Expect(wins.Load()).To(Equal(int32(1)))

		ok, err := store.ConditionalSetLastReminded(context.Background(), sub.ID, domain.StatusSubmitted, now.Add(23*time.Hour), threshold)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())

		ok, err = store.ConditionalSetLastReminded(context.Background(), sub.ID, domain.StatusSubmitted, now.Add(threshold), threshold)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = store.ConditionalSetLastReminded(context.Background(), sub.ID, domain.StatusLeaderApproved, now.Add(3*threshold), threshold)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse(), "the claim is bound to the status the scheduler saw")
	})
})
