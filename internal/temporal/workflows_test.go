package temporal

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"offboarding-workflow/internal/reminder"
)

type activityTrace struct {
	mu           sync.Mutex
	startedOrder []string
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) started() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.startedOrder...)
}

var _ = Describe("ReminderSweepWorkflow", func() {
	var (
		env       *testsuite.TestWorkflowEnvironment
		sweeper   *fakeSweeper
		refresher *fakeRefresher
		trace     *activityTrace
	)

	BeforeEach(func() {
		var suite testsuite.WorkflowTestSuite
		env = suite.NewTestWorkflowEnvironment()
		sweeper = &fakeSweeper{summary: reminder.Summary{Leader: 2, IT: 1, Skipped: 4}}
		refresher = &fakeRefresher{}
		trace = &activityTrace{}

		acts := &Activities{Reminders: sweeper, Directory: refresher}
		env.RegisterWorkflow(ReminderSweepWorkflow)
		env.RegisterActivity(acts.RefreshDirectoryActivity)
		env.RegisterActivity(acts.SweepRemindersActivity)
		env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, _ converter.EncodedValues) {
			trace.recordStarted(info.ActivityType.Name)
		})
	})

	It("refreshes the directory and then sweeps", func() {
		env.ExecuteWorkflow(ReminderSweepWorkflow, SweepInput{RefreshDirectory: true})

		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())

		var result SweepResult
		Expect(env.GetWorkflowResult(&result)).To(Succeed())
		Expect(result.DirectoryRefreshed).To(BeTrue())
		Expect(result.Reminders).To(Equal(SweepRemindersOutput{Leader: 2, IT: 1, Skipped: 4}))
		Expect(trace.started()).To(Equal([]string{"RefreshDirectoryActivity", "SweepRemindersActivity"}))

		By("reporting the final phase through the status query")
		encoded, err := env.QueryWorkflow(SweepStatusQueryName)
		Expect(err).ToNot(HaveOccurred())
		var status SweepStatus
		Expect(encoded.Get(&status)).To(Succeed())
		Expect(status.Phase).To(Equal(SweepPhaseDone))
		Expect(status.Reminders.Total()).To(Equal(3))
	})

	It("skips the refresh when not asked for it", func() {
		env.ExecuteWorkflow(ReminderSweepWorkflow, SweepInput{})

		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())
		Expect(trace.started()).To(Equal([]string{"SweepRemindersActivity"}))
	})

	It("still sweeps with the cached directory when the refresh fails", func() {
		refresher.err = errors.New("mapping table locked")

		env.ExecuteWorkflow(ReminderSweepWorkflow, SweepInput{RefreshDirectory: true})

		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())
		var result SweepResult
		Expect(env.GetWorkflowResult(&result)).To(Succeed())
		Expect(result.DirectoryRefreshed).To(BeFalse())
		Expect(result.Reminders.Leader).To(Equal(2))
		Expect(sweeper.callCount()).To(Equal(1))
	})

	It("fails the run after the sweep retries are exhausted", func() {
		sweeper.err = errors.New("store unavailable")

		env.ExecuteWorkflow(ReminderSweepWorkflow, SweepInput{})

		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).To(HaveOccurred())
		Expect(sweeper.callCount()).To(Equal(3))
	})
})
