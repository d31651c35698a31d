//go:build system

package system_test

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"offboarding-workflow/internal/capability"
	"offboarding-workflow/internal/domain"
	appTemporal "offboarding-workflow/internal/temporal"
)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var (
		repoRoot string
		cfg      systemTestConfig
		api      *apiClient
		tokens   *capability.Service
		leader   string
	)

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		var err error
		repoRoot, err = findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services (including worker) are already running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForTemporal(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())
		Expect(applyMigration(repoRoot, cfg.PostgresDSN)).To(Succeed())

		api = newAPIClient(cfg)
		tokens, err = linkTokens(cfg.SigningSecret)
		Expect(err).ToNot(HaveOccurred())
		leader = fmt.Sprintf("System Leader %d", time.Now().UnixNano())
	})

	It("walks a resignation from submission to offboarded over HTTP", func() {
		By("uploading the leader mapping sheet like HR would")
		sheet := "Team Leader Name,Team Leader Email,Chinese Head Name,Chinese Head Email,Crm\n" +
			leader + ",leader@example.com,System Head,head@example.com,CRM-SYS\n"
		status, err := api.uploadMapping("leaders.csv", []byte(sheet))
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))

		By("opening the resignation")
		var created createResponse
		status, err = api.postJSON("/v1/submissions", true, map[string]any{
			"employee_name":    "System Employee",
			"employee_email":   "employee@example.com",
			"team_leader":      leader,
			"joining_date":     "2021-04-01",
			"last_working_day": time.Now().AddDate(0, 1, 0).Format(domain.DateLayout),
		}, &created)
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusCreated))
		Expect(created.SubmissionID).ToNot(BeEmpty())
		Expect(created.NextStep).To(Equal(domain.StepLeaderApproval))
		id := created.SubmissionID

		issue := func(step domain.Step) string {
			token, err := tokens.Issue(id, step, 0)
			Expect(err).ToNot(HaveOccurred())
			return token
		}

		By("approving as the team leader and refusing the replay")
		leaderToken := issue(domain.StepLeaderApproval)
		out, _, err := api.act(leaderToken, "approve", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(out.ResignationStatus).To(Equal(domain.StatusLeaderApproved))
		_, status, err = api.act(leaderToken, "approve", "")
		Expect(err).To(HaveOccurred())
		Expect(status).To(Equal(http.StatusGone))

		By("approving as the department head")
		out, _, err = api.act(issue(domain.StepCHMApproval), "approve", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(out.NextStep).To(Equal(domain.StepExitInterview))

		By("recording the exit interview as HR")
		interviewAt := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
		Expect(api.staffTransition(id, domain.TransitionScheduleInterview, domain.Payload{
			Notes:    "Friday 10:00",
			Schedule: &domain.InterviewSchedule{At: interviewAt, Location: "Room 4", Type: domain.InterviewTypeInPerson},
		})).To(Equal(http.StatusOK))
		Expect(api.staffTransition(id, domain.TransitionInterviewDone, domain.Payload{
			Result: &domain.InterviewResult{Feedback: "wants remote work", Rating: 4},
		})).To(Equal(http.StatusOK))

		By("clearing assets as IT")
		out, _, err = api.act(issue(domain.StepITClearance), "ok", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(out.ResignationStatus).To(Equal(domain.StatusAssetsRecorded))

		By("closing the remaining HR steps")
		Expect(api.staffTransition(id, domain.TransitionMedicalMark, domain.Payload{})).To(Equal(http.StatusOK))
		Expect(api.staffTransition(id, domain.TransitionFinalize, domain.Payload{})).To(Equal(http.StatusOK))

		sub, err := api.submission(id)
		Expect(err).ToNot(HaveOccurred())
		Expect(sub.Submission.ResignationStatus).To(Equal(domain.StatusOffboarded))
		Expect(sub.Submission.ExitInterviewStatus).To(Equal(domain.InterviewDone))
		Expect(sub.Submission.ExitInterview.ScheduledAt).ToNot(BeNil())
		Expect(sub.Submission.ExitInterview.ScheduledAt.Equal(interviewAt)).To(BeTrue())
		Expect(sub.Submission.ExitInterview.Location).To(Equal("Room 4"))
		Expect(sub.Submission.ExitInterview.Rating).To(Equal(4))
		Expect(sub.Submission.ExitInterview.CompletedAt).ToNot(BeNil())
		Expect(sub.Submission.ITSupportReply).To(Equal(domain.ReplyApproved))
		Expect(sub.Submission.MedicalCardCollected).To(BeTrue())
		Expect(sub.Submission.VendorMailSent).To(BeTrue())
		Expect(sub.NextStep).To(Equal(domain.StepNone))

		By("verifying every notification attempt landed in the email log")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		templates, err := fetchStringRows(db, `SELECT template FROM email_log WHERE submission_id = $1 ORDER BY id`, id)
		Expect(err).ToNot(HaveOccurred())
		Expect(templates).To(ContainElements(
			"leader_approval_request",
			"chm_approval_request",
			"it_clearance_request",
			"hr_status_update",
			"employee_status_update",
		))
	})

	It("keeps exactly one reminder sweep scheduled in Temporal", func() {
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepTimeout)
		defer cancel()

		desc, err := temporalClient.DescribeWorkflowExecution(ctx, cfg.ReminderWorkflowID, "")
		Expect(err).ToNot(HaveOccurred())
		Expect(desc.GetWorkflowExecutionInfo().GetType().GetName()).To(Equal(appTemporal.ReminderSweepWorkflowName))

		By("waiting for a cron run to sweep reminders")
		var trace activityTrace
		Eventually(func() []string {
			runs, err := temporalClient.ListWorkflow(ctx, listClosedSweeps(cfg.ReminderWorkflowID))
			Expect(err).ToNot(HaveOccurred())
			for _, info := range runs.GetExecutions() {
				if info.GetStatus() != enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED && info.GetStatus() != enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW {
					continue
				}
				trace, err = collectActivityTrace(ctx, temporalClient, cfg.ReminderWorkflowID, info.GetExecution().GetRunId())
				Expect(err).ToNot(HaveOccurred())
				return trace.CompletedOrder
			}
			return nil
		}, cfg.SweepTimeout, 5*time.Second).Should(ContainElement("SweepRemindersActivity"))

		_, ok := trace.Outputs["SweepRemindersActivity"].(appTemporal.SweepRemindersOutput)
		Expect(ok).To(BeTrue())
	})
})
