package engine

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"offboarding-workflow/internal/domain"
)

var _ = Describe("Offboarding scenarios", func() {
	var (
		h   *harness
		ctx context.Context
	)

	BeforeEach(func() {
		h = newHarness(GinkgoT())
		ctx = context.Background()
	})

	It("closes the submission when the department head rejects and refuses every later link", func() {
		id, leaderToken, err := h.engine.Create(ctx, employee())
		Expect(err).NotTo(HaveOccurred())

		out, err := h.engine.ApplyAction(ctx, leaderToken, "approve", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Submission.ResignationStatus).To(Equal(domain.StatusLeaderApproved))

		chmToken := h.mail.lastLinkToken()
		out, err = h.engine.ApplyAction(ctx, chmToken, "reject", "budget freeze")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Submission.ResignationStatus).To(Equal(domain.StatusCHMRejected))
		Expect(out.Submission.ChineseHeadNotes).To(Equal("budget freeze"))
		Expect(out.Submission.ResignationStatus.IsTerminal()).To(BeTrue())

		for _, token := range []string{leaderToken, chmToken} {
			for _, decision := range []string{"approve", "reject"} {
				_, err = h.engine.ApplyAction(ctx, token, decision, "again")
				Expect(err).To(MatchError(domain.ErrInvalidTransition))
			}
		}

		for _, step := range []domain.Step{domain.StepLeaderApproval, domain.StepCHMApproval, domain.StepITClearance} {
			fresh, err := h.tokens.Issue(id, step, 0)
			Expect(err).NotTo(HaveOccurred())
			_, err = h.engine.ApplyAction(ctx, fresh, "approve", "")
			Expect(err).To(MatchError(domain.ErrInvalidTransition))
		}
	})

	It("skips the exit interview and lets IT clear the assets", func() {
		id, _ := h.advanceTo(GinkgoT(), domain.StatusCHMApproved)

		out, err := h.engine.ApplyStaffAction(ctx, id, domain.TransitionSkipInterview, domain.Payload{})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Submission.ResignationStatus).To(Equal(domain.StatusExitDone))
		Expect(out.Submission.ExitInterviewStatus).To(Equal(domain.InterviewSkipped))

		itToken := h.mail.lastLinkToken()
		Expect(itToken).NotTo(BeEmpty())
		out, err = h.engine.ApplyAction(ctx, itToken, "ok", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Submission.ResignationStatus).To(Equal(domain.StatusAssetsRecorded))
		Expect(out.Submission.ITSupportReply).To(Equal(domain.ReplyApproved))
	})
})
