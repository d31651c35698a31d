package temporal

import (
	"go.temporal.io/sdk/workflow"
)

const ReminderSweepWorkflowName = "ReminderSweepWorkflow"

type SweepInput struct {
	RefreshDirectory bool
}

type SweepResult struct {
	DirectoryRefreshed bool
	Reminders          SweepRemindersOutput
}

// ReminderSweepWorkflow runs one reminder pass. It is started with a cron
// schedule under a fixed workflow ID so only one sweep is open at a time.
func ReminderSweepWorkflow(ctx workflow.Context, input SweepInput) (SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	status := SweepStatus{Phase: SweepPhaseSweeping}
	if err := workflow.SetQueryHandler(ctx, SweepStatusQueryName, func() (SweepStatus, error) {
		return status, nil
	}); err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	if input.RefreshDirectory {
		status.Phase = SweepPhaseRefreshing
		err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyRefreshDirectory), (*Activities).RefreshDirectoryActivity).Get(ctx, nil)
		if err != nil {
			// A stale directory still routes most reminders correctly.
			logger.Warn("directory refresh failed, sweeping with cached mapping", "error", err)
		} else {
			result.DirectoryRefreshed = true
		}
		status.Phase = SweepPhaseSweeping
	}

	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicySweepReminders), (*Activities).SweepRemindersActivity).Get(ctx, &result.Reminders); err != nil {
		status.Phase = SweepPhaseFailed
		return SweepResult{}, err
	}

	status.Phase = SweepPhaseDone
	status.Reminders = result.Reminders
	return result, nil
}
