package temporal

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

type SweepSchedule struct {
	WorkflowID       string
	TaskQueue        string
	CronSchedule     string
	RefreshDirectory bool
}

// StartReminderSweep starts the cron sweep. It reports false without error
// when a sweep with the same workflow ID is already running.
func StartReminderSweep(ctx context.Context, starter WorkflowStarter, schedule SweepSchedule) (bool, error) {
	if schedule.WorkflowID == "" || schedule.TaskQueue == "" || schedule.CronSchedule == "" {
		return false, fmt.Errorf("workflow id, task queue and cron schedule are required")
	}
	_, err := starter.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    schedule.WorkflowID,
		TaskQueue:             schedule.TaskQueue,
		CronSchedule:          schedule.CronSchedule,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, ReminderSweepWorkflowName, SweepInput{RefreshDirectory: schedule.RefreshDirectory})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return false, nil
		}
		return false, fmt.Errorf("start reminder sweep %s: %w", schedule.WorkflowID, err)
	}
	return true, nil
}
