package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"offboarding-workflow/internal/reminder"
)

type ReminderSweeper interface {
	Tick(ctx context.Context) (reminder.Summary, error)
}

type DirectoryRefresher interface {
	Refresh(ctx context.Context) error
}

type Activities struct {
	Reminders ReminderSweeper
	Directory DirectoryRefresher
}

type SweepRemindersOutput struct {
	Leader  int
	CHM     int
	IT      int
	Skipped int
	Errors  int
}

func (o SweepRemindersOutput) Total() int {
	return o.Leader + o.CHM + o.IT
}

// RefreshDirectoryActivity reloads the worker's leader directory so reminders
// route with the latest uploaded mapping.
func (a *Activities) RefreshDirectoryActivity(ctx context.Context) error {
	if a.Directory == nil {
		return nil
	}
	if err := a.Directory.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh directory: %w", err)
	}
	return nil
}

func (a *Activities) SweepRemindersActivity(ctx context.Context) (SweepRemindersOutput, error) {
	summary, err := a.Reminders.Tick(ctx)
	if err != nil {
		return SweepRemindersOutput{}, fmt.Errorf("sweep reminders: %w", err)
	}
	out := SweepRemindersOutput{
		Leader:  summary.Leader,
		CHM:     summary.CHM,
		IT:      summary.IT,
		Skipped: summary.Skipped,
		Errors:  summary.Errors,
	}
	activity.GetLogger(ctx).Info("reminder sweep finished", "sent", out.Total(), "skipped", out.Skipped, "errors", out.Errors)
	return out, nil
}
