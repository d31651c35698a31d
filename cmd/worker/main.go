package main

import (
	"context"
	"log"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"offboarding-workflow/internal/app"
	"offboarding-workflow/internal/config"
	appTemporal "offboarding-workflow/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := app.ConfigureLogging(cfg.LogConfig); err != nil {
		log.Fatalf("%v", err)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("assemble services: %v", err)
	}
	defer a.Close(context.Background())

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("connect temporal: %v", err)
	}
	defer temporalClient.Close()

	activities := &appTemporal.Activities{
		Reminders: a.Scheduler,
		Directory: a.Directory,
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.ReminderSweepWorkflow, workflow.RegisterOptions{Name: appTemporal.ReminderSweepWorkflowName})
	w.RegisterActivity(activities.RefreshDirectoryActivity)
	w.RegisterActivity(activities.SweepRemindersActivity)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	started, err := appTemporal.StartReminderSweep(startCtx, temporalClient, appTemporal.SweepSchedule{
		WorkflowID:       cfg.ReminderWorkflowID,
		TaskQueue:        cfg.TemporalTaskQueue,
		CronSchedule:     cfg.ReminderCron,
		RefreshDirectory: true,
	})
	cancel()
	switch {
	case err != nil:
		log.Fatalf("start reminder sweep: %v", err)
	case started:
		log.Printf("started reminder sweep workflow_id=%s cron=%q", cfg.ReminderWorkflowID, cfg.ReminderCron)
	default:
		log.Printf("reminder sweep already running workflow_id=%s", cfg.ReminderWorkflowID)
	}

	log.Printf("worker running on task queue %s", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker stopped with error: %v", err)
	}
}
