package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/notify"
)

// ReminderScheduler periodically scans for overdue tasks and fans out a
// deadline reminder per task. Reminders ride the same router and
// preference filtering as every other event kind.
type ReminderScheduler struct {
	tasks  *TaskService
	logger Logger
	cron   *cron.Cron
}

func NewReminderScheduler(tasks *TaskService, logger Logger) *ReminderScheduler {
	return &ReminderScheduler{
		tasks:  tasks,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start schedules the overdue scan with the given cron spec (e.g.
// "0 9 * * *" for a daily 09:00 run) and starts the scheduler.
func (r *ReminderScheduler) Start(spec string) error {
	if _, err := r.cron.AddFunc(spec, func() {
		if err := r.RunOnce(context.Background()); err != nil {
			r.logger.Errorf("Deadline reminder scan failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule '%s': %v", spec, err)
	}
	r.cron.Start()
	r.logger.Infof("Deadline reminder scheduler started (%s)", spec)
	return nil
}

// Stop halts the scheduler, waiting for a running scan to finish.
func (r *ReminderScheduler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// RunOnce performs a single overdue scan and dispatches one reminder per
// overdue task.
func (r *ReminderScheduler) RunOnce(ctx context.Context) error {
	overdue, err := r.tasks.Overdue(ctx)
	if err != nil {
		return fmt.Errorf("failed to list overdue tasks: %v", err)
	}
	if len(overdue) == 0 {
		return nil
	}

	g, err := r.tasks.buildGraph(r.tasks.store)
	if err != nil {
		return err
	}
	for _, task := range overdue {
		statusLabel := task.StatusID
		if st, getErr := g.Get(task.StatusID); getErr == nil {
			statusLabel = st.Label
		}
		vars := r.tasks.baseVars(task)
		vars["status"] = statusLabel
		if task.Deadline != nil {
			vars["deadline"] = task.Deadline.Format("2006-01-02")
		}
		r.tasks.dispatch(ctx, notify.Event{
			Type:   models.DeadlineReminderEvent,
			TaskID: task.ID,
			Vars:   vars,
		})
	}
	r.logger.Infof("Deadline reminder scan: %d overdue tasks notified", len(overdue))
	return nil
}
