package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/MWHEBA/mwheba-tasks-sub000/internal/log"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/notify"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/service"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/storage"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/workflow"
)

type recordingTransport struct {
	mu      sync.Mutex
	sent    []string // phones in delivery order
	failAll bool
}

func (r *recordingTransport) Send(ctx context.Context, phone, apiKey, text string) error {
	if r.failAll {
		return errors.New("gateway unreachable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, phone)
	return nil
}

func (r *recordingTransport) phones() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	copy(out, r.sent)
	return out
}

type fixture struct {
	store     storage.Store
	transport *recordingTransport
	tasks     *service.TaskService
	statuses  *service.StatusService
	settings  *service.SettingsService
}

func newFixture(t *testing.T) *fixture {
	store := storage.NewMockStore()
	transport := &recordingTransport{}
	logger := log.GetLogger()
	router := notify.NewRouter(transport, logger)
	f := &fixture{
		store:     store,
		transport: transport,
		tasks:     service.NewTaskService(store, router, nil, logger),
		statuses:  service.NewStatusService(store, logger),
		settings:  service.NewSettingsService(store, router, logger),
	}

	seed := []models.Status{
		{ID: "pending", Label: "Pending", OrderIndex: 0, IsDefault: true, AllowedNext: []string{"in_design"}},
		{ID: "in_design", Label: "In Design", OrderIndex: 1, AllowedNext: []string{"review"}},
		{ID: "review", Label: "Review", OrderIndex: 2, AllowedNext: []string{"in_design", "done"}},
		{ID: "done", Label: "Done", OrderIndex: 3, IsFinished: true},
	}
	for _, s := range seed {
		assert.NoError(t, store.SaveStatus(s))
	}
	return f
}

func (f *fixture) addRecipient(t *testing.T, rec models.Recipient) {
	rec.Enabled = true
	if rec.APIKey == "" {
		rec.APIKey = "key-" + rec.ID
	}
	assert.NoError(t, f.store.SaveRecipient(rec))
}

func (f *fixture) createTask(t *testing.T, title string, parentID *string) models.Task {
	task, err := f.tasks.CreateTask(context.Background(), service.CreateTaskInput{
		Title:    title,
		ClientID: "client-1",
		ParentID: parentID,
	})
	assert.NoError(t, err)
	return task
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("SeedsDefaultStatus", func(t *testing.T) {
		f := newFixture(t)
		task := f.createTask(t, "Ramadan campaign", nil)
		assert.Equal(t, "pending", task.StatusID)
		assert.NotEmpty(t, task.ID)

		history, err := f.tasks.ListActivity(ctx, task.ID)
		assert.NoError(t, err)
		assert.Len(t, history, 1)
		assert.Equal(t, models.TaskCreatedActivity, history[0].Type)
	})

	t.Run("RejectsUnknownExplicitStatus", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.tasks.CreateTask(ctx, service.CreateTaskInput{Title: "x", StatusID: "nope"})
		var invalid *workflow.InvalidStatusError
		assert.ErrorAs(t, err, &invalid)

		tasks, _ := f.tasks.ListTasks(ctx)
		assert.Empty(t, tasks, "nothing persisted on failure")
	})

	t.Run("RejectsEmptyTitle", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.tasks.CreateTask(ctx, service.CreateTaskInput{})
		assert.Error(t, err)
	})

	t.Run("NotifiesRecipients", func(t *testing.T) {
		f := newFixture(t)
		f.addRecipient(t, models.Recipient{ID: "r1", Name: "Ahmed", Phone: "100"})
		f.createTask(t, "New banner", nil)
		assert.Equal(t, []string{"100"}, f.transport.phones())

		logs, err := f.store.ListNotificationLogs("")
		assert.NoError(t, err)
		assert.Len(t, logs, 1)
		assert.True(t, logs[0].Success)
		assert.Equal(t, models.NewProjectEvent, logs[0].TemplateType)
	})

	t.Run("SubtaskUsesSubtaskEvent", func(t *testing.T) {
		f := newFixture(t)
		root := f.createTask(t, "Root", nil)
		f.addRecipient(t, models.Recipient{ID: "r1", Name: "A", Phone: "100"})
		f.createTask(t, "Item", &root.ID)

		logs, _ := f.store.ListNotificationLogs("")
		assert.Len(t, logs, 1)
		assert.Equal(t, models.NewSubtaskEvent, logs[0].TemplateType)
	})
}

func TestChangeStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("LegalTransitionPersists", func(t *testing.T) {
		f := newFixture(t)
		task := f.createTask(t, "Banner", nil)

		updated, err := f.tasks.ChangeStatus(ctx, task.ID, "in_design", "")
		assert.NoError(t, err)
		assert.Equal(t, "in_design", updated.StatusID)

		stored, err := f.tasks.GetTask(ctx, task.ID)
		assert.NoError(t, err)
		assert.Equal(t, "in_design", stored.StatusID)

		history, _ := f.tasks.ListActivity(ctx, task.ID)
		assert.Len(t, history, 2)
		assert.Equal(t, models.StatusChangeActivity, history[1].Type)
		assert.Equal(t, "pending", history[1].Details["oldStatus"])
		assert.Equal(t, "in_design", history[1].Details["newStatus"])
	})

	t.Run("IllegalTransitionChangesNothing", func(t *testing.T) {
		f := newFixture(t)
		task := f.createTask(t, "Banner", nil)

		_, err := f.tasks.ChangeStatus(ctx, task.ID, "done", "")
		var illegal *workflow.IllegalTransitionError
		assert.ErrorAs(t, err, &illegal)
		assert.Equal(t, "pending", illegal.From)
		assert.Equal(t, "done", illegal.To)

		stored, _ := f.tasks.GetTask(ctx, task.ID)
		assert.Equal(t, "pending", stored.StatusID)
		history, _ := f.tasks.ListActivity(ctx, task.ID)
		assert.Len(t, history, 1, "no status-change entry appended")
	})

	t.Run("FinishedTaskIsFrozen", func(t *testing.T) {
		f := newFixture(t)
		task := f.createTask(t, "Banner", nil)
		for _, next := range []string{"in_design", "review", "done"} {
			_, err := f.tasks.ChangeStatus(ctx, task.ID, next, "")
			assert.NoError(t, err)
		}
		_, err := f.tasks.ChangeStatus(ctx, task.ID, "pending", "")
		var illegal *workflow.IllegalTransitionError
		assert.ErrorAs(t, err, &illegal)
	})

	t.Run("UnknownTargetStatus", func(t *testing.T) {
		f := newFixture(t)
		task := f.createTask(t, "Banner", nil)
		_, err := f.tasks.ChangeStatus(ctx, task.ID, "nope", "")
		var invalid *workflow.InvalidStatusError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("PerStatusPreferenceFiltersDelivery", func(t *testing.T) {
		f := newFixture(t)
		f.addRecipient(t, models.Recipient{
			ID: "r1", Name: "Muted", Phone: "100",
			Preferences: models.Preferences{Statuses: map[string]bool{"done": false}},
		})
		f.addRecipient(t, models.Recipient{ID: "r2", Name: "Open", Phone: "200"})

		task := f.createTask(t, "Banner", nil)
		f.transport.mu.Lock()
		f.transport.sent = nil
		f.transport.mu.Unlock()

		_, err := f.tasks.ChangeStatus(ctx, task.ID, "in_design", "")
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{"100", "200"}, f.transport.phones(), "both get in_design")

		f.transport.mu.Lock()
		f.transport.sent = nil
		f.transport.mu.Unlock()
		_, err = f.tasks.ChangeStatus(ctx, task.ID, "review", "")
		assert.NoError(t, err)
		_, err = f.tasks.ChangeStatus(ctx, task.ID, "done", "")
		assert.NoError(t, err)

		phones := f.transport.phones()
		count := map[string]int{}
		for _, p := range phones {
			count[p]++
		}
		assert.Equal(t, 1, count["100"], "muted recipient skips the done transition")
		assert.Equal(t, 2, count["200"])
	})

	t.Run("ActorDoesNotNotifyThemselves", func(t *testing.T) {
		f := newFixture(t)
		f.addRecipient(t, models.Recipient{ID: "r1", Name: "Actor", Phone: "+20 100"})
		f.addRecipient(t, models.Recipient{ID: "r2", Name: "Other", Phone: "200"})
		task := f.createTask(t, "Banner", nil)
		f.transport.mu.Lock()
		f.transport.sent = nil
		f.transport.mu.Unlock()

		_, err := f.tasks.ChangeStatus(ctx, task.ID, "in_design", "20100")
		assert.NoError(t, err)
		assert.Equal(t, []string{"200"}, f.transport.phones())
	})

	t.Run("DeliveryFailureDoesNotFailMutation", func(t *testing.T) {
		f := newFixture(t)
		f.transport.failAll = true
		f.addRecipient(t, models.Recipient{ID: "r1", Name: "A", Phone: "100"})
		task := f.createTask(t, "Banner", nil)

		_, err := f.tasks.ChangeStatus(ctx, task.ID, "in_design", "")
		assert.NoError(t, err)

		logs, _ := f.store.ListNotificationLogs("")
		assert.NotEmpty(t, logs)
		for _, entry := range logs {
			assert.False(t, entry.Success)
			assert.NotEmpty(t, entry.ErrorMessage)
		}
	})
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	strp := func(s string) *string { return &s }

	t.Run("SpecsChangeUsesSpecsEvent", func(t *testing.T) {
		f := newFixture(t)
		root := f.createTask(t, "Root", nil)
		item := f.createTask(t, "Banner", &root.ID)
		f.addRecipient(t, models.Recipient{ID: "r1", Name: "A", Phone: "100"})

		pt := models.DigitalPrinting
		updated, err := f.tasks.UpdateTask(ctx, item.ID, service.UpdateTaskInput{
			Size:         strp("85x200"),
			PrintingType: &pt,
		}, "")
		assert.NoError(t, err)
		assert.Equal(t, "85x200", updated.Size)

		logs, _ := f.store.ListNotificationLogs(item.ID)
		assert.Len(t, logs, 1)
		assert.Equal(t, models.SubtaskSpecsEvent, logs[0].TemplateType)
	})

	t.Run("TitleChangeUsesUpdateEvent", func(t *testing.T) {
		f := newFixture(t)
		root := f.createTask(t, "Root", nil)
		item := f.createTask(t, "Banner", &root.ID)
		f.addRecipient(t, models.Recipient{ID: "r1", Name: "A", Phone: "100"})

		_, err := f.tasks.UpdateTask(ctx, item.ID, service.UpdateTaskInput{Title: strp("Banner v2")}, "")
		assert.NoError(t, err)

		logs, _ := f.store.ListNotificationLogs(item.ID)
		assert.Len(t, logs, 1)
		assert.Equal(t, models.SubtaskUpdateEvent, logs[0].TemplateType)

		history, _ := f.tasks.ListActivity(ctx, item.ID)
		assert.Equal(t, models.TaskUpdatedActivity, history[len(history)-1].Type)
		assert.Equal(t, "Banner v2", history[len(history)-1].Details["title"])
	})

	t.Run("RootEditDoesNotNotify", func(t *testing.T) {
		f := newFixture(t)
		f.addRecipient(t, models.Recipient{ID: "r1", Name: "A", Phone: "100"})
		root := f.createTask(t, "Root", nil)
		f.transport.mu.Lock()
		f.transport.sent = nil
		f.transport.mu.Unlock()

		_, err := f.tasks.UpdateTask(ctx, root.ID, service.UpdateTaskInput{Title: strp("Root v2")}, "")
		assert.NoError(t, err)
		assert.Empty(t, f.transport.phones())
	})

	t.Run("NoChangeIsNoOp", func(t *testing.T) {
		f := newFixture(t)
		task := f.createTask(t, "Banner", nil)

		updated, err := f.tasks.UpdateTask(ctx, task.ID, service.UpdateTaskInput{Title: strp("Banner")}, "")
		assert.NoError(t, err)
		assert.Equal(t, task.Title, updated.Title)

		history, _ := f.tasks.ListActivity(ctx, task.ID)
		assert.Len(t, history, 1, "only the creation entry")
	})

	t.Run("RejectsEmptyTitle", func(t *testing.T) {
		f := newFixture(t)
		task := f.createTask(t, "Banner", nil)
		_, err := f.tasks.UpdateTask(ctx, task.ID, service.UpdateTaskInput{Title: strp("")}, "")
		assert.Error(t, err)
	})
}

func TestProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := f.createTask(t, "Root", nil)
	s1 := f.createTask(t, "Item 1", &root.ID)
	f.createTask(t, "Item 2", &root.ID)

	p, err := f.tasks.Progress(ctx, root.ID)
	assert.NoError(t, err)
	assert.Equal(t, workflow.Progress{Completed: 0, Total: 2, Percentage: 0}, p)

	for _, next := range []string{"in_design", "review", "done"} {
		_, err := f.tasks.ChangeStatus(ctx, s1.ID, next, "")
		assert.NoError(t, err)
	}

	p, err = f.tasks.Progress(ctx, root.ID)
	assert.NoError(t, err)
	assert.Equal(t, workflow.Progress{Completed: 1, Total: 2, Percentage: 50}, p)
	assert.Equal(t, workflow.MidTier, p.Tier())
}

func TestComments(t *testing.T) {
	ctx := context.Background()

	t.Run("CommentAndReply", func(t *testing.T) {
		f := newFixture(t)
		task := f.createTask(t, "Banner", nil)

		comment, err := f.tasks.AddComment(ctx, task.ID, "enlarge the logo", "")
		assert.NoError(t, err)
		assert.False(t, comment.IsResolved)

		reply, err := f.tasks.AddReply(ctx, task.ID, comment.ID, "done", "")
		assert.NoError(t, err)
		assert.True(t, reply.IsReply())

		// replies cannot nest further
		_, err = f.tasks.AddReply(ctx, task.ID, reply.ID, "nested", "")
		assert.Error(t, err)

		history, _ := f.tasks.ListActivity(ctx, task.ID)
		assert.Len(t, history, 3)
	})

	t.Run("ReplyToForeignCommentRejected", func(t *testing.T) {
		f := newFixture(t)
		a := f.createTask(t, "A", nil)
		b := f.createTask(t, "B", nil)
		comment, err := f.tasks.AddComment(ctx, a.ID, "note", "")
		assert.NoError(t, err)
		_, err = f.tasks.AddReply(ctx, b.ID, comment.ID, "reply", "")
		assert.Error(t, err)
	})

	t.Run("ResolveIsIdempotent", func(t *testing.T) {
		f := newFixture(t)
		task := f.createTask(t, "Banner", nil)
		comment, err := f.tasks.AddComment(ctx, task.ID, "note", "")
		assert.NoError(t, err)

		assert.NoError(t, f.tasks.ResolveComment(ctx, comment.ID, ""))
		assert.NoError(t, f.tasks.ResolveComment(ctx, comment.ID, ""), "second resolve is a no-op")

		history, _ := f.tasks.ListActivity(ctx, task.ID)
		resolved := 0
		for _, e := range history {
			if e.Type == models.CommentResolvedActivity {
				resolved++
			}
		}
		assert.Equal(t, 1, resolved)
	})
}

func TestDeleteTaskCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := f.createTask(t, "Root", nil)
	sub := f.createTask(t, "Item", &root.ID)
	comment, err := f.tasks.AddComment(ctx, sub.ID, "note", "")
	assert.NoError(t, err)

	assert.NoError(t, f.tasks.DeleteTask(ctx, root.ID))

	_, err = f.tasks.GetTask(ctx, root.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.tasks.GetTask(ctx, sub.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.store.GetComment(comment.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStatusAdministration(t *testing.T) {
	ctx := context.Background()

	t.Run("DeleteInUseRefused", func(t *testing.T) {
		f := newFixture(t)
		f.createTask(t, "Banner", nil)
		err := f.statuses.Delete(ctx, "pending")
		assert.Error(t, err)
		_, getErr := f.store.GetStatus("pending")
		assert.NoError(t, getErr)
	})

	t.Run("DeleteStripsDanglingReferences", func(t *testing.T) {
		f := newFixture(t)
		assert.NoError(t, f.statuses.Delete(ctx, "in_design"))

		pending, err := f.store.GetStatus("pending")
		assert.NoError(t, err)
		assert.NotContains(t, pending.AllowedNext, "in_design")
		review, err := f.store.GetStatus("review")
		assert.NoError(t, err)
		assert.Equal(t, []string{"done"}, review.AllowedNext)
	})

	t.Run("ReorderPersists", func(t *testing.T) {
		f := newFixture(t)
		assert.NoError(t, f.statuses.Reorder(ctx, []string{"done", "review", "in_design", "pending"}))
		listed, err := f.statuses.List(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "done", listed[0].ID)
		assert.Equal(t, "pending", listed[3].ID)
	})

	t.Run("CreateKeepsSingleDefault", func(t *testing.T) {
		f := newFixture(t)
		assert.NoError(t, f.statuses.Create(ctx, models.Status{ID: "intake", Label: "Intake", IsDefault: true}))
		listed, _ := f.statuses.List(ctx)
		defaults := 0
		for _, s := range listed {
			if s.IsDefault {
				defaults++
				assert.Equal(t, "intake", s.ID)
			}
		}
		assert.Equal(t, 1, defaults)
	})

	t.Run("ResetToDefaultsRemapsOrphans", func(t *testing.T) {
		f := newFixture(t)
		assert.NoError(t, f.statuses.Create(ctx, models.Status{ID: "custom", Label: "Custom"}))
		task, err := f.tasks.CreateTask(ctx, service.CreateTaskInput{Title: "T", StatusID: "custom"})
		assert.NoError(t, err)

		assert.NoError(t, f.statuses.ResetToDefaults(ctx))

		_, err = f.store.GetStatus("custom")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		remapped, err := f.tasks.GetTask(ctx, task.ID)
		assert.NoError(t, err)
		assert.Equal(t, workflow.DefaultStatusID, remapped.StatusID)

		listed, _ := f.statuses.List(ctx)
		assert.Len(t, listed, len(workflow.DefaultStatuses()))
	})
}

func TestTemplateSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("SaveRejectsMalformed", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.settings.SaveTemplateOverride(ctx, models.NewProjectEvent, "{bad placeholder}")
		assert.Error(t, err)
		assert.False(t, res.Valid)
	})

	t.Run("SaveRejectsMissingRequired", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.settings.SaveTemplateOverride(ctx, models.NewProjectEvent, "{taskTitle} only")
		assert.Error(t, err)
	})

	t.Run("OverrideThenReset", func(t *testing.T) {
		f := newFixture(t)
		override := "📣 {taskTitle} {clientName} {clientCode} {status} {urgency}"
		_, err := f.settings.SaveTemplateOverride(ctx, models.NewProjectEvent, override)
		assert.NoError(t, err)

		templates, err := f.settings.Templates(ctx)
		assert.NoError(t, err)
		assert.Equal(t, override, templates[models.NewProjectEvent])

		assert.NoError(t, f.settings.ResetTemplate(ctx, models.NewProjectEvent))
		templates, _ = f.settings.Templates(ctx)
		def, _ := notify.DefaultTemplate(models.NewProjectEvent)
		assert.Equal(t, def, templates[models.NewProjectEvent])
	})

	t.Run("TestSendSurfacesFailure", func(t *testing.T) {
		f := newFixture(t)
		f.addRecipient(t, models.Recipient{ID: "r1", Name: "A", Phone: "100"})
		f.transport.failAll = true
		_, err := f.settings.TestSend(ctx, "r1", models.NewProjectEvent)
		assert.Error(t, err)
	})

	t.Run("TestSendIgnoresPreferences", func(t *testing.T) {
		f := newFixture(t)
		f.addRecipient(t, models.Recipient{
			ID: "r1", Name: "A", Phone: "100",
			Preferences: models.Preferences{Events: map[models.EventType]bool{models.NewProjectEvent: false}},
		})
		msg, err := f.settings.TestSend(ctx, "r1", models.NewProjectEvent)
		assert.NoError(t, err)
		assert.NotEmpty(t, msg)
		assert.Equal(t, []string{"100"}, f.transport.phones())
	})
}

func TestDeadlineReminders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	logger := log.GetLogger()
	reminders := service.NewReminderScheduler(f.tasks, logger)

	f.addRecipient(t, models.Recipient{ID: "r1", Name: "A", Phone: "100"})

	past := time.Now().Add(-48 * time.Hour)
	overdue, err := f.tasks.CreateTask(ctx, service.CreateTaskInput{Title: "Late", Deadline: &past})
	assert.NoError(t, err)
	future := time.Now().Add(48 * time.Hour)
	_, err = f.tasks.CreateTask(ctx, service.CreateTaskInput{Title: "On time", Deadline: &future})
	assert.NoError(t, err)

	f.transport.mu.Lock()
	f.transport.sent = nil
	f.transport.mu.Unlock()

	assert.NoError(t, reminders.RunOnce(ctx))
	assert.Equal(t, []string{"100"}, f.transport.phones(), "only the overdue task triggers a reminder")

	logs, err := f.store.ListNotificationLogs(overdue.ID)
	assert.NoError(t, err)
	reminderLogs := 0
	for _, entry := range logs {
		if entry.TemplateType == models.DeadlineReminderEvent {
			reminderLogs++
			assert.True(t, entry.Success)
		}
	}
	assert.Equal(t, 1, reminderLogs)
}
