package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/notify"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/storage"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/workflow"
)

// Logger defines the logging interface for the services.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Client is the external client reference rendered into notifications.
type Client struct {
	ID   string
	Name string
	Code string
}

// ClientDirectory resolves client references. The client collection lives
// outside this core; a nil directory renders the raw client id.
type ClientDirectory interface {
	GetClient(id string) (Client, error)
}

// TaskService orchestrates task mutations: every status change passes the
// graph's legality check, appends an activity-log entry and fans out to
// the notification router. Events are dispatched only after the mutation
// committed, and delivery failure never fails the mutation.
type TaskService struct {
	store   storage.Store
	router  *notify.Router
	clients ClientDirectory
	logger  Logger
}

func NewTaskService(store storage.Store, router *notify.Router, clients ClientDirectory, logger Logger) *TaskService {
	return &TaskService{
		store:   store,
		router:  router,
		clients: clients,
		logger:  logger,
	}
}

// CreateTaskInput carries the caller-provided fields for a new task.
type CreateTaskInput struct {
	Title        string
	Description  string
	Urgency      models.Urgency
	ClientID     string
	ParentID     *string
	StatusID     string // empty = graph default
	PrintingType models.PrintingType
	Size         string
	IsVIP        bool
	Deadline     *time.Time
}

// CreateTask persists a new task. An empty status is seeded from the
// graph's default; an unknown explicit status fails without persisting.
func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput) (models.Task, error) {
	task, statusLabel, err := s.createTaskTx(in)
	if err != nil {
		return models.Task{}, err
	}

	eventType := models.NewProjectEvent
	if task.IsSubtask() {
		eventType = models.NewSubtaskEvent
	}
	vars := s.baseVars(task)
	vars["status"] = statusLabel
	vars["urgency"] = string(task.Urgency)
	s.dispatch(ctx, notify.Event{Type: eventType, TaskID: task.ID, Vars: vars})

	return task, nil
}

func (s *TaskService) createTaskTx(in CreateTaskInput) (task models.Task, statusLabel string, err error) {
	if in.Title == "" {
		return models.Task{}, "", errors.New("task title cannot be empty")
	}
	if in.Urgency == "" {
		in.Urgency = models.NormalUrgency
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return models.Task{}, "", fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer s.finishTx(txStore, &err)

	g, err := s.buildGraph(txStore)
	if err != nil {
		return models.Task{}, "", err
	}

	var status models.Status
	if in.StatusID == "" {
		if status, err = g.Default(); err != nil {
			return models.Task{}, "", err
		}
	} else if status, err = g.Get(in.StatusID); err != nil {
		return models.Task{}, "", err
	}

	siblings := 0
	if in.ParentID != nil {
		subs, listErr := txStore.ListSubtasks(*in.ParentID)
		if listErr != nil {
			return models.Task{}, "", listErr
		}
		siblings = len(subs)
	}

	task = models.Task{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Urgency:      in.Urgency,
		StatusID:     status.ID,
		ClientID:     in.ClientID,
		ParentID:     in.ParentID,
		OrderIndex:   siblings,
		PrintingType: in.PrintingType,
		Size:         in.Size,
		IsVIP:        in.IsVIP,
		Deadline:     in.Deadline,
		CreatedAt:    time.Now(),
	}
	if err = txStore.SaveTask(task); err != nil {
		return models.Task{}, "", fmt.Errorf("failed to save task: %v", err)
	}

	if err = txStore.AppendActivity(models.ActivityLog{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		Timestamp:   time.Now(),
		Type:        models.TaskCreatedActivity,
		Description: "تم إنشاء " + task.Title,
	}); err != nil {
		return models.Task{}, "", fmt.Errorf("failed to append activity: %v", err)
	}

	s.logger.Infof("Created task '%s' (%s)", task.Title, task.ID)
	return task, status.Label, nil
}

// ChangeStatus moves a task to a new status. The transition is
// re-validated against the graph even when a UI already filtered the menu:
// the caller is never trusted. On an illegal or unknown transition no state
// changes and the caller gets an explicit typed error.
func (s *TaskService) ChangeStatus(ctx context.Context, taskID, newStatusID, actorPhone string) (models.Task, error) {
	task, oldStatus, newStatus, err := s.changeStatusTx(taskID, newStatusID)
	if err != nil {
		return models.Task{}, err
	}

	vars := s.baseVars(task)
	vars["statusMessage"] = fmt.Sprintf("تم تغيير الحالة من \"%s\" إلى \"%s\"", oldStatus.Label, newStatus.Label)
	vars["oldStatus"] = oldStatus.Label
	vars["newStatus"] = newStatus.Label
	s.dispatch(ctx, notify.Event{
		Type:       models.StatusChangeEvent,
		TaskID:     taskID,
		StatusID:   newStatusID,
		ActorPhone: actorPhone,
		Vars:       vars,
	})

	return task, nil
}

func (s *TaskService) changeStatusTx(taskID, newStatusID string) (task models.Task, oldStatus, newStatus models.Status, err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		err = fmt.Errorf("failed to begin transaction: %v", err)
		return
	}
	defer s.finishTx(txStore, &err)

	task, err = txStore.GetTask(taskID)
	if err != nil {
		err = fmt.Errorf("task %s not found: %v", taskID, err)
		return
	}

	g, err := s.buildGraph(txStore)
	if err != nil {
		return
	}
	allowed, err := g.IsTransitionAllowed(task.StatusID, newStatusID)
	if err != nil {
		return
	}
	if !allowed {
		err = &workflow.IllegalTransitionError{From: task.StatusID, To: newStatusID}
		return
	}

	if oldStatus, err = g.Get(task.StatusID); err != nil {
		return
	}
	if newStatus, err = g.Get(newStatusID); err != nil {
		return
	}

	if err = txStore.UpdateTaskStatus(taskID, newStatusID); err != nil {
		err = fmt.Errorf("failed to update task %s status: %v", taskID, err)
		return
	}
	task.StatusID = newStatusID

	if err = txStore.AppendActivity(models.ActivityLog{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Timestamp:   time.Now(),
		Type:        models.StatusChangeActivity,
		Description: fmt.Sprintf("تم تغيير الحالة من \"%s\" إلى \"%s\"", oldStatus.Label, newStatus.Label),
		Details: map[string]string{
			"oldStatus":      oldStatus.ID,
			"oldStatusLabel": oldStatus.Label,
			"newStatus":      newStatus.ID,
			"newStatusLabel": newStatus.Label,
		},
	}); err != nil {
		err = fmt.Errorf("failed to append activity: %v", err)
		return
	}

	s.logger.Infof("Task %s moved from '%s' to '%s'", taskID, oldStatus.ID, newStatus.ID)

	// Progress is derived, not stored; recompute here only to surface the
	// new completion level in the log stream.
	if task.IsSubtask() {
		if p, pErr := s.progressOf(txStore, g, *task.ParentID); pErr != nil {
			s.logger.Errorf("Failed to recompute progress for parent %s: %v", *task.ParentID, pErr)
		} else {
			s.logger.Infof("Parent %s progress: %d/%d (%d%%)", *task.ParentID, p.Completed, p.Total, p.Percentage)
		}
	}
	return
}

// AddComment appends a comment to a task and notifies recipients. The
// comment count in the notification includes the new comment.
func (s *TaskService) AddComment(ctx context.Context, taskID, text, actorPhone string) (models.Comment, error) {
	if text == "" {
		return models.Comment{}, errors.New("comment text cannot be empty")
	}
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return models.Comment{}, fmt.Errorf("task %s not found: %v", taskID, err)
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := s.appendCommentTx(task, comment, models.CommentAddedActivity, "تم إضافة تعليق"); err != nil {
		return models.Comment{}, err
	}

	comments, err := s.store.ListComments(taskID)
	if err != nil {
		return models.Comment{}, err
	}
	unresolved := 0
	for _, c := range comments {
		if !c.IsResolved {
			unresolved++
		}
	}

	vars := s.baseVars(task)
	vars["taskLabel"] = taskLabel(task)
	vars["commentText"] = text
	vars["commentCount"] = strconv.Itoa(len(comments))
	vars["unresolvedCount"] = strconv.Itoa(unresolved)
	s.dispatch(ctx, notify.Event{Type: models.CommentAddedEvent, TaskID: taskID, ActorPhone: actorPhone, Vars: vars})

	return comment, nil
}

// AddReply appends a one-level reply to an existing comment on the task.
func (s *TaskService) AddReply(ctx context.Context, taskID, parentCommentID, text, actorPhone string) (models.Comment, error) {
	if text == "" {
		return models.Comment{}, errors.New("reply text cannot be empty")
	}
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return models.Comment{}, fmt.Errorf("task %s not found: %v", taskID, err)
	}
	parent, err := s.store.GetComment(parentCommentID)
	if err != nil {
		return models.Comment{}, fmt.Errorf("parent comment %s not found: %v", parentCommentID, err)
	}
	if parent.TaskID != taskID {
		return models.Comment{}, errors.New("parent comment belongs to a different task")
	}
	if parent.IsReply() {
		return models.Comment{}, errors.New("replies cannot be nested deeper than one level")
	}

	reply := models.Comment{
		ID:              uuid.NewString(),
		TaskID:          taskID,
		ParentCommentID: &parentCommentID,
		Text:            text,
		CreatedAt:       time.Now(),
	}
	if err := s.appendCommentTx(task, reply, models.ReplyAddedActivity, "تم إضافة رد على تعليق"); err != nil {
		return models.Comment{}, err
	}

	vars := s.baseVars(task)
	vars["taskLabel"] = taskLabel(task)
	vars["commentText"] = text
	s.dispatch(ctx, notify.Event{Type: models.ReplyAddedEvent, TaskID: taskID, ActorPhone: actorPhone, Vars: vars})

	return reply, nil
}

// ResolveComment marks a comment resolved. Resolving an already resolved
// comment is a no-op, not an error.
func (s *TaskService) ResolveComment(ctx context.Context, commentID, actorPhone string) error {
	comment, err := s.store.GetComment(commentID)
	if err != nil {
		return fmt.Errorf("comment %s not found: %v", commentID, err)
	}
	if comment.IsResolved {
		s.logger.Infof("Comment %s already resolved, skipping", commentID)
		return nil
	}
	task, err := s.store.GetTask(comment.TaskID)
	if err != nil {
		return fmt.Errorf("task %s not found: %v", comment.TaskID, err)
	}

	if err := s.resolveCommentTx(task.ID, commentID); err != nil {
		return err
	}

	unresolved := 0
	if comments, listErr := s.store.ListComments(task.ID); listErr == nil {
		for _, c := range comments {
			if !c.IsResolved {
				unresolved++
			}
		}
	}

	vars := s.baseVars(task)
	vars["taskLabel"] = taskLabel(task)
	vars["unresolvedCount"] = strconv.Itoa(unresolved)
	s.dispatch(ctx, notify.Event{Type: models.CommentResolvedEvent, TaskID: task.ID, ActorPhone: actorPhone, Vars: vars})

	return nil
}

func (s *TaskService) resolveCommentTx(taskID, commentID string) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer s.finishTx(txStore, &err)

	if err = txStore.ResolveComment(commentID); err != nil {
		return fmt.Errorf("failed to resolve comment %s: %v", commentID, err)
	}
	if err = txStore.AppendActivity(models.ActivityLog{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Timestamp:   time.Now(),
		Type:        models.CommentResolvedActivity,
		Description: "تم حل الملاحظة",
		Details:     map[string]string{"commentId": commentID},
	}); err != nil {
		return fmt.Errorf("failed to append activity: %v", err)
	}
	return nil
}

// AddAttachment records attachment metadata and notifies recipients.
func (s *TaskService) AddAttachment(ctx context.Context, taskID string, in models.Attachment, actorPhone string) (models.Attachment, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("task %s not found: %v", taskID, err)
	}

	att := in
	att.ID = uuid.NewString()
	att.TaskID = taskID
	att.CreatedAt = time.Now()

	if err := s.addAttachmentTx(att); err != nil {
		return models.Attachment{}, err
	}

	vars := s.baseVars(task)
	vars["taskLabel"] = taskLabel(task)
	vars["attachmentCount"] = "1"
	vars["attachmentNames"] = att.Name
	s.dispatch(ctx, notify.Event{Type: models.AttachmentAddedEvent, TaskID: taskID, ActorPhone: actorPhone, Vars: vars})

	return att, nil
}

func (s *TaskService) addAttachmentTx(att models.Attachment) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer s.finishTx(txStore, &err)

	if err = txStore.SaveAttachment(att); err != nil {
		return fmt.Errorf("failed to save attachment: %v", err)
	}
	if err = txStore.AppendActivity(models.ActivityLog{
		ID:          uuid.NewString(),
		TaskID:      att.TaskID,
		Timestamp:   time.Now(),
		Type:        models.AttachmentAddedActivity,
		Description: "تم إضافة مرفق: " + att.Name,
		Details:     map[string]string{"attachmentId": att.ID, "attachmentName": att.Name},
	}); err != nil {
		return fmt.Errorf("failed to append activity: %v", err)
	}
	return nil
}

// UpdateTaskInput carries partial edits; nil fields stay untouched.
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	Urgency      *models.Urgency
	PrintingType *models.PrintingType
	Size         *string
	IsVIP        *bool
	Deadline     *time.Time
}

// UpdateTask applies a partial edit to a task. Edits to a line item's
// print specs (size, printing type) notify with the specs event, any
// other line-item edit with the general update event. Root project edits
// do not notify.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, in UpdateTaskInput, actorPhone string) (models.Task, error) {
	task, changed, specsChanged, err := s.updateTaskTx(taskID, in)
	if err != nil {
		return models.Task{}, err
	}
	if !changed || !task.IsSubtask() {
		return task, nil
	}

	eventType := models.SubtaskUpdateEvent
	if specsChanged {
		eventType = models.SubtaskSpecsEvent
	}
	vars := s.baseVars(task)
	vars["size"] = task.Size
	vars["printingType"] = string(task.PrintingType)
	s.dispatch(ctx, notify.Event{Type: eventType, TaskID: taskID, ActorPhone: actorPhone, Vars: vars})

	return task, nil
}

func (s *TaskService) updateTaskTx(taskID string, in UpdateTaskInput) (task models.Task, changed, specsChanged bool, err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		err = fmt.Errorf("failed to begin transaction: %v", err)
		return
	}
	defer s.finishTx(txStore, &err)

	task, err = txStore.GetTask(taskID)
	if err != nil {
		err = fmt.Errorf("task %s not found: %v", taskID, err)
		return
	}

	details := map[string]string{}
	if in.Title != nil && *in.Title != task.Title {
		if *in.Title == "" {
			err = errors.New("task title cannot be empty")
			return
		}
		task.Title = *in.Title
		details["title"] = task.Title
	}
	if in.Description != nil && *in.Description != task.Description {
		task.Description = *in.Description
		details["description"] = task.Description
	}
	if in.Urgency != nil && *in.Urgency != task.Urgency {
		task.Urgency = *in.Urgency
		details["urgency"] = string(task.Urgency)
	}
	if in.PrintingType != nil && *in.PrintingType != task.PrintingType {
		task.PrintingType = *in.PrintingType
		details["printingType"] = string(task.PrintingType)
		specsChanged = true
	}
	if in.Size != nil && *in.Size != task.Size {
		task.Size = *in.Size
		details["size"] = task.Size
		specsChanged = true
	}
	if in.IsVIP != nil && *in.IsVIP != task.IsVIP {
		task.IsVIP = *in.IsVIP
		details["isVip"] = strconv.FormatBool(task.IsVIP)
	}
	if in.Deadline != nil && (task.Deadline == nil || !in.Deadline.Equal(*task.Deadline)) {
		task.Deadline = in.Deadline
		details["deadline"] = in.Deadline.Format("2006-01-02")
	}
	if len(details) == 0 {
		return
	}

	if err = txStore.UpdateTask(task); err != nil {
		err = fmt.Errorf("failed to update task %s: %v", taskID, err)
		return
	}
	if err = txStore.AppendActivity(models.ActivityLog{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		Timestamp:   time.Now(),
		Type:        models.TaskUpdatedActivity,
		Description: "تم تعديل " + taskLabel(task) + ": " + task.Title,
		Details:     details,
	}); err != nil {
		err = fmt.Errorf("failed to append activity: %v", err)
		return
	}
	changed = true
	return
}

// DeleteTask removes a root task together with all its subtasks and their
// comments and attachments in a single transaction: either the whole
// cascade applies or nothing does.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer s.finishTx(txStore, &err)

	if _, err = txStore.GetTask(taskID); err != nil {
		return fmt.Errorf("task %s not found: %v", taskID, err)
	}
	subtasks, err := txStore.ListSubtasks(taskID)
	if err != nil {
		return fmt.Errorf("failed to list subtasks of %s: %v", taskID, err)
	}
	for _, sub := range subtasks {
		if err = txStore.DeleteTask(sub.ID); err != nil {
			return fmt.Errorf("failed to delete subtask %s: %v", sub.ID, err)
		}
	}
	if err = txStore.DeleteTask(taskID); err != nil {
		return fmt.Errorf("failed to delete task %s: %v", taskID, err)
	}

	s.logger.Infof("Deleted task %s and %d subtasks", taskID, len(subtasks))
	return nil
}

// Progress computes the derived completion view of a root task from its
// subtasks. It is recomputed on every call, never cached here.
func (s *TaskService) Progress(ctx context.Context, taskID string) (workflow.Progress, error) {
	if _, err := s.store.GetTask(taskID); err != nil {
		return workflow.Progress{}, fmt.Errorf("task %s not found: %v", taskID, err)
	}
	g, err := s.buildGraph(s.store)
	if err != nil {
		return workflow.Progress{}, err
	}
	return s.progressOf(s.store, g, taskID)
}

// Overdue lists unfinished tasks whose deadline has passed.
func (s *TaskService) Overdue(ctx context.Context) ([]models.Task, error) {
	return s.store.ListOverdueTasks(time.Now())
}

// GetTask fetches a task by id.
func (s *TaskService) GetTask(ctx context.Context, taskID string) (models.Task, error) {
	return s.store.GetTask(taskID)
}

// ListTasks fetches all tasks ordered by order index.
func (s *TaskService) ListTasks(ctx context.Context) ([]models.Task, error) {
	return s.store.ListTasks()
}

// ListActivity returns a task's append-only history.
func (s *TaskService) ListActivity(ctx context.Context, taskID string) ([]models.ActivityLog, error) {
	return s.store.ListActivity(taskID)
}

// finishTx commits on success and rolls back when *err is set, the same
// closing discipline on every write path.
func (s *TaskService) finishTx(txStore storage.Store, err *error) {
	if *err != nil {
		if rollbackErr := txStore.Rollback(); rollbackErr != nil {
			s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, *err)
		}
		return
	}
	if commitErr := txStore.Commit(); commitErr != nil {
		s.logger.Errorf("Failed to commit: %v", commitErr)
		*err = commitErr
	}
}

func (s *TaskService) progressOf(store storage.Store, g *workflow.Graph, taskID string) (workflow.Progress, error) {
	subtasks, err := store.ListSubtasks(taskID)
	if err != nil {
		return workflow.Progress{}, fmt.Errorf("failed to list subtasks of %s: %v", taskID, err)
	}
	return workflow.ComputeProgress(g, subtasks), nil
}

func (s *TaskService) buildGraph(store storage.Store) (*workflow.Graph, error) {
	statuses, err := store.ListStatuses()
	if err != nil {
		return nil, fmt.Errorf("failed to load statuses: %v", err)
	}
	return workflow.NewGraph(statuses), nil
}

func (s *TaskService) appendCommentTx(task models.Task, c models.Comment, activityType, description string) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer s.finishTx(txStore, &err)

	if err = txStore.SaveComment(c); err != nil {
		return fmt.Errorf("failed to save comment: %v", err)
	}
	text := c.Text
	if len(text) > 100 {
		text = text[:100]
	}
	if err = txStore.AppendActivity(models.ActivityLog{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		Timestamp:   time.Now(),
		Type:        activityType,
		Description: description,
		Details:     map[string]string{"commentId": c.ID, "commentText": text},
	}); err != nil {
		return fmt.Errorf("failed to append activity: %v", err)
	}
	return nil
}

// dispatch fans an event out through the router. Delivery is best-effort:
// failures are logged and recorded, never returned to the mutation path.
func (s *TaskService) dispatch(ctx context.Context, ev notify.Event) {
	recipients, err := s.store.ListRecipients()
	if err != nil {
		s.logger.Errorf("Failed to load recipients for %s event: %v", ev.Type, err)
		return
	}
	overrides, err := s.store.GetTemplateOverrides()
	if err != nil {
		s.logger.Errorf("Failed to load template overrides for %s event: %v", ev.Type, err)
		overrides = nil
	}
	results, err := s.router.Dispatch(ctx, ev, recipients, overrides)
	if err != nil {
		s.logger.Errorf("Failed to dispatch %s event: %v", ev.Type, err)
		return
	}
	for _, res := range results {
		entry := models.NotificationLog{
			ID:           uuid.NewString(),
			TaskID:       ev.TaskID,
			Recipient:    res.Phone,
			Message:      res.Message,
			TemplateType: ev.Type,
			SentAt:       time.Now(),
			Success:      res.Sent,
		}
		if res.Err != nil {
			entry.ErrorMessage = res.Err.Error()
		}
		if logErr := s.store.SaveNotificationLog(entry); logErr != nil {
			s.logger.Errorf("Failed to record notification log: %v", logErr)
		}
	}
}

// baseVars builds the variable set shared by every event kind.
func (s *TaskService) baseVars(task models.Task) map[string]string {
	client := Client{ID: task.ClientID, Name: task.ClientID, Code: task.ClientID}
	if s.clients != nil {
		if c, err := s.clients.GetClient(task.ClientID); err == nil {
			client = c
		} else {
			s.logger.Errorf("Failed to resolve client %s: %v", task.ClientID, err)
		}
	}
	return map[string]string{
		"taskTitle":  task.Title,
		"clientName": client.Name,
		"clientCode": client.Code,
	}
}

func taskLabel(task models.Task) string {
	if task.IsSubtask() {
		return "البند"
	}
	return "المشروع"
}
