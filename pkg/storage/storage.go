package storage

import (
	"time"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations the core consumes. Begin
// returns a transaction-scoped Store; Commit/Rollback close it.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Status collection
	ListStatuses() ([]models.Status, error)
	GetStatus(id string) (models.Status, error)
	SaveStatus(s models.Status) error
	UpdateStatus(s models.Status) error
	DeleteStatus(id string) error

	// Tasks
	GetTask(id string) (models.Task, error)
	ListTasks() ([]models.Task, error)
	ListSubtasks(parentID string) ([]models.Task, error)
	ListTasksByStatus(statusID string) ([]models.Task, error)
	ListOverdueTasks(now time.Time) ([]models.Task, error)
	SaveTask(t models.Task) error
	UpdateTask(t models.Task) error
	UpdateTaskStatus(id, statusID string) error
	DeleteTask(id string) error

	// Comments
	GetComment(id string) (models.Comment, error)
	ListComments(taskID string) ([]models.Comment, error)
	SaveComment(c models.Comment) error
	ResolveComment(id string) error

	// Attachments
	ListAttachments(taskID string) ([]models.Attachment, error)
	SaveAttachment(a models.Attachment) error
	DeleteAttachment(id string) error

	// Activity log
	AppendActivity(entry models.ActivityLog) error
	ListActivity(taskID string) ([]models.ActivityLog, error)

	// Notification recipients
	ListRecipients() ([]models.Recipient, error)
	GetRecipient(id string) (models.Recipient, error)
	SaveRecipient(r models.Recipient) error
	UpdateRecipient(r models.Recipient) error
	DeleteRecipient(id string) error

	// Template overrides, keyed by template type id
	GetTemplateOverrides() (map[models.EventType]string, error)
	SaveTemplateOverride(t models.EventType, text string) error
	DeleteTemplateOverride(t models.EventType) error

	// Notification log
	SaveNotificationLog(entry models.NotificationLog) error
	ListNotificationLogs(taskID string) ([]models.NotificationLog, error)
}
