package models

import "time"

// Activity log entry types appended by the orchestrator.
const (
	StatusChangeActivity    = "statusChange"
	CommentAddedActivity    = "commentAdded"
	ReplyAddedActivity      = "replyAdded"
	CommentResolvedActivity = "commentResolved"
	AttachmentAddedActivity = "attachmentAdded"
	TaskCreatedActivity     = "taskCreated"
	TaskUpdatedActivity     = "taskUpdated"
)

// ActivityLog is one append-only entry in a task's history.
type ActivityLog struct {
	ID          string            `json:"id" db:"id"`
	TaskID      string            `json:"taskId" db:"task_id"`
	Timestamp   time.Time         `json:"timestamp" db:"timestamp"`
	Type        string            `json:"type" db:"type"`
	Description string            `json:"description" db:"description"`
	Details     map[string]string `json:"details,omitempty" db:"-"`
}
