package models

import "time"

// Comment belongs to exactly one task. A reply carries the id of its
// parent comment (one level of nesting only).
type Comment struct {
	ID              string    `json:"id" db:"id"`
	TaskID          string    `json:"taskId" db:"task_id"`
	ParentCommentID *string   `json:"parentCommentId,omitempty" db:"parent_comment_id"`
	Text            string    `json:"text" db:"text"`
	IsResolved      bool      `json:"isResolved" db:"is_resolved"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

// IsReply reports whether the comment is a nested reply.
func (c Comment) IsReply() bool {
	return c.ParentCommentID != nil
}
