package models

import "time"

// Attachment is file metadata hanging off a task. The file bytes live in
// external storage; the core only tracks the reference.
type Attachment struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"taskId" db:"task_id"`
	Name      string    `json:"name" db:"name"`
	Type      string    `json:"type" db:"type"`
	Size      int64     `json:"size" db:"size"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
