package models

import "time"

// NotificationLog records one delivery attempt to one recipient.
type NotificationLog struct {
	ID           string    `json:"id" db:"id"`
	TaskID       string    `json:"taskId,omitempty" db:"task_id"`
	Recipient    string    `json:"recipient" db:"recipient"` // Phone number
	Message      string    `json:"message" db:"message"`
	TemplateType EventType `json:"templateType" db:"template_type"`
	SentAt       time.Time `json:"sentAt" db:"sent_at"`
	Success      bool      `json:"success" db:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty" db:"error_message"`
}
