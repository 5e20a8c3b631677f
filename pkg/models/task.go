package models

import "time"

type Urgency string

const (
	NormalUrgency   Urgency = "Normal"
	UrgentUrgency   Urgency = "Urgent"
	CriticalUrgency Urgency = "Critical"
)

type PrintingType string

const (
	OffsetPrinting  PrintingType = "Offset"
	DigitalPrinting PrintingType = "Digital"
)

// Task represents a client order (root task / "project") or a line item
// within one (subtask, ParentID set).
type Task struct {
	ID           string       `json:"id" db:"id"`
	Title        string       `json:"title" db:"title"`
	Description  string       `json:"description,omitempty" db:"description"`
	Urgency      Urgency      `json:"urgency" db:"urgency"`
	StatusID     string       `json:"status" db:"status"`    // Foreign key into the status graph
	ClientID     string       `json:"clientId" db:"client_id"`
	ParentID     *string      `json:"parentId,omitempty" db:"parent_id"` // nil = root task
	OrderIndex   int          `json:"orderIndex" db:"order_index"`
	PrintingType PrintingType `json:"printingType,omitempty" db:"printing_type"`
	Size         string       `json:"size,omitempty" db:"size"`
	IsVIP        bool         `json:"isVip" db:"is_vip"`
	Deadline     *time.Time   `json:"deadline,omitempty" db:"deadline"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
}

// IsSubtask reports whether the task is a line item under a root task.
func (t Task) IsSubtask() bool {
	return t.ParentID != nil
}
