package models

// EventType identifies a notification event kind. The values double as
// template ids and as preference keys for non-status events.
type EventType string

const (
	NewProjectEvent       EventType = "NEW_PROJECT"
	NewSubtaskEvent       EventType = "NEW_SUBTASK"
	SubtaskUpdateEvent    EventType = "SUBTASK_UPDATE"
	SubtaskSpecsEvent     EventType = "SUBTASK_SPECS_UPDATE"
	StatusChangeEvent     EventType = "STATUS_CHANGE"
	CommentAddedEvent     EventType = "COMMENT_ADDED"
	ReplyAddedEvent       EventType = "REPLY_ADDED"
	CommentResolvedEvent  EventType = "COMMENT_RESOLVED"
	AttachmentAddedEvent  EventType = "ATTACHMENT_ADDED"
	DeadlineReminderEvent EventType = "DEADLINE_REMINDER"
)

// EventTypes lists every known event kind in catalogue order.
func EventTypes() []EventType {
	return []EventType{
		NewProjectEvent,
		NewSubtaskEvent,
		SubtaskUpdateEvent,
		SubtaskSpecsEvent,
		StatusChangeEvent,
		CommentAddedEvent,
		ReplyAddedEvent,
		CommentResolvedEvent,
		AttachmentAddedEvent,
		DeadlineReminderEvent,
	}
}
