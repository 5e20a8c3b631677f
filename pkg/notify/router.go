package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
)

// Logger defines the logging interface for the Router.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Event is one occurrence the router fans out to recipients.
type Event struct {
	Type       models.EventType
	TaskID     string
	StatusID   string            // New status id, set for STATUS_CHANGE events
	ActorPhone string            // Phone of whoever caused the event, excluded from delivery
	Vars       map[string]string // Canonical variable set for template rendering
}

// PreferenceKey resolves the event to the stored preference key. Generic
// events use the fixed event kind; status changes use the dynamic
// STATUS_<newStatusId> key.
func (e Event) PreferenceKey() string {
	if e.Type == models.StatusChangeEvent && e.StatusID != "" {
		return models.StatusPreferenceKey(e.StatusID)
	}
	return string(e.Type)
}

// DeliveryResult reports the outcome for a single recipient. Failures are
// values, not panics, so callers can aggregate partial success.
type DeliveryResult struct {
	RecipientID string
	Phone       string
	Message     string
	Sent        bool
	Err         error
}

// roleEvents restricts which event kinds a recipient with a role receives.
// Recipients without a role skip this filter entirely, keeping the default
// fail-open. Per-status relevance is expressed through STATUS_<id>
// preference keys, not per-role status lists.
var roleEvents = map[models.Role][]models.EventType{
	models.DesignerRole: {
		models.NewProjectEvent, models.NewSubtaskEvent, models.StatusChangeEvent,
		models.CommentAddedEvent, models.ReplyAddedEvent, models.CommentResolvedEvent,
		models.AttachmentAddedEvent, models.DeadlineReminderEvent,
	},
	models.PrintManagerRole: {
		models.StatusChangeEvent, models.SubtaskUpdateEvent, models.SubtaskSpecsEvent,
		models.CommentAddedEvent, models.AttachmentAddedEvent, models.DeadlineReminderEvent,
	},
	models.AdminRole: {
		models.NewProjectEvent, models.NewSubtaskEvent, models.StatusChangeEvent,
		models.CommentAddedEvent, models.ReplyAddedEvent, models.CommentResolvedEvent,
		models.SubtaskUpdateEvent, models.SubtaskSpecsEvent, models.AttachmentAddedEvent,
		models.DeadlineReminderEvent,
	},
}

// Router selects recipients for an event, renders their messages and
// attempts delivery through the transport.
type Router struct {
	transport Transport
	logger    Logger
}

func NewRouter(transport Transport, logger Logger) *Router {
	return &Router{transport: transport, logger: logger}
}

// Filter applies the selection rules in order: the enabled hard gate,
// the optional role filter, the preference lookup (absent key = opt-in)
// and finally actor exclusion.
func (r *Router) Filter(ev Event, recipients []models.Recipient) []models.Recipient {
	var filtered []models.Recipient
	for _, rec := range recipients {
		if !rec.Enabled {
			continue
		}
		if rec.Role != "" {
			if allowed, known := roleEvents[rec.Role]; known && !containsEvent(allowed, ev.Type) {
				r.logger.Infof("Excluding recipient %s: event %s not relevant for role %s", rec.Phone, ev.Type, rec.Role)
				continue
			}
		}
		if !rec.Preferences.Allows(ev.Type, ev.StatusID) {
			r.logger.Infof("Excluding recipient %s: %s disabled in preferences", rec.Phone, ev.PreferenceKey())
			continue
		}
		if ev.ActorPhone != "" && normalizePhone(rec.Phone) == normalizePhone(ev.ActorPhone) {
			r.logger.Infof("Excluding recipient %s: action creator", rec.Phone)
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

// Dispatch filters recipients, renders the event's template per recipient
// and attempts delivery concurrently. Deliveries are independent: a failed
// or panicking send never blocks a sibling, and every recipient gets a
// result. The returned error covers only pre-delivery problems (unknown
// template type).
func (r *Router) Dispatch(ctx context.Context, ev Event, recipients []models.Recipient, overrides map[models.EventType]string) ([]DeliveryResult, error) {
	templateText, ok := overrides[ev.Type]
	if !ok || templateText == "" {
		if templateText, ok = DefaultTemplate(ev.Type); !ok {
			return nil, fmt.Errorf("unknown template type '%s'", ev.Type)
		}
	}

	targets := r.Filter(ev, recipients)
	if len(targets) == 0 {
		r.logger.Infof("No recipients for %s event after filtering", ev.Type)
		return nil, nil
	}

	results := make([]DeliveryResult, len(targets))
	var wg sync.WaitGroup
	for i, rec := range targets {
		wg.Add(1)
		go func(i int, rec models.Recipient) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					results[i].Sent = false
					results[i].Err = fmt.Errorf("delivery panic: %v", p)
				}
			}()

			vars := make(map[string]string, len(ev.Vars)+1)
			for k, v := range ev.Vars {
				vars[k] = v
			}
			vars["recipientName"] = rec.Name

			msg := Render(templateText, vars)
			results[i] = DeliveryResult{RecipientID: rec.ID, Phone: rec.Phone, Message: msg}
			if err := r.transport.Send(ctx, rec.Phone, rec.APIKey, msg); err != nil {
				results[i].Err = err
				r.logger.Errorf("Failed to deliver %s notification to %s: %v", ev.Type, rec.Phone, err)
				return
			}
			results[i].Sent = true
		}(i, rec)
	}
	wg.Wait()

	sent := 0
	for _, res := range results {
		if res.Sent {
			sent++
		}
	}
	r.logger.Infof("Dispatched %s event: %d/%d deliveries succeeded", ev.Type, sent, len(results))
	return results, nil
}

func containsEvent(list []models.EventType, t models.EventType) bool {
	for _, e := range list {
		if e == t {
			return true
		}
	}
	return false
}

func normalizePhone(phone string) string {
	phone = strings.ReplaceAll(phone, " ", "")
	return strings.TrimPrefix(phone, "+")
}
