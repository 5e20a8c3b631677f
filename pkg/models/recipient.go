package models

import (
	"encoding/json"
	"strings"
)

type Role string

const (
	AdminRole        Role = "admin"
	DesignerRole     Role = "designer"
	PrintManagerRole Role = "print_manager"
)

// StatusPreferencePrefix is the stable naming convention joining the status
// graph to stored preferences. Persistence and import/export must keep
// these keys verbatim.
const StatusPreferencePrefix = "STATUS_"

// StatusPreferenceKey returns the preference key for a status-change event
// landing on the given status.
func StatusPreferenceKey(statusID string) string {
	return StatusPreferencePrefix + statusID
}

// Recipient is a registered WhatsApp endpoint eligible for notifications.
type Recipient struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Category    string      `json:"category,omitempty" db:"category"` // Informational grouping
	Phone       string      `json:"phone" db:"phone"`
	APIKey      string      `json:"apiKey" db:"api_key"`
	Enabled     bool        `json:"enabled" db:"enabled"` // Hard gate, overrides everything
	Role        Role        `json:"role,omitempty" db:"role"`
	Preferences Preferences `json:"preferences" db:"-"`
}

// Preferences is a sparse opt-in/opt-out record. Fixed event kinds and
// per-status entries are kept apart so the per-status mapping stays typed,
// but the JSON form is the flat map with STATUS_<id> keys that the
// persistence layer stores.
type Preferences struct {
	Events   map[EventType]bool
	Statuses map[string]bool // keyed by status id
}

// Allows reports whether the recipient opted in to the event kind. For
// status changes statusID selects the per-status entry first, falling back
// to the general STATUS_CHANGE entry. Absent keys mean opt-in.
func (p Preferences) Allows(t EventType, statusID string) bool {
	if t == StatusChangeEvent && statusID != "" {
		if v, ok := p.Statuses[statusID]; ok {
			return v
		}
	}
	if v, ok := p.Events[t]; ok {
		return v
	}
	return true
}

// IsZero reports whether no explicit preference has been recorded.
func (p Preferences) IsZero() bool {
	return len(p.Events) == 0 && len(p.Statuses) == 0
}

func (p Preferences) MarshalJSON() ([]byte, error) {
	flat := make(map[string]bool, len(p.Events)+len(p.Statuses))
	for k, v := range p.Events {
		flat[string(k)] = v
	}
	for id, v := range p.Statuses {
		flat[StatusPreferenceKey(id)] = v
	}
	return json.Marshal(flat)
}

func (p *Preferences) UnmarshalJSON(data []byte) error {
	var flat map[string]bool
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	p.Events = make(map[EventType]bool)
	p.Statuses = make(map[string]bool)
	for k, v := range flat {
		if strings.HasPrefix(k, StatusPreferencePrefix) && k != string(StatusChangeEvent) {
			p.Statuses[strings.TrimPrefix(k, StatusPreferencePrefix)] = v
			continue
		}
		p.Events[EventType(k)] = v
	}
	return nil
}
