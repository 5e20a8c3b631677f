package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
	"github.com/pkg/errors"
)

// ExportVersion is the current template export document version.
const ExportVersion = 1

// TemplateExport is the JSON document produced by template export and
// accepted by import.
type TemplateExport struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exportedAt"`
	Templates  map[string]string `json:"notificationTemplates"`
}

// ExportTemplates serializes the override set into a versioned document.
// Types without an override are omitted; they render from defaults.
func ExportTemplates(overrides map[models.EventType]string) ([]byte, error) {
	doc := TemplateExport{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Templates:  make(map[string]string, len(overrides)),
	}
	for t, text := range overrides {
		doc.Templates[string(t)] = text
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshalling template export")
	}
	return out, nil
}

// ImportTemplates parses an export document back into an override set.
// Unknown template type keys and malformed override texts are rejected
// rather than silently accepted.
func ImportTemplates(data []byte) (map[models.EventType]string, error) {
	var doc TemplateExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing template import")
	}
	if doc.Version != ExportVersion {
		return nil, fmt.Errorf("unsupported template export version %d", doc.Version)
	}

	overrides := make(map[models.EventType]string, len(doc.Templates))
	for key, text := range doc.Templates {
		if !KnownEventType(key) {
			return nil, fmt.Errorf("unknown template type '%s'", key)
		}
		t := models.EventType(key)
		if res := Validate(text, t); !res.Valid {
			return nil, fmt.Errorf("invalid template for '%s': %v", key, res.Errors)
		} else if len(res.MissingRequired) > 0 {
			return nil, fmt.Errorf("template for '%s' is missing required variables: %v", key, res.MissingRequired)
		}
		overrides[t] = text
	}
	return overrides, nil
}
