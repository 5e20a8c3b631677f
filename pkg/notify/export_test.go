package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
)

func TestExportImportRoundTrip(t *testing.T) {
	overrides := map[models.EventType]string{
		models.NewProjectEvent: "🆕 {taskTitle} / {clientName} / {clientCode} / {status} / {urgency}",
		models.ReplyAddedEvent: "reply on {taskLabel} {taskTitle} ({clientName}, {clientCode}): {commentText}",
	}

	data, err := ExportTemplates(overrides)
	assert.NoError(t, err)

	var doc TemplateExport
	assert.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, ExportVersion, doc.Version)
	assert.Len(t, doc.Templates, 2)

	back, err := ImportTemplates(data)
	assert.NoError(t, err)
	assert.Equal(t, overrides, back)
}

func TestImportRejectsUnknownType(t *testing.T) {
	data := []byte(`{"version":1,"exportedAt":"2026-01-01T00:00:00Z","notificationTemplates":{"NOT_A_TYPE":"x"}}`)
	_, err := ImportTemplates(data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template type")
}

func TestImportRejectsWrongVersion(t *testing.T) {
	data := []byte(`{"version":99,"notificationTemplates":{}}`)
	_, err := ImportTemplates(data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestImportRejectsMalformedTemplate(t *testing.T) {
	data := []byte(`{"version":1,"notificationTemplates":{"NEW_PROJECT":"{bad placeholder} {taskTitle} {clientName} {clientCode} {status} {urgency}"}}`)
	_, err := ImportTemplates(data)
	assert.Error(t, err)
}

func TestImportRejectsMissingRequired(t *testing.T) {
	data := []byte(`{"version":1,"notificationTemplates":{"NEW_PROJECT":"{taskTitle} only"}}`)
	_, err := ImportTemplates(data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestExportOmitsNothingSilently(t *testing.T) {
	data, err := ExportTemplates(nil)
	assert.NoError(t, err)
	back, err := ImportTemplates(data)
	assert.NoError(t, err)
	assert.Empty(t, back)
}
