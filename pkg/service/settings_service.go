package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/notify"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/storage"
)

// SettingsService administers notification recipients and message
// templates.
type SettingsService struct {
	store  storage.Store
	router *notify.Router
	logger Logger
}

func NewSettingsService(store storage.Store, router *notify.Router, logger Logger) *SettingsService {
	return &SettingsService{store: store, router: router, logger: logger}
}

// ListRecipients returns all configured recipients.
func (s *SettingsService) ListRecipients(ctx context.Context) ([]models.Recipient, error) {
	return s.store.ListRecipients()
}

// CreateRecipient registers a new recipient. Phone and per-recipient API
// key are both mandatory, the gateway authenticates each number separately.
func (s *SettingsService) CreateRecipient(ctx context.Context, r models.Recipient) (models.Recipient, error) {
	if r.Phone == "" {
		return models.Recipient{}, errors.New("recipient phone cannot be empty")
	}
	if r.APIKey == "" {
		return models.Recipient{}, errors.New("recipient api key cannot be empty")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.store.SaveRecipient(r); err != nil {
		return models.Recipient{}, fmt.Errorf("failed to save recipient: %v", err)
	}
	s.logger.Infof("Created recipient '%s' (%s)", r.Name, r.Phone)
	return r, nil
}

// UpdateRecipient replaces a recipient's attributes and preferences.
func (s *SettingsService) UpdateRecipient(ctx context.Context, r models.Recipient) error {
	if r.Phone == "" {
		return errors.New("recipient phone cannot be empty")
	}
	if err := s.store.UpdateRecipient(r); err != nil {
		return fmt.Errorf("failed to update recipient %s: %v", r.ID, err)
	}
	return nil
}

// DeleteRecipient removes a recipient.
func (s *SettingsService) DeleteRecipient(ctx context.Context, id string) error {
	if err := s.store.DeleteRecipient(id); err != nil {
		return fmt.Errorf("failed to delete recipient %s: %v", id, err)
	}
	return nil
}

// Templates returns the effective template text per type: the stored
// override when present, the built-in default otherwise.
func (s *SettingsService) Templates(ctx context.Context) (map[models.EventType]string, error) {
	overrides, err := s.store.GetTemplateOverrides()
	if err != nil {
		return nil, fmt.Errorf("failed to load template overrides: %v", err)
	}
	out := make(map[models.EventType]string, len(models.EventTypes()))
	for _, t := range models.EventTypes() {
		if text, ok := overrides[t]; ok && text != "" {
			out[t] = text
			continue
		}
		if text, ok := notify.DefaultTemplate(t); ok {
			out[t] = text
		}
	}
	return out, nil
}

// SaveTemplateOverride validates and stores an override for a template
// type. Malformed placeholders and missing required variables block the
// save; unknown-but-well-formed placeholders do not.
func (s *SettingsService) SaveTemplateOverride(ctx context.Context, t models.EventType, text string) (notify.ValidationResult, error) {
	if !notify.KnownEventType(string(t)) {
		return notify.ValidationResult{}, fmt.Errorf("unknown template type '%s'", t)
	}
	res := notify.Validate(text, t)
	if !res.Valid {
		return res, fmt.Errorf("invalid template for '%s': %v", t, res.Errors)
	}
	if len(res.MissingRequired) > 0 {
		return res, fmt.Errorf("template for '%s' is missing required variables: %v", t, res.MissingRequired)
	}
	if err := s.store.SaveTemplateOverride(t, text); err != nil {
		return res, fmt.Errorf("failed to save template override: %v", err)
	}
	for _, w := range res.Warnings {
		s.logger.Infof("Template '%s' saved with warning: %s", t, w)
	}
	return res, nil
}

// ResetTemplate deletes the override so the type renders from its default.
func (s *SettingsService) ResetTemplate(ctx context.Context, t models.EventType) error {
	if !notify.KnownEventType(string(t)) {
		return fmt.Errorf("unknown template type '%s'", t)
	}
	if err := s.store.DeleteTemplateOverride(t); err != nil {
		return fmt.Errorf("failed to reset template '%s': %v", t, err)
	}
	return nil
}

// Preview renders a template type with its catalogue example values
// without sending anything.
func (s *SettingsService) Preview(ctx context.Context, t models.EventType) (string, error) {
	templates, err := s.Templates(ctx)
	if err != nil {
		return "", err
	}
	text, ok := templates[t]
	if !ok {
		return "", fmt.Errorf("unknown template type '%s'", t)
	}
	return notify.Render(text, notify.ExampleVariables(t)), nil
}

// TestSend delivers a rendered example message to a single recipient.
// Unlike event dispatch this surfaces the delivery error to the caller, a
// human is waiting to see whether the gateway works.
func (s *SettingsService) TestSend(ctx context.Context, recipientID string, t models.EventType) (string, error) {
	rec, err := s.store.GetRecipient(recipientID)
	if err != nil {
		return "", fmt.Errorf("recipient %s not found: %v", recipientID, err)
	}
	overrides, err := s.store.GetTemplateOverrides()
	if err != nil {
		return "", fmt.Errorf("failed to load template overrides: %v", err)
	}

	vars := notify.ExampleVariables(t)
	results, err := s.router.Dispatch(ctx, notify.Event{Type: t, Vars: vars}, []models.Recipient{forceEnabled(rec)}, overrides)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", errors.New("recipient was filtered out of the test send")
	}
	res := results[0]
	if res.Err != nil {
		return res.Message, fmt.Errorf("test send to %s failed: %v", rec.Phone, res.Err)
	}
	s.logger.Infof("Test %s notification delivered to %s", t, rec.Phone)
	return res.Message, nil
}

// ExportTemplates serializes the stored overrides into a portable JSON
// document.
func (s *SettingsService) ExportTemplates(ctx context.Context) ([]byte, error) {
	overrides, err := s.store.GetTemplateOverrides()
	if err != nil {
		return nil, fmt.Errorf("failed to load template overrides: %v", err)
	}
	return notify.ExportTemplates(overrides)
}

// ImportTemplates validates and stores the override set from an export
// document, replacing existing overrides for the types it names.
func (s *SettingsService) ImportTemplates(ctx context.Context, data []byte) (err error) {
	overrides, err := notify.ImportTemplates(data)
	if err != nil {
		return err
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	for t, text := range overrides {
		if err = txStore.SaveTemplateOverride(t, text); err != nil {
			return fmt.Errorf("failed to save template override '%s': %v", t, err)
		}
	}
	s.logger.Infof("Imported %d template overrides", len(overrides))
	return nil
}

// forceEnabled makes a copy that passes the router's filters so a test
// send reaches even a recipient whose preferences would normally skip it.
func forceEnabled(r models.Recipient) models.Recipient {
	r.Enabled = true
	r.Role = ""
	r.Preferences = models.Preferences{}
	return r
}
