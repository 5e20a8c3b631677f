package service

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/storage"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/workflow"
)

// StatusService administers the workflow status collection. Mutations that
// touch more than one record (delete with referential cleanup, reorder,
// reset) run in a single transaction.
type StatusService struct {
	store  storage.Store
	logger Logger
}

func NewStatusService(store storage.Store, logger Logger) *StatusService {
	return &StatusService{store: store, logger: logger}
}

// Graph loads the current status collection as a graph.
func (s *StatusService) Graph(ctx context.Context) (*workflow.Graph, error) {
	statuses, err := s.store.ListStatuses()
	if err != nil {
		return nil, fmt.Errorf("failed to load statuses: %v", err)
	}
	return workflow.NewGraph(statuses), nil
}

// List returns all statuses ordered by order index.
func (s *StatusService) List(ctx context.Context) ([]models.Status, error) {
	return s.store.ListStatuses()
}

// AllowedNext resolves the legal next-status menu for a status.
func (s *StatusService) AllowedNext(ctx context.Context, statusID string) ([]models.Status, error) {
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return g.AllowedNext(statusID)
}

// Create adds a new status. The id must be unique; an empty label is
// rejected. A status created as default clears the flag on the previous
// default so at most one status carries it.
func (s *StatusService) Create(ctx context.Context, status models.Status) (err error) {
	if status.ID == "" {
		return errors.New("status id cannot be empty")
	}
	if status.Label == "" {
		return errors.New("status label cannot be empty")
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

	if _, getErr := txStore.GetStatus(status.ID); getErr == nil {
		return fmt.Errorf("status '%s' already exists", status.ID)
	}

	existing, err := txStore.ListStatuses()
	if err != nil {
		return fmt.Errorf("failed to load statuses: %v", err)
	}
	if status.OrderIndex == 0 && len(existing) > 0 {
		status.OrderIndex = existing[len(existing)-1].OrderIndex + 1
	}
	if status.IsDefault {
		if err = s.clearDefault(txStore, existing, status.ID); err != nil {
			return err
		}
	}

	if err = txStore.SaveStatus(status); err != nil {
		return fmt.Errorf("failed to save status '%s': %v", status.ID, err)
	}
	s.logger.Infof("Created status '%s' (%s)", status.Label, status.ID)
	return nil
}

// Update replaces a status's attributes and allowed-transition list.
func (s *StatusService) Update(ctx context.Context, status models.Status) (err error) {
	if status.Label == "" {
		return errors.New("status label cannot be empty")
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

	if _, err = txStore.GetStatus(status.ID); err != nil {
		return &workflow.InvalidStatusError{ID: status.ID}
	}
	if status.IsDefault {
		existing, listErr := txStore.ListStatuses()
		if listErr != nil {
			return fmt.Errorf("failed to load statuses: %v", listErr)
		}
		if err = s.clearDefault(txStore, existing, status.ID); err != nil {
			return err
		}
	}
	if err = txStore.UpdateStatus(status); err != nil {
		return fmt.Errorf("failed to update status '%s': %v", status.ID, err)
	}
	return nil
}

// Delete removes a status. Deletion is refused while any task still holds
// the status; otherwise the id is also stripped from every other status's
// allowed-next list in the same transaction so no reference dangles.
func (s *StatusService) Delete(ctx context.Context, statusID string) (err error) {
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

	if _, err = txStore.GetStatus(statusID); err != nil {
		return &workflow.InvalidStatusError{ID: statusID}
	}
	inUse, err := txStore.ListTasksByStatus(statusID)
	if err != nil {
		return fmt.Errorf("failed to check status usage: %v", err)
	}
	if len(inUse) > 0 {
		return fmt.Errorf("status '%s' is used by %d tasks and cannot be deleted", statusID, len(inUse))
	}

	statuses, err := txStore.ListStatuses()
	if err != nil {
		return fmt.Errorf("failed to load statuses: %v", err)
	}
	for _, changed := range workflow.NewGraph(statuses).StripStatus(statusID) {
		if err = txStore.UpdateStatus(changed); err != nil {
			return fmt.Errorf("failed to strip '%s' from status '%s': %v", statusID, changed.ID, err)
		}
	}
	if err = txStore.DeleteStatus(statusID); err != nil {
		return fmt.Errorf("failed to delete status '%s': %v", statusID, err)
	}

	s.logger.Infof("Deleted status '%s'", statusID)
	return nil
}

// Reorder reassigns order indexes following the given id sequence. The
// sequence must cover every status exactly once.
func (s *StatusService) Reorder(ctx context.Context, ids []string) (err error) {
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

	statuses, err := txStore.ListStatuses()
	if err != nil {
		return fmt.Errorf("failed to load statuses: %v", err)
	}
	updated, err := workflow.NewGraph(statuses).Reorder(ids)
	if err != nil {
		return err
	}
	for _, status := range updated {
		if err = txStore.UpdateStatus(status); err != nil {
			return fmt.Errorf("failed to update order of status '%s': %v", status.ID, err)
		}
	}
	return nil
}

// ResetToDefaults replaces the whole status collection with the built-in
// set. Tasks holding a status that disappears are remapped to the default
// first so no task dangles. Runs in one transaction.
func (s *StatusService) ResetToDefaults(ctx context.Context) (err error) {
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

	defaults := workflow.DefaultStatuses()
	keep := make(map[string]struct{}, len(defaults))
	for _, d := range defaults {
		keep[d.ID] = struct{}{}
	}

	existing, err := txStore.ListStatuses()
	if err != nil {
		return fmt.Errorf("failed to load statuses: %v", err)
	}
	for _, status := range existing {
		if _, ok := keep[status.ID]; ok {
			continue
		}
		orphaned, listErr := txStore.ListTasksByStatus(status.ID)
		if listErr != nil {
			return fmt.Errorf("failed to check status usage: %v", listErr)
		}
		for _, task := range orphaned {
			if err = txStore.UpdateTaskStatus(task.ID, workflow.DefaultStatusID); err != nil {
				return fmt.Errorf("failed to remap task %s: %v", task.ID, err)
			}
		}
		if err = txStore.DeleteStatus(status.ID); err != nil {
			return fmt.Errorf("failed to delete status '%s': %v", status.ID, err)
		}
	}
	for _, d := range defaults {
		if _, getErr := txStore.GetStatus(d.ID); getErr == nil {
			if err = txStore.UpdateStatus(d); err != nil {
				return fmt.Errorf("failed to reset status '%s': %v", d.ID, err)
			}
			continue
		}
		if err = txStore.SaveStatus(d); err != nil {
			return fmt.Errorf("failed to seed status '%s': %v", d.ID, err)
		}
	}

	s.logger.Infof("Reset status collection to %d defaults", len(defaults))
	return nil
}

// SeedDefaults inserts the built-in statuses into an empty collection.
// A non-empty collection is left untouched.
func (s *StatusService) SeedDefaults(ctx context.Context) error {
	existing, err := s.store.ListStatuses()
	if err != nil {
		return fmt.Errorf("failed to load statuses: %v", err)
	}
	if len(existing) > 0 {
		return nil
	}
	return s.ResetToDefaults(ctx)
}

func (s *StatusService) clearDefault(store storage.Store, statuses []models.Status, exceptID string) error {
	for _, status := range statuses {
		if status.IsDefault && status.ID != exceptID {
			status.IsDefault = false
			if err := store.UpdateStatus(status); err != nil {
				return fmt.Errorf("failed to clear default flag on '%s': %v", status.ID, err)
			}
		}
	}
	return nil
}
