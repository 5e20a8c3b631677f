package workflow

import (
	"slices"
	"sort"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
)

// Graph holds the ordered collection of workflow statuses and the
// allowed-transition relation between them. It is pure data plus query
// logic: callers own it explicitly and rebuild it when the status
// collection changes, read-through caching is the persistence layer's
// concern.
type Graph struct {
	statuses []models.Status
	byID     map[string]models.Status
}

// NewGraph builds a graph from the given statuses, ordered by order index.
func NewGraph(statuses []models.Status) *Graph {
	ordered := make([]models.Status, len(statuses))
	copy(ordered, statuses)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})
	byID := make(map[string]models.Status, len(ordered))
	for _, s := range ordered {
		byID[s.ID] = s
	}
	return &Graph{statuses: ordered, byID: byID}
}

// Statuses returns all statuses ordered by order index.
func (g *Graph) Statuses() []models.Status {
	out := make([]models.Status, len(g.statuses))
	copy(out, g.statuses)
	return out
}

// Get resolves a status by id.
func (g *Graph) Get(id string) (models.Status, error) {
	s, ok := g.byID[id]
	if !ok {
		return models.Status{}, &InvalidStatusError{ID: id}
	}
	return s, nil
}

// IsTransitionAllowed reports whether a task may move from one status to
// another. Finished statuses permit no transitions at all. A self-loop is
// never allowed. An empty allowed-next set is a permissive wildcard over
// every non-finished status; an explicit set is taken literally.
func (g *Graph) IsTransitionAllowed(fromID, toID string) (bool, error) {
	from, ok := g.byID[fromID]
	if !ok {
		return false, &InvalidStatusError{ID: fromID}
	}
	to, ok := g.byID[toID]
	if !ok {
		return false, &InvalidStatusError{ID: toID}
	}
	if fromID == toID {
		return false, nil
	}
	if from.IsFinished {
		return false, nil
	}
	if len(from.AllowedNext) == 0 {
		return !to.IsFinished, nil
	}
	return slices.Contains(from.AllowedNext, toID), nil
}

// AllowedNext resolves the legal next-status menu for a status, in order
// index order. Stale ids in the allowed list are skipped rather than
// failing the whole menu.
func (g *Graph) AllowedNext(fromID string) ([]models.Status, error) {
	from, ok := g.byID[fromID]
	if !ok {
		return nil, &InvalidStatusError{ID: fromID}
	}
	if from.IsFinished {
		return nil, nil
	}
	var next []models.Status
	if len(from.AllowedNext) == 0 {
		for _, s := range g.statuses {
			if s.ID != fromID && !s.IsFinished {
				next = append(next, s)
			}
		}
		return next, nil
	}
	for _, s := range g.statuses {
		if s.ID != fromID && slices.Contains(from.AllowedNext, s.ID) {
			next = append(next, s)
		}
	}
	return next, nil
}

// Default returns the status flagged as default, falling back to the
// lowest order index when none is flagged.
func (g *Graph) Default() (models.Status, error) {
	if len(g.statuses) == 0 {
		return models.Status{}, &ConfigurationError{Reason: "no statuses defined"}
	}
	for _, s := range g.statuses {
		if s.IsDefault {
			return s, nil
		}
	}
	return g.statuses[0], nil
}

// Reorder reassigns order indexes following the given id sequence and
// returns the updated statuses. Transition legality is untouched. Every
// status in the graph must appear exactly once.
func (g *Graph) Reorder(ids []string) ([]models.Status, error) {
	if len(ids) != len(g.statuses) {
		return nil, &ConfigurationError{Reason: "reorder list does not cover all statuses"}
	}
	seen := make(map[string]struct{}, len(ids))
	updated := make([]models.Status, 0, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, &ConfigurationError{Reason: "duplicate status id in reorder list"}
		}
		seen[id] = struct{}{}
		s, ok := g.byID[id]
		if !ok {
			return nil, &InvalidStatusError{ID: id}
		}
		s.OrderIndex = i
		updated = append(updated, s)
	}
	return updated, nil
}

// StripStatus removes the given id from every status's allowed-next list
// and returns only the statuses that changed. Used as referential cleanup
// when a status is deleted so no allowed list dangles.
func (g *Graph) StripStatus(deletedID string) []models.Status {
	var changed []models.Status
	for _, s := range g.statuses {
		if s.ID == deletedID {
			continue
		}
		idx := slices.Index(s.AllowedNext, deletedID)
		if idx < 0 {
			continue
		}
		s.AllowedNext = slices.Delete(slices.Clone(s.AllowedNext), idx, idx+1)
		changed = append(changed, s)
	}
	return changed
}
