package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
)

func pipelineStatuses() []models.Status {
	return []models.Status{
		{ID: "pending", Label: "Pending", OrderIndex: 0, IsDefault: true, AllowedNext: []string{"in_design"}},
		{ID: "in_design", Label: "In Design", OrderIndex: 1, AllowedNext: []string{"review"}},
		{ID: "review", Label: "Review", OrderIndex: 2, AllowedNext: []string{"in_design", "done"}},
		{ID: "done", Label: "Done", OrderIndex: 3, IsFinished: true},
	}
}

func TestIsTransitionAllowed(t *testing.T) {
	g := NewGraph(pipelineStatuses())

	t.Run("ExplicitListPermits", func(t *testing.T) {
		ok, err := g.IsTransitionAllowed("pending", "in_design")
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ExplicitListForbids", func(t *testing.T) {
		ok, err := g.IsTransitionAllowed("pending", "done")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("BackwardEdgeWorks", func(t *testing.T) {
		ok, err := g.IsTransitionAllowed("review", "in_design")
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("FinishedHasNoExits", func(t *testing.T) {
		for _, to := range []string{"pending", "in_design", "review"} {
			ok, err := g.IsTransitionAllowed("done", to)
			assert.NoError(t, err)
			assert.False(t, ok, "done -> %s should be forbidden", to)
		}
	})

	t.Run("SelfLoopForbidden", func(t *testing.T) {
		ok, err := g.IsTransitionAllowed("review", "review")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("UnknownStatusErrors", func(t *testing.T) {
		_, err := g.IsTransitionAllowed("pending", "nope")
		var invalid *InvalidStatusError
		assert.ErrorAs(t, err, &invalid)
		assert.Equal(t, "nope", invalid.ID)

		_, err = g.IsTransitionAllowed("nope", "pending")
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("EmptyListIsWildcardOverUnfinished", func(t *testing.T) {
		wild := NewGraph([]models.Status{
			{ID: "open", OrderIndex: 0},
			{ID: "hold", OrderIndex: 1},
			{ID: "closed", OrderIndex: 2, IsFinished: true},
		})
		ok, err := wild.IsTransitionAllowed("open", "hold")
		assert.NoError(t, err)
		assert.True(t, ok)
		ok, err = wild.IsTransitionAllowed("open", "closed")
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAllowedNext(t *testing.T) {
	g := NewGraph(pipelineStatuses())

	t.Run("MenuFollowsOrderIndex", func(t *testing.T) {
		next, err := g.AllowedNext("review")
		assert.NoError(t, err)
		assert.Len(t, next, 2)
		assert.Equal(t, "in_design", next[0].ID)
		assert.Equal(t, "done", next[1].ID)
	})

	t.Run("FinishedHasEmptyMenu", func(t *testing.T) {
		next, err := g.AllowedNext("done")
		assert.NoError(t, err)
		assert.Empty(t, next)
	})

	t.Run("StaleIDsAreSkipped", func(t *testing.T) {
		stale := NewGraph([]models.Status{
			{ID: "a", OrderIndex: 0, AllowedNext: []string{"gone", "b"}},
			{ID: "b", OrderIndex: 1},
		})
		next, err := stale.AllowedNext("a")
		assert.NoError(t, err)
		assert.Len(t, next, 1)
		assert.Equal(t, "b", next[0].ID)
	})

	t.Run("UnknownStatusErrors", func(t *testing.T) {
		_, err := g.AllowedNext("nope")
		var invalid *InvalidStatusError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestDefault(t *testing.T) {
	t.Run("FlaggedDefaultWins", func(t *testing.T) {
		g := NewGraph(pipelineStatuses())
		def, err := g.Default()
		assert.NoError(t, err)
		assert.Equal(t, "pending", def.ID)
	})

	t.Run("FallsBackToLowestOrder", func(t *testing.T) {
		g := NewGraph([]models.Status{
			{ID: "b", OrderIndex: 5},
			{ID: "a", OrderIndex: 2},
		})
		def, err := g.Default()
		assert.NoError(t, err)
		assert.Equal(t, "a", def.ID)
	})

	t.Run("EmptyGraphErrors", func(t *testing.T) {
		g := NewGraph(nil)
		_, err := g.Default()
		var cfg *ConfigurationError
		assert.ErrorAs(t, err, &cfg)
	})
}

func TestReorder(t *testing.T) {
	t.Run("ReassignsIndexes", func(t *testing.T) {
		g := NewGraph(pipelineStatuses())
		updated, err := g.Reorder([]string{"done", "review", "in_design", "pending"})
		assert.NoError(t, err)
		assert.Equal(t, "done", updated[0].ID)
		assert.Equal(t, 0, updated[0].OrderIndex)
		assert.Equal(t, "pending", updated[3].ID)
		assert.Equal(t, 3, updated[3].OrderIndex)
	})

	t.Run("RejectsPartialCoverage", func(t *testing.T) {
		g := NewGraph(pipelineStatuses())
		_, err := g.Reorder([]string{"pending", "done"})
		var cfg *ConfigurationError
		assert.ErrorAs(t, err, &cfg)
	})

	t.Run("RejectsDuplicates", func(t *testing.T) {
		g := NewGraph(pipelineStatuses())
		_, err := g.Reorder([]string{"pending", "pending", "review", "done"})
		var cfg *ConfigurationError
		assert.ErrorAs(t, err, &cfg)
	})

	t.Run("RejectsUnknownID", func(t *testing.T) {
		g := NewGraph(pipelineStatuses())
		_, err := g.Reorder([]string{"pending", "in_design", "review", "nope"})
		var invalid *InvalidStatusError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestStripStatus(t *testing.T) {
	g := NewGraph(pipelineStatuses())
	changed := g.StripStatus("in_design")
	assert.Len(t, changed, 2)
	ids := map[string][]string{}
	for _, s := range changed {
		ids[s.ID] = s.AllowedNext
	}
	assert.Equal(t, []string{}, ids["pending"])
	assert.Equal(t, []string{"done"}, ids["review"])

	// untouched statuses are not reported
	assert.NotContains(t, ids, "done")
}
