package workflow

import (
	"math"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
)

// Progress is a root task's derived completion view. It is recomputed from
// the subtasks on every read, never stored.
type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Tier buckets a progress value for display.
type Tier string

const (
	LowTier      Tier = "low"      // < 40%
	MidTier      Tier = "mid"      // 40-69%
	HighTier     Tier = "high"     // 70-99%
	CompleteTier Tier = "complete" // 100%
)

// ComputeProgress counts subtasks whose status is finished. Subtasks whose
// status id no longer resolves count as unfinished rather than failing.
// An empty subtask list yields zero values, not a division error.
func ComputeProgress(g *Graph, subtasks []models.Task) Progress {
	p := Progress{Total: len(subtasks)}
	if p.Total == 0 {
		return p
	}
	for _, sub := range subtasks {
		if s, ok := g.byID[sub.StatusID]; ok && s.IsFinished {
			p.Completed++
		}
	}
	p.Percentage = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	return p
}

// Tier returns the display bucket for the percentage.
func (p Progress) Tier() Tier {
	switch {
	case p.Percentage >= 100:
		return CompleteTier
	case p.Percentage >= 70:
		return HighTier
	case p.Percentage >= 40:
		return MidTier
	default:
		return LowTier
	}
}
