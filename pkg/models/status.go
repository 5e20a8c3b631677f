package models

// Status represents a node in the workflow graph a task can occupy.
type Status struct {
	ID          string   `json:"id" db:"id"`                   // Stable user-assigned identifier (e.g., "in_design")
	Label       string   `json:"label" db:"label"`             // Display label
	Color       string   `json:"color" db:"color"`             // Color theme tag (e.g., "blue")
	Icon        string   `json:"icon" db:"icon"`               // Icon tag (e.g., "fa-solid fa-palette")
	OrderIndex  int      `json:"orderIndex" db:"order_index"`  // Position in the workflow
	IsFinished  bool     `json:"isFinished" db:"is_finished"`  // Terminal state, no outgoing transitions
	IsDefault   bool     `json:"isDefault" db:"is_default"`    // Seeds newly created tasks (at most one)
	IsCancelled bool     `json:"isCancelled" db:"is_cancelled"`// Terminal state reached via abnormal path
	AllowedNext []string `json:"allowedNextStatuses" db:"-"`   // Reachable status ids; empty = any non-finished
}
