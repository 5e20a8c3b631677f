package workflow

import "fmt"

// InvalidStatusError reports a reference to a status id that does not
// exist in the graph.
type InvalidStatusError struct {
	ID string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("unknown status '%s'", e.ID)
}

// IllegalTransitionError reports a transition the graph does not permit.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("transition from '%s' to '%s' is not allowed", e.From, e.To)
}

// ConfigurationError reports an unusable graph configuration, e.g. no
// statuses defined at all.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("workflow configuration error: %s", e.Reason)
}
