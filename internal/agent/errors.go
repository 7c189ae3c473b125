package agent

import "fmt"

// RunawayLoopError reports a run that exceeded its hop ceiling.
type RunawayLoopError struct {
	Hops  int
	Track string
}

func (e *RunawayLoopError) Error() string {
	return fmt.Sprintf("run on %s track exceeded %d hops without a final answer", e.Track, e.Hops)
}

// BindingError reports a track bound to a tool the registry does not hold.
type BindingError struct {
	Track string
	Tool  string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("track %s binds unknown tool %q", e.Track, e.Tool)
}
