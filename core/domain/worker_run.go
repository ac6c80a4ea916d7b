package domain

import "time"

// RunStatus values recorded in the run history.
const (
	RunStatusRunning = "running"
	RunStatusFailed  = "failed"
)

// RunRecord is one row of pipeline run history.
type RunRecord struct {
	UUID       string
	Keyword    string
	Country    string
	User       string
	Steps      []string
	Status     string
	NumResults int
	NumKept    int
	Usage      map[string]int
	OutputDir  string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// StepSucceeded is the status set after a step finishes, e.g. "CountryFilterer successful".
func StepSucceeded(step string) string {
	return step + " successful"
}
