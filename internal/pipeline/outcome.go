package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pressworks/disseminator/internal/model"
)

// Status is the terminal state of one attempt.
type Status string

const (
	// StatusSuccess: the package was delivered and the location recorded.
	StatusSuccess Status = "success"
	// StatusSkippedDuplicate: the registry already records a location for
	// this work on this platform. Not a failure.
	StatusSkippedDuplicate Status = "skipped_duplicate"
	// StatusSkippedIneligible: the work fails the platform's eligibility
	// rules. Not a failure; the work may become eligible later.
	StatusSkippedIneligible Status = "skipped_ineligible"
	// StatusFailed: the attempt failed at some stage.
	StatusFailed Status = "failed"
)

// Outcome is the full record of one attempt, terminal whatever happened.
type Outcome struct {
	AttemptID  uuid.UUID
	WorkID     string
	Platform   Platform
	Status     Status
	Stage      Stage
	Kind       Kind
	Reason     string
	Location   *model.LocationRecord
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether the attempt counts against the run's exit code.
// Skips do not.
func (o *Outcome) Failed() bool { return o.Status == StatusFailed }

// Diagnostic renders the one-line form used in logs and bulk summaries.
func (o *Outcome) Diagnostic() string {
	switch o.Status {
	case StatusSuccess:
		return fmt.Sprintf("work %s -> %s: delivered as %s", o.WorkID, o.Platform, o.Location.Location)
	case StatusFailed:
		return fmt.Sprintf("work %s -> %s: failed at %s (%s): %s", o.WorkID, o.Platform, o.Stage, o.Kind, o.Reason)
	default:
		return fmt.Sprintf("work %s -> %s: %s: %s", o.WorkID, o.Platform, o.Status, o.Reason)
	}
}
