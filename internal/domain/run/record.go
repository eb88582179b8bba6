// Package run provides the run record entity and its lifecycle.
package run

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a run. A run, once started,
// either succeeds or fails; there is no cancelled state.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
)

// Record captures one execution of a dynamic playlist configuration.
type Record struct {
	ID              string     `json:"id"`
	ConfigID        string     `json:"config_id"`
	ConfigName      string     `json:"config_name"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Status          Status     `json:"status"`
	TracksProcessed int        `json:"tracks_processed"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	WarningMessage  string     `json:"warning_message,omitempty"`
	TriggeredBy     Trigger    `json:"triggered_by"`
}

// NewID generates a short unique identifier for runs and configurations.
func NewID() string {
	return uuid.NewString()[:8]
}

// NewRecord creates a running record for the given configuration.
func NewRecord(configID, configName string, trigger Trigger) *Record {
	return &Record{
		ID:          NewID(),
		ConfigID:    configID,
		ConfigName:  configName,
		StartedAt:   time.Now(),
		Status:      StatusRunning,
		TriggeredBy: trigger,
	}
}

// Succeed finalizes the record as successful. A warning (such as skipped
// local files) does not alter the success status.
func (r *Record) Succeed(tracksProcessed int, warning string) {
	now := time.Now()
	r.FinishedAt = &now
	r.Status = StatusSuccess
	r.TracksProcessed = tracksProcessed
	r.WarningMessage = warning
}

// Fail finalizes the record as failed with the failure's message.
func (r *Record) Fail(message string) {
	now := time.Now()
	r.FinishedAt = &now
	r.Status = StatusFailed
	r.ErrorMessage = message
}
