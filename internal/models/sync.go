package models

import (
	"fmt"
	"time"
)

// SyncStage represents one phase of a job's extraction pipeline.
// Stages progress linearly; StageError is terminal and reachable from any stage.
type SyncStage string

const (
	StageAuthenticating       SyncStage = "authenticating"
	StageNavigating           SyncStage = "navigating"
	StageExtractingSettings   SyncStage = "extracting_settings"
	StageExtractingMembers    SyncStage = "extracting_members"
	StageExtractingSubRecords SyncStage = "extracting_sub_records"
	StageExtractingMetadata   SyncStage = "extracting_metadata"
	StageAggregating          SyncStage = "aggregating"
	StageComplete             SyncStage = "complete"
	StageError                SyncStage = "error"
)

var stageOrder = map[SyncStage]int{
	StageAuthenticating:       0,
	StageNavigating:           1,
	StageExtractingSettings:   2,
	StageExtractingMembers:    3,
	StageExtractingSubRecords: 4,
	StageExtractingMetadata:   5,
	StageAggregating:          6,
	StageComplete:             7,
}

// Order returns the position of the stage in the pipeline progression.
// StageError has no position and returns -1.
func (s SyncStage) Order() int {
	if o, ok := stageOrder[s]; ok {
		return o
	}
	return -1
}

// IsTerminal reports whether the stage ends a pipeline run.
func (s SyncStage) IsTerminal() bool {
	return s == StageComplete || s == StageError
}

// SyncProgress is the live progress record for one in-flight job run.
// It is owned and mutated exclusively by the pipeline; subscribers receive
// copies and must treat them as read-only.
type SyncProgress struct {
	JobID                  string        `json:"job_id"`
	Stage                  SyncStage     `json:"stage"`
	Message                string        `json:"message"`
	Progress               int           `json:"progress"` // 0-100, non-decreasing within a run
	StartTime              time.Time     `json:"start_time"`
	Errors                 []string      `json:"errors,omitempty"`
	Warnings               []string      `json:"warnings,omitempty"`
	EstimatedTimeRemaining time.Duration `json:"estimated_time_remaining,omitempty"`
}

// Clone returns a deep copy safe to hand to subscribers.
func (p *SyncProgress) Clone() SyncProgress {
	c := *p
	if len(p.Errors) > 0 {
		c.Errors = append([]string(nil), p.Errors...)
	}
	if len(p.Warnings) > 0 {
		c.Warnings = append([]string(nil), p.Warnings...)
	}
	return c
}

// DataExtracted records which data categories a job run produced.
type DataExtracted struct {
	Settings   bool `json:"settings"`
	Members    bool `json:"members"`
	SubRecords bool `json:"sub_records"`
	Metadata   bool `json:"metadata"`
}

// SyncResult is the immutable record produced when a job run reaches a
// terminal stage.
type SyncResult struct {
	ID            string        `json:"id" badgerhold:"key"`
	JobID         string        `json:"job_id" badgerhold:"index"`
	Success       bool          `json:"success"`
	Duration      time.Duration `json:"duration"`
	DataExtracted DataExtracted `json:"data_extracted"`
	Errors        []string      `json:"errors,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	ErrKindNavigation     ErrorKind = "NAVIGATION_ERROR"
	ErrKindAuthentication ErrorKind = "AUTHENTICATION_FAILED"
	ErrKindParsing        ErrorKind = "PARSING_ERROR"
	ErrKindUnknown        ErrorKind = "UNKNOWN_ERROR"
)

// ExtractionError is a tagged error carrying the stage and job active at
// failure time. It is propagated up to the coordinator, never swallowed.
type ExtractionError struct {
	Kind    ErrorKind
	Stage   SyncStage
	JobID   string
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s (job %s): %s: %v", e.Kind, e.Stage, e.JobID, e.Message, e.Err)
	}
	return fmt.Sprintf("%s at %s (job %s): %s", e.Kind, e.Stage, e.JobID, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError creates a tagged extraction error.
func NewExtractionError(kind ErrorKind, stage SyncStage, jobID, message string, err error) *ExtractionError {
	return &ExtractionError{
		Kind:    kind,
		Stage:   stage,
		JobID:   jobID,
		Message: message,
		Err:     err,
	}
}
