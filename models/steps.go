package models

import (
	"errors"
	"fmt"
	"time"
)

type StepID string

const (
	StepUpload   StepID = "upload"
	StepParse    StepID = "parse"
	StepTokenize StepID = "tokenize"
	StepChunk    StepID = "chunk"
	StepEmbed    StepID = "embed"
)

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// IsTerminal reports whether a step in this status may no longer change.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed
}

var (
	ErrUnknownStep       = errors.New("unknown analysis step")
	ErrStepTerminal      = errors.New("analysis step already finished")
	ErrInvalidTransition = errors.New("invalid analysis step transition")
)

// stepOrder fixes both the identity set and the display order of the pipeline.
var stepOrder = []struct {
	id    StepID
	label string
}{
	{StepUpload, "Upload"},
	{StepParse, "Analyse des Dokuments"},
	{StepTokenize, "Tokenisierung"},
	{StepChunk, "Chunking"},
	{StepEmbed, "LangChain + Redis Embeddings"},
}

// AnalysisStep is the status of one pipeline stage.
type AnalysisStep struct {
	ID         StepID         `json:"id"`
	Label      string         `json:"label"`
	Status     StepStatus     `json:"status"`
	DurationMs *int64         `json:"durationMs,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// AnalysisSteps is an immutable step list. Every transition returns a new list
// and leaves the receiver untouched.
type AnalysisSteps []AnalysisStep

// NewAnalysisSteps returns the five steps with upload already completed.
func NewAnalysisSteps() AnalysisSteps {
	steps := make(AnalysisSteps, len(stepOrder))
	for i, s := range stepOrder {
		status := StepPending
		if s.id == StepUpload {
			status = StepCompleted
		}
		steps[i] = AnalysisStep{ID: s.id, Label: s.label, Status: status}
	}
	return steps
}

// Get returns the step with the given id.
func (s AnalysisSteps) Get(id StepID) (AnalysisStep, bool) {
	for _, step := range s {
		if step.ID == id {
			return step, true
		}
	}
	return AnalysisStep{}, false
}

// Start moves a pending step to in_progress.
func (s AnalysisSteps) Start(id StepID) (AnalysisSteps, error) {
	return s.transition(id, func(step AnalysisStep) (AnalysisStep, error) {
		if step.Status != StepPending {
			return step, fmt.Errorf("%w: %s is %s, want %s", ErrInvalidTransition, id, step.Status, StepPending)
		}
		step.Status = StepInProgress
		return step, nil
	})
}

// Complete moves an in_progress step to completed, recording its duration and meta.
func (s AnalysisSteps) Complete(id StepID, elapsed time.Duration, meta map[string]any) (AnalysisSteps, error) {
	return s.transition(id, func(step AnalysisStep) (AnalysisStep, error) {
		if step.Status != StepInProgress {
			return step, fmt.Errorf("%w: %s is %s, want %s", ErrInvalidTransition, id, step.Status, StepInProgress)
		}
		step.Status = StepCompleted
		step.DurationMs = durationMs(elapsed)
		step.Meta = meta
		return step, nil
	})
}

// Fail marks a pending or in_progress step as failed.
func (s AnalysisSteps) Fail(id StepID, elapsed time.Duration, reason string) (AnalysisSteps, error) {
	return s.transition(id, func(step AnalysisStep) (AnalysisStep, error) {
		step.Status = StepFailed
		step.DurationMs = durationMs(elapsed)
		if reason != "" {
			step.Meta = map[string]any{"error": reason}
		}
		return step, nil
	})
}

func (s AnalysisSteps) transition(id StepID, apply func(AnalysisStep) (AnalysisStep, error)) (AnalysisSteps, error) {
	for i, step := range s {
		if step.ID != id {
			continue
		}
		if step.Status.IsTerminal() {
			return s, fmt.Errorf("%w: %s is %s", ErrStepTerminal, id, step.Status)
		}
		updated, err := apply(step)
		if err != nil {
			return s, err
		}
		next := make(AnalysisSteps, len(s))
		copy(next, s)
		next[i] = updated
		return next, nil
	}
	return s, fmt.Errorf("%w: %s", ErrUnknownStep, id)
}

func durationMs(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
