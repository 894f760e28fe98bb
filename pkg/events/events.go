// Package events defines the event vocabulary published on every
// execution and step state transition. The graph view and the audit
// consumers subscribe to this change feed instead of polling the store.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/credenflow/credenflow/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "credenflow.events"                     // Execution and step lifecycle events
const CommandTopic = "credenflow.execution.commands"  // API-to-worker dispatch commands

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"

	// Step lifecycle events.
	StepStartedEvent   EventType = "step.started"
	StepCompletedEvent EventType = "step.completed"
	StepFailedEvent    EventType = "step.failed"
	StepSkippedEvent   EventType = "step.skipped"
	StepPausedEvent    EventType = "step.paused"

	// Dispatch commands consumed by the worker.
	ExecutionRequestedEvent EventType = "execution.requested"
	ResumeRequestedEvent    EventType = "execution.resume.requested"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// Execution lifecycle events

type ExecutionStarted struct {
	BaseEvent

	ExecutionID     string         `json:"execution_id"`
	WorkflowVersion int            `json:"workflow_version"`
	InputData       map[string]any `json:"input_data,omitempty"`
	IsRetry         bool           `json:"is_retry"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	DurationMs    int64  `json:"duration_ms"`
	StepsExecuted int    `json:"steps_executed"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionPaused struct {
	BaseEvent

	ExecutionID     string `json:"execution_id"`
	PausedAtNode    string `json:"paused_at_node"`
	StepExecutionID string `json:"step_execution_id"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID     string          `json:"execution_id"`
	StepExecutionID string          `json:"step_execution_id"`
	Decision        models.Decision `json:"decision"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

// Step lifecycle events

type StepStarted struct {
	BaseEvent

	ExecutionID string          `json:"execution_id"`
	StepID      string          `json:"step_id"`
	NodeID      string          `json:"node_id"`
	NodeType    models.NodeType `json:"node_type"`
}

func (e StepStarted) GetType() EventType {
	return StepStartedEvent
}

type StepCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	StepID      string         `json:"step_id"`
	NodeID      string         `json:"node_id"`
	Output      map[string]any `json:"output,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	NodeID      string `json:"node_id"`
	Error       string `json:"error"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}

type StepSkipped struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	NodeID      string `json:"node_id"`
}

func (e StepSkipped) GetType() EventType {
	return StepSkippedEvent
}

type StepPaused struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	NodeID      string `json:"node_id"`
	ResumeToken string `json:"resume_token"`
}

func (e StepPaused) GetType() EventType {
	return StepPausedEvent
}

// Dispatch commands

// ExecutionRequested asks a worker to start (or retry) an execution.
type ExecutionRequested struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

// ResumeRequested asks a worker to resume a paused step.
type ResumeRequested struct {
	BaseEvent

	ExecutionID     string          `json:"execution_id"`
	StepExecutionID string          `json:"step_execution_id"`
	Decision        models.Decision `json:"decision"`
	ResumeData      map[string]any  `json:"resume_data,omitempty"`
}

func (e ResumeRequested) GetType() EventType {
	return ResumeRequestedEvent
}
