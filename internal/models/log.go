package models

import (
	"time"

	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// LogType is the normalized state of a workflow log entry
type LogType string

const (
	LogTypeSuccess LogType = "success"
	LogTypeFailure LogType = "failure"
	LogTypeWaiting LogType = "waiting"
	LogTypeInfo    LogType = "info"
)

// IsValid reports whether t is one of the closed set of log types
func (t LogType) IsValid() bool {
	switch t {
	case LogTypeSuccess, LogTypeFailure, LogTypeWaiting, LogTypeInfo:
		return true
	}
	return false
}

// LogEntry represents a stored workflow execution log entry
type LogEntry struct {
	ID        string                 `json:"id" db:"id"`
	Type      LogType                `json:"type" db:"type"`
	Data      map[string]interface{} `json:"data" db:"data"`
	Timestamp time.Time              `json:"timestamp" db:"created_at"`
}

// NewLogEntry creates an entry with a fresh id. data is owned by the entry
// from this point on.
func NewLogEntry(logType LogType, data map[string]interface{}, timestamp time.Time) *LogEntry {
	if !logType.IsValid() {
		logType = LogTypeInfo
	}
	if data == nil {
		data = make(map[string]interface{})
	}
	return &LogEntry{
		ID:        utils.GenerateID(),
		Type:      logType,
		Data:      data,
		Timestamp: timestamp.UTC(),
	}
}

// ExecutionID returns data.execution_id as a comparable string
func (e *LogEntry) ExecutionID() string {
	return CorrelationString(e.Data[FieldExecutionID])
}

// Platform returns data.platform as a comparable string
func (e *LogEntry) Platform() string {
	return CorrelationString(e.Data[FieldPlatform])
}
