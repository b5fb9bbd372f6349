package processor

import (
	"strings"

	"github.com/smartdevs17/workflow-relay/internal/models"
)

// statusAliases maps lower-cased incoming statuses to log types
var statusAliases = map[string]models.LogType{
	"success":              models.LogTypeSuccess,
	"failure":              models.LogTypeFailure,
	"waiting":              models.LogTypeWaiting,
	"waiting for approval": models.LogTypeWaiting,
}

// NormalizeStatus maps a raw status to the closed set of log types. Matching
// is exact after trimming and lower-casing; anything unrecognized is info.
func NormalizeStatus(raw string) models.LogType {
	if logType, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return logType
	}
	return models.LogTypeInfo
}

// Normalize derives the log type of an incoming record from its status,
// falling back to its type field
func Normalize(record *models.LogRecord) models.LogType {
	if record == nil {
		return models.LogTypeInfo
	}
	return NormalizeStatus(record.RawStatus())
}
