package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

var (
	// ErrEmptyBody is returned for an absent, null or empty ingestion body
	ErrEmptyBody = utils.NewAppError(utils.ErrCodeValidation, "Request body is empty")
	// ErrInvalidBody is returned when a record is not a JSON object
	ErrInvalidBody = utils.NewAppError(utils.ErrCodeValidation, "Log record must be a JSON object")
)

// Recognized record fields
const (
	FieldStatus           = "status"
	FieldType             = "type"
	FieldDraftExecutionID = "draft_workflow_execution_id"
	FieldExecutionID      = "execution_id"
	FieldPlatform         = "platform"
)

// LogRecord is an incoming log record as submitted by the workflow engine.
// The recognized control fields are lifted out; everything except status and
// type stays in Fields.
type LogRecord struct {
	Status           string
	Type             string
	DraftExecutionID string
	Platform         string
	Fields           map[string]interface{}

	hadKeys bool
}

// NewLogRecord builds a record from a decoded JSON object
func NewLogRecord(fields map[string]interface{}) *LogRecord {
	record := &LogRecord{
		Fields:  make(map[string]interface{}, len(fields)),
		hadKeys: len(fields) > 0,
	}

	for key, value := range fields {
		switch key {
		case FieldStatus:
			record.Status, _ = value.(string)
		case FieldType:
			record.Type, _ = value.(string)
		default:
			record.Fields[key] = value
		}
	}

	record.DraftExecutionID = CorrelationString(fields[FieldDraftExecutionID])
	record.Platform = CorrelationString(fields[FieldPlatform])
	return record
}

// UnmarshalJSON decodes a JSON object into the record
func (r *LogRecord) UnmarshalJSON(data []byte) error {
	record, err := decodeRecord(data)
	if err != nil {
		return err
	}
	*r = *record
	return nil
}

// RawStatus returns the status string used for normalization: status when
// set, type otherwise.
func (r *LogRecord) RawStatus() string {
	if strings.TrimSpace(r.Status) != "" {
		return r.Status
	}
	return r.Type
}

// Data returns a copy of the caller fields without status and type
func (r *LogRecord) Data() map[string]interface{} {
	data := make(map[string]interface{}, len(r.Fields))
	for key, value := range r.Fields {
		data[key] = value
	}
	return data
}

// ParseLogRecords decodes a request body holding one record or an array of
// records. Elements that are not JSON objects come back as nil records with
// a matching error so the caller can skip them individually.
func ParseLogRecords(body []byte) ([]*LogRecord, []error, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil, ErrEmptyBody
	}

	switch trimmed[0] {
	case '{':
		record, err := decodeRecord(trimmed)
		if err != nil {
			return nil, nil, err
		}
		if !record.hadKeys {
			return nil, nil, ErrEmptyBody
		}
		return []*LogRecord{record}, []error{nil}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, nil, ErrInvalidBody
		}
		if len(items) == 0 {
			return nil, nil, ErrEmptyBody
		}
		records := make([]*LogRecord, len(items))
		errs := make([]error, len(items))
		for i, item := range items {
			records[i], errs[i] = decodeRecord(item)
		}
		return records, errs, nil
	default:
		return nil, nil, ErrInvalidBody
	}
}

func decodeRecord(raw json.RawMessage) (*LogRecord, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, ErrInvalidBody
	}
	if fields == nil {
		return nil, ErrInvalidBody
	}
	return NewLogRecord(fields), nil
}

// CorrelationString renders a correlation field value for comparison, so the
// JSON number 520 and the string "520" compare equal. Values that cannot act
// as a correlation key render as "".
func CorrelationString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
