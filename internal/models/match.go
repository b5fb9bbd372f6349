package models

// WaitingMatch identifies the waiting entry a success record supersedes.
// Platform is optional; an empty Platform matches any platform.
type WaitingMatch struct {
	ExecutionID string `json:"execution_id"`
	Platform    string `json:"platform,omitempty"`
}

// Matches reports whether entry is a waiting entry for this correlation key
func (m WaitingMatch) Matches(entry *LogEntry) bool {
	if entry == nil || entry.Type != LogTypeWaiting {
		return false
	}
	if entry.ExecutionID() != m.ExecutionID {
		return false
	}
	if m.Platform != "" && entry.Platform() != m.Platform {
		return false
	}
	return true
}
