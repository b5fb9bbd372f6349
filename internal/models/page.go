package models

import (
	"math"
	"strconv"
)

// Pagination bounds for log listing
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit within int for every allowed limit
	MaxPage = math.MaxInt / MaxLimit
)

// ListOptions selects one page of the newest-first log listing
type ListOptions struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// NewListOptions clamps page to [1, MaxPage] and limit to [1, MaxLimit]
func NewListOptions(page, limit int) ListOptions {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return ListOptions{Page: page, Limit: limit}
}

// ParseListOptions builds list options from raw query values. Absent or
// non-numeric values fall back to the defaults before clamping.
func ParseListOptions(pageStr, limitStr string) ListOptions {
	page := DefaultPage
	if p, err := strconv.Atoi(pageStr); err == nil {
		page = p
	}

	limit := DefaultLimit
	if l, err := strconv.Atoi(limitStr); err == nil {
		limit = l
	}

	return NewListOptions(page, limit)
}

// Offset returns the number of entries skipped before the page
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// LogPage is one page of log entries, newest first
type LogPage struct {
	Logs  []*LogEntry `json:"logs"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// EmptyLogPage returns a page with no entries for the given options
func EmptyLogPage(opts ListOptions) *LogPage {
	return &LogPage{
		Logs:  []*LogEntry{},
		Total: 0,
		Page:  opts.Page,
		Limit: opts.Limit,
	}
}

// PageBounds returns the [start, end) slice bounds of the page within a
// listing of total entries.
func (o ListOptions) PageBounds(total int) (int, int) {
	start := o.Offset()
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + o.Limit
	if end > total {
		end = total
	}
	if end < start {
		end = start
	}
	return start, end
}
