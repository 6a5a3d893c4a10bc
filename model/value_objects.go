// Package model provides value objects for API parameter validation.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// TaskID represents a task id value object.
type TaskID struct {
	value string
}

// NewTaskID creates a new task id value object.
func NewTaskID(idStr string) (*TaskID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return nil, NewValidationError("Task id is required.")
	}
	return &TaskID{value: idStr}, nil
}

// String returns the task id string.
func (t *TaskID) String() string {
	return t.value
}

// ParseSLAHours parses the SLA hours form value. Range checks are left to the
// request validators, which apply different bounds on create and update.
func ParseSLAHours(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	hours, err := strconv.Atoi(s)
	if err != nil {
		return 0, NewValidationError(fmt.Sprintf("SLA hours must be a whole number, got '%s'.", s))
	}
	return hours, nil
}

// ParseFlag parses a boolean form value. An empty value is false.
func ParseFlag(name, s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, NewValidationError(fmt.Sprintf("%s must be true or false, got '%s'.", name, s))
	}
	return v, nil
}

// FilterKind selects which tasks a list query returns.
type FilterKind int

const (
	// FilterAll returns every task.
	FilterAll FilterKind = iota
	// FilterExact returns tasks whose persisted status equals the filter status.
	FilterExact
	// FilterOverdue returns tasks persisted as OVERDUE, plus PENDING tasks past
	// their due date.
	FilterOverdue
)

// StatusFilter represents the status query parameter of the task list.
type StatusFilter struct {
	kind   FilterKind
	status Status
}

// NewStatusFilter creates a status filter value object. An empty string
// selects all tasks.
func NewStatusFilter(s string) (*StatusFilter, error) {
	if strings.TrimSpace(s) == "" {
		return &StatusFilter{kind: FilterAll}, nil
	}

	status, err := ParseStatus(s)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("Invalid status filter: '%s'.", s))
	}
	if status == StatusOverdue {
		return &StatusFilter{kind: FilterOverdue, status: status}, nil
	}
	return &StatusFilter{kind: FilterExact, status: status}, nil
}

// Kind returns the filter kind.
func (f *StatusFilter) Kind() FilterKind {
	return f.kind
}

// Status returns the status for FilterExact and FilterOverdue filters.
func (f *StatusFilter) Status() Status {
	return f.status
}
