package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrValidation = errors.New("validation error")

// Status is the workflow state of a task.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Label is the human form used in counts and badges ("In Progress").
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "TODO"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), "-", "_")))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, v)
	}
	return s, nil
}

type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

var priorityLabels = [...]string{"Low", "Medium", "High", "Urgent"}

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityLabels[p]
}

func ParsePriority(v string) (Priority, error) {
	for i, l := range priorityLabels {
		if strings.EqualFold(l, strings.TrimSpace(v)) {
			return Priority(i), nil
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && Priority(n).Valid() {
		return Priority(n), nil
	}
	return 0, fmt.Errorf("%w: unknown priority %q", ErrValidation, v)
}

// Task is an entity as the store holds it. ID is positive once the store
// has confirmed it and negative while an optimistic create is in flight.
type Task struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           Status     `json:"status"`
	Priority         Priority   `json:"priority"`
	EstimatedMinutes *int       `json:"estimated_minutes"`
	DueAt            *time.Time `json:"due_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Confirmed reports whether the task carries an id assigned by the store.
// Optimistic creates use negative ids until the store answers.
func (t Task) Confirmed() bool {
	return t.ID > 0
}

// Clone returns a copy that shares no memory with t.
func (t Task) Clone() Task {
	c := t
	if t.EstimatedMinutes != nil {
		v := *t.EstimatedMinutes
		c.EstimatedMinutes = &v
	}
	if t.DueAt != nil {
		v := *t.DueAt
		c.DueAt = &v
	}
	return c
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: priority must be between %d and %d", ErrValidation, PriorityLow, PriorityUrgent)
	}
	if t.EstimatedMinutes != nil && *t.EstimatedMinutes <= 0 {
		return fmt.Errorf("%w: estimated_minutes must be positive", ErrValidation)
	}
	return nil
}

// TaskDraft is a task that has not been persisted yet.
type TaskDraft struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           Status     `json:"status,omitempty"`
	Priority         Priority   `json:"priority"`
	EstimatedMinutes *int       `json:"estimated_minutes,omitempty"`
	DueAt            *time.Time `json:"due_at,omitempty"`
}

// Task builds the task a store would hold for d, with defaults applied.
func (d TaskDraft) Task() Task {
	t := Task{
		Title:            strings.TrimSpace(d.Title),
		Description:      d.Description,
		Status:           d.Status,
		Priority:         d.Priority,
		EstimatedMinutes: d.EstimatedMinutes,
		DueAt:            d.DueAt,
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	return t.Clone()
}

func (d TaskDraft) Validate() error {
	return d.Task().Validate()
}

// TaskPatch carries the fields of a partial update. Nil pointers and unset
// fields leave the stored value untouched.
type TaskPatch struct {
	Title            *string          `json:"title,omitempty"`
	Description      *string          `json:"description,omitempty"`
	Status           *Status          `json:"status,omitempty"`
	Priority         *Priority        `json:"priority,omitempty"`
	EstimatedMinutes Field[int]       `json:"estimated_minutes,omitzero"`
	DueAt            Field[time.Time] `json:"due_at,omitzero"`
}

func StatusPatch(s Status) TaskPatch {
	return TaskPatch{Status: &s}
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		!p.EstimatedMinutes.Set && !p.DueAt.Set
}

// Apply returns t with the patch merged in. t itself is not modified.
func (p TaskPatch) Apply(t Task) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.EstimatedMinutes.Set {
		out.EstimatedMinutes = p.EstimatedMinutes.Ptr()
	}
	if p.DueAt.Set {
		out.DueAt = p.DueAt.Ptr()
	}
	return out
}

// Validate checks only the fields the patch sets.
func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: priority must be between %d and %d", ErrValidation, PriorityLow, PriorityUrgent)
	}
	if v := p.EstimatedMinutes.Ptr(); v != nil && *v <= 0 {
		return fmt.Errorf("%w: estimated_minutes must be positive", ErrValidation)
	}
	return nil
}

type TaskFilter struct {
	Status *Status
}
