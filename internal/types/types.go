// Package types defines the core data structures shared by the lead store,
// the task board and the reconciliation engine.
package types

import "strings"

// Record is one lead row read from the record store.
type Record struct {
	// Position is the 1-based row number in the store. It is only stable
	// within a single snapshot and must not be cached across runs.
	Position    int    `json:"position"`
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status,omitempty"`
	Origin      string `json:"origin,omitempty"`
	TaskRef     string `json:"task_ref,omitempty"`
}

// Linked reports whether the record carries a reference to a board task.
func (r *Record) Linked() bool {
	return strings.TrimSpace(r.TaskRef) != ""
}

// Trimmed returns a copy of r with surrounding whitespace removed from every field.
func (r Record) Trimmed() Record {
	r.ExternalID = strings.TrimSpace(r.ExternalID)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Email = strings.TrimSpace(r.Email)
	r.Status = strings.TrimSpace(r.Status)
	r.Origin = strings.TrimSpace(r.Origin)
	r.TaskRef = strings.TrimSpace(r.TaskRef)
	return r
}

// RecordUpdate is a partial write to a record. Nil fields are left unchanged.
type RecordUpdate struct {
	Status  *string
	TaskRef *string
}

// IsEmpty reports whether the update carries no fields.
func (u RecordUpdate) IsEmpty() bool {
	return u.Status == nil && u.TaskRef == nil
}

// NewLead holds the fields of a lead row to append to the record store.
type NewLead struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status,omitempty"`
	Origin      string `json:"origin,omitempty"`
}

// Task is a card on the kanban board.
type Task struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body,omitempty"`
	ListID string `json:"list_id"`
	URL    string `json:"url,omitempty"`
}

// NewTask holds the fields of a task to create.
type NewTask struct {
	Title  string
	Body   string
	ListID string
}

// TaskUpdate is a partial write to a task. Nil fields are left unchanged.
type TaskUpdate struct {
	Title  *string
	Body   *string
	ListID *string
}

// IsEmpty reports whether the update carries no fields.
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.Body == nil && u.ListID == nil
}

// Fields returns the names of the fields set on the update, for logging.
func (u TaskUpdate) Fields() []string {
	var fields []string
	if u.Title != nil {
		fields = append(fields, "title")
	}
	if u.Body != nil {
		fields = append(fields, "body")
	}
	if u.ListID != nil {
		fields = append(fields, "list")
	}
	return fields
}
