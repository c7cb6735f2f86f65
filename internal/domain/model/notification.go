// Package model holds the technology-agnostic business entities of the
// notification service. Nothing in this package knows about Postgres,
// Redis, HTTP, or AMQP.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Priority is the caller-facing delivery priority. Lower stored values
// win the claim race first; the mapping to the stored integer is part
// of the on-disk contract and must not change.
type Priority string

const (
	PriorityHigh    Priority = "HIGH"
	PriorityDefault Priority = "DEFAULT"
	PriorityLow     Priority = "LOW"
)

// priorityValues maps the caller-facing enum to the stored integer
// priority. Lower number means higher priority in the claim ordering.
var priorityValues = map[Priority]int16{
	PriorityHigh:    10,
	PriorityDefault: 50,
	PriorityLow:     100,
}

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	_, ok := priorityValues[p]
	return ok
}

// Value returns the stored integer priority for p. Callers must check
// Valid first; Value returns 0 for an unknown priority.
func (p Priority) Value() int16 {
	return priorityValues[p]
}

// PriorityFromValue maps a stored integer priority back to its
// caller-facing enum. Returns ("", false) for an unrecognized value.
func PriorityFromValue(v int16) (Priority, bool) {
	for p, val := range priorityValues {
		if val == v {
			return p, true
		}
	}
	return "", false
}

// Notification is the parent record for one submitted request. It is
// immutable after creation; only its jobs carry delivery state.
type Notification struct {
	ID          uuid.UUID
	Token       string
	Context     string
	Priority    int16
	Subject     string
	PlainText   string
	HTMLText    string
	CreatedAt   time.Time
	RecipientIDs []int64
}

// NotificationJob is one pending delivery of a Notification to one
// recipient. It is the unit the worker pool processes.
type NotificationJob struct {
	ID               uuid.UUID
	NotificationID   uuid.UUID
	RecipientID      int64
	Priority         int16
	CreatedAt        time.Time
	NotBefore        time.Time
	RetriesRemaining int
	Owner            *string
	StartAt          *time.Time
	EndAt            *time.Time
	Successful       *bool
}

// Claimed reports whether the job is currently owned by a worker and
// not yet terminal.
func (j *NotificationJob) Claimed() bool {
	return j.Owner != nil && j.StartAt != nil && j.EndAt == nil
}

// Terminal reports whether the job has reached a final state.
func (j *NotificationJob) Terminal() bool {
	return j.EndAt != nil
}

// Eligible reports whether the job may legally be claimed at instant now.
func (j *NotificationJob) Eligible(now time.Time) bool {
	return j.Owner == nil && j.StartAt == nil && j.EndAt == nil && !j.NotBefore.After(now)
}

// User is the external, read-only recipient entity. This service never
// writes to the users table; it only resolves ids and reads contact
// details for validation and template substitution.
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
}
