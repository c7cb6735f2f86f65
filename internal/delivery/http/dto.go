package http

import (
	"time"

	"github.com/google/uuid"
)

// CreateNotificationRequest is the POST /api/v1/notifications body.
// Binding tags drive go-playground/validator via Gin's ShouldBindJSON.
type CreateNotificationRequest struct {
	Context          string   `json:"context" binding:"required"`
	Token            string   `json:"token,omitempty"`
	Priority         string   `json:"priority" binding:"required,oneof=HIGH DEFAULT LOW"`
	Subject          string   `json:"subject" binding:"required"`
	PlainText        string   `json:"plain_text,omitempty"`
	HTMLText         string   `json:"html_text,omitempty"`
	RecipientUserIDs []int64  `json:"recipient_user_ids" binding:"required,min=1"`
	NotBefore        *int64   `json:"not_before,omitempty"` // unix seconds
}

// NotificationResponse is the response shape for a single notification.
type NotificationResponse struct {
	ID               uuid.UUID `json:"id"`
	Token            string    `json:"token"`
	Context          string    `json:"context"`
	Priority         int16     `json:"priority"`
	Subject          string    `json:"subject"`
	PlainText        string    `json:"plain_text,omitempty"`
	HTMLText         string    `json:"html_text,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	RecipientUserIDs []int64   `json:"recipient_user_ids"`
}

// JobResponse is the response shape for one notification job.
type JobResponse struct {
	ID               uuid.UUID  `json:"id"`
	NotificationID   uuid.UUID  `json:"notification_id"`
	RecipientID      int64      `json:"recipient_id"`
	Priority         int16      `json:"priority"`
	CreatedAt        time.Time  `json:"created_at"`
	NotBefore        time.Time  `json:"not_before"`
	RetriesRemaining int        `json:"retries_remaining"`
	Owner            *string    `json:"owner,omitempty"`
	StartAt          *time.Time `json:"start_at,omitempty"`
	EndAt            *time.Time `json:"end_at,omitempty"`
	Successful       *bool      `json:"successful,omitempty"`
}

// CancelResponse reports how many pending jobs a cancel removed.
type CancelResponse struct {
	Cancelled int `json:"cancelled"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
