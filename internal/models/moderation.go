package models

import "time"

// ModerationEntry is one row of the audit trail written by the
// moderation event consumer.
type ModerationEntry struct {
	ID           int32     `json:"id"`
	SubmissionID int32     `json:"submission_id"`
	Action       string    `json:"action"` // accepted, approved, rejected, deleted
	Actor        string    `json:"actor"`
	CreatedAt    time.Time `json:"created_at"`
}
