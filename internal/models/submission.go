package models

import "time"

type Submission struct {
	ID        int32     `json:"id"`
	Name      string    `json:"name"`
	Game      string    `json:"game"`
	URL       string    `json:"url"`
	Bugs      string    `json:"bugs"` // "Yes" or "No"
	Author    string    `json:"author"`
	Date      string    `json:"date"` // M/D/YYYY
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Status string

const (
	StatusAwaiting Status = "awaiting"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAwaiting, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Decide maps an admin verdict to the resulting status. Repeated
// decisions on the same submission are idempotent overwrites.
func Decide(approve bool) Status {
	if approve {
		return StatusApproved
	}
	return StatusRejected
}
