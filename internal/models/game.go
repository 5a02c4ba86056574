package models

import "time"

// Game names are stored upper-cased and are unique.
type Game struct {
	ID        int32     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
