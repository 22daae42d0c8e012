package domain

import "time"

// ChatMessage is the persisted chat row. Held in memory only while it is
// being relayed.
type ChatMessage struct {
	RoomID      RoomID    `json:"room_id"`
	ClientID    ClientID  `json:"-"`
	DisplayName string    `json:"display_name"`
	Body        string    `json:"message"`
	SentAt      time.Time `json:"timestamp"`
}

// Recording is client-reported call metadata, persisted as-is.
type Recording struct {
	RoomID          RoomID     `json:"room_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	Participants    string     `json:"participants"`
}
