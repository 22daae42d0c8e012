// Package domain contains entity metadata and the shared error taxonomy.
// No transport or lifecycle logic lives here.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MaxDisplayNameLen = 50
	MaxPasswordLen    = 100
	MaxChatLen        = 500
)

type RoomID string

// RoomRecord is the durable room row owned by the persistence gateway.
// PasswordHash is empty for open rooms.
type RoomRecord struct {
	ID           RoomID    `json:"room_id"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPassword is what admin views expose instead of the hash itself.
func (r RoomRecord) HasPassword() bool { return r.PasswordHash != "" }

// NewRoomID generates a server-assigned id for rooms created without one.
func NewRoomID() RoomID {
	id := uuid.New()
	return RoomID(fmt.Sprintf("room-%x", id[:4]))
}
