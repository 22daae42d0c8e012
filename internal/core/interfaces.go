package core

import (
	"context"
	"time"

	"github.com/peergrid/beacon/internal/domain"
)

// SignalConn is the outbound half of a participant's connection. It is the
// only conduit used to push frames to that participant. Owned by the
// adapter; the adapter must Close() it.
type SignalConn interface {
	// TrySend must not block: a stalled peer drops frames instead of
	// stalling the room.
	TrySend([]byte) error
	Close()
}

// Gateway is the narrow persistence surface the relay core consumes.
type Gateway interface {
	CreateRoom(ctx context.Context, id domain.RoomID, passwordHash string) error
	RoomRecord(ctx context.Context, id domain.RoomID) (domain.RoomRecord, error)
	InsertChatMessage(ctx context.Context, id domain.RoomID, clientID domain.ClientID, displayName, body string) (time.Time, error)
	RecentHistory(ctx context.Context, id domain.RoomID, limit int) ([]domain.ChatMessage, error)
}

// RoomInfo is a read-only view of an active room for status/admin APIs.
type RoomInfo struct {
	ID               domain.RoomID `json:"room_id"`
	ParticipantCount int           `json:"participant_count"`
}
