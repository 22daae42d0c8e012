// Package protocol defines the JSON envelopes exchanged over the relay
// connection. The kind set is closed; anything else is ignored by the
// dispatcher.
package protocol

import "github.com/peergrid/beacon/internal/domain"

// Client-to-server kinds.
const (
	KindJoin         = "join"
	KindChat         = "chat"
	KindOffer        = "offer"
	KindAnswer       = "answer"
	KindICECandidate = "ice_candidate"
)

// Server-to-client kinds.
const (
	KindReady             = "ready"
	KindParticipantJoined = "participant_joined"
	KindParticipantLeft   = "participant_left"
	KindRoomFull          = "room_full"
	KindError             = "error"
)

// Envelope is the minimal decode target used to classify inbound frames.
type Envelope struct {
	Type string `json:"type"`
}

// IsSignaling reports whether kind is one of the directed signaling kinds
// whose payloads are relayed verbatim.
func IsSignaling(kind string) bool {
	switch kind {
	case KindOffer, KindAnswer, KindICECandidate:
		return true
	}
	return false
}

// ChatIn is the client chat frame.
type ChatIn struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Directed carries the addressing fields of a signaling frame. The rest of
// the frame is opaque and forwarded untouched.
type Directed struct {
	Type     string          `json:"type"`
	SenderID domain.ClientID `json:"sender_id"`
	TargetID domain.ClientID `json:"target_id"`
}

type Ready struct {
	Type             string          `json:"type"`
	ClientID         domain.ClientID `json:"client_id"`
	ParticipantCount int             `json:"participant_count"`
}

type ParticipantJoined struct {
	Type             string          `json:"type"`
	NewID            domain.ClientID `json:"new_id"`
	NewDisplayName   string          `json:"new_display_name"`
	ParticipantCount int             `json:"participant_count"`
}

type ParticipantLeft struct {
	Type             string          `json:"type"`
	LeftID           domain.ClientID `json:"left_id"`
	ParticipantCount int             `json:"participant_count"`
}

type RoomFull struct {
	Type string `json:"type"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ChatOut struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
}
