package domain

import "github.com/google/uuid"

// ClientID identifies one admitted connection. Allocated at admission time,
// never reused within the process.
type ClientID string

func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}
