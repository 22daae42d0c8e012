package domain

import "errors"

// Admission errors terminate a connection attempt before the relay loop runs.
var (
	ErrInvalidToken = errors.New("invalid or already used token")
	ErrRoomFull     = errors.New("room full")
)

// Creation errors.
var (
	ErrRoomExists      = errors.New("room id already exists")
	ErrPasswordTooLong = errors.New("password too long")
)

// Join errors surfaced by the admission endpoint.
var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrWrongPassword = errors.New("incorrect password")
	ErrRoomExpired   = errors.New("room expired")
	ErrInvalidInput  = errors.New("invalid room id or display name")
)
