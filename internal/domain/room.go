package domain

import "errors"

// MaxRoomIDLen matches the limit enforced on join links.
const MaxRoomIDLen = 50

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

// RoomID is a caller-chosen opaque string, used verbatim as the
// broadcast scope key and in shareable join links.
type RoomID string

type Room struct {
	ID RoomID
}

func ValidateRoomID(id RoomID) error {
	if len(id) == 0 {
		return ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return ErrRoomIDTooLong
	}
	return nil
}
