// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrParticipantIDEmpty = errors.New("participant id empty")
)

// ParticipantID is unique for the lifetime of one signaling connection,
// assigned by the channel on connect.
type ParticipantID string

func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

// Participant is one connected end-user session.
type Participant struct {
	ID          ParticipantID `json:"id"`
	DisplayName string        `json:"name"`
}

func NewParticipant(id ParticipantID, displayName string) (*Participant, error) {
	if id == "" {
		return nil, ErrParticipantIDEmpty
	}
	if err := ValidateDisplayName(displayName); err != nil {
		return nil, err
	}
	return &Participant{ID: id, DisplayName: displayName}, nil
}

func ValidateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	return nil
}
