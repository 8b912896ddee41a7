package core

import "github.com/dkeye/Meet/internal/domain"

// Frame is a raw encoded signaling payload.
type Frame []byte

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds a participant and its transport endpoint.
// This is what the registry stores and fans out to.
type MemberSession interface {
	Participant() *domain.Participant
	Signal() SignalConnection
}

// NewMemberSession avoids raw literals in adapters.
func NewMemberSession(p *domain.Participant, conn SignalConnection) MemberSession {
	return &memberSession{participant: p, conn: conn}
}

type memberSession struct {
	participant *domain.Participant
	conn        SignalConnection
}

func (m *memberSession) Participant() *domain.Participant { return m.participant }
func (m *memberSession) Signal() SignalConnection         { return m.conn }
