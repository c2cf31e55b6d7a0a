package stream

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Role is the part a process currently plays in the stream.
type Role int32

const (
	// RoleIdle means neither transmitting nor serving.
	RoleIdle Role = iota
	// RoleClient means a transmission is in progress.
	RoleClient
	// RoleServer means a receive session is in progress.
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "idle"
	}
}

// Session holds the role shared by a transmitter and a receiver. Client and server
// roles are mutually exclusive: whichever acquires the session first owns it until
// it releases it. The role is read and written atomically, so it may be checked
// from the caller's goroutine while a background receive loop updates it.
type Session struct {
	id   uuid.UUID
	role atomic.Int32
}

// NewSession creates an idle session with a fresh identifier.
func NewSession() *Session {
	s := &Session{id: uuid.New()}

	logrus.WithFields(logrus.Fields{
		"function":   "NewSession",
		"session_id": s.id.String(),
	}).Debug("Session created")

	return s
}

// ID returns the session identifier used in log fields.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Role returns the current role.
func (s *Session) Role() Role {
	return Role(s.role.Load())
}

// Acquire moves the session from idle to r. It reports false when another role
// (or the same one) is already active.
func (s *Session) Acquire(r Role) bool {
	return s.role.CompareAndSwap(int32(RoleIdle), int32(r))
}

// Release returns the session to idle if it is currently in role r.
func (s *Session) Release(r Role) {
	s.role.CompareAndSwap(int32(r), int32(RoleIdle))
}
