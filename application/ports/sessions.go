package ports

// Session is one connected client. It holds no patient data; it is purely a
// delivery endpoint.
type Session interface {
	// ID is the server generated connection identifier
	ID() string

	// Send queues an encoded message for delivery. It must not block; a
	// session that can't accept the message returns a Transport error.
	Send(data []byte) error
}

// SessionRegistry tracks the sessions a roster broadcast fans out to.
type SessionRegistry interface {
	// Register adds a session. Registering a known session is a no-op.
	Register(s Session)

	// Unregister removes a session and reports whether it was present.
	// Unregistering twice is a no-op.
	Unregister(s Session) bool

	// Sessions returns the registered sessions in join order.
	Sessions() []Session

	// Count returns the number of registered sessions
	Count() int
}
