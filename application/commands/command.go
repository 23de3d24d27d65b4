package commands

// Mutation is a roster write submitted by a session. The dispatcher runs
// mutations one at a time in arrival order.
type Mutation interface {
	// CommandName is used for logging and metrics labels
	CommandName() string

	// Validate checks the command before it reaches the store
	Validate() error

	// Origin identifies the session and request the mutation came from so
	// failures can be reported to the sender only.
	Origin() Origin
}

// Origin is the session and client request id a command arrived with.
type Origin struct {
	SessionID string
	RequestID string
}
