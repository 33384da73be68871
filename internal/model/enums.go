package model

// SessionState is the coordinator-visible phase of one pairing attempt.
type SessionState string

const (
	// StateIdle means no attempt has been started yet.
	StateIdle SessionState = "idle"
	// StateConnecting means the channel is opening and the connection
	// request is in flight.
	StateConnecting SessionState = "connecting"
	// StateAwaitingArtifact means the client is registered and waiting for
	// the backend to push a pairing artifact.
	StateAwaitingArtifact SessionState = "awaiting_artifact"
	// StateArtifactActive means an artifact and its countdown are live.
	StateArtifactActive SessionState = "artifact_active"
	// StateExpired means the artifact timed out before confirmation.
	StateExpired SessionState = "expired"
	// StateLinked means pairing was confirmed. Terminal.
	StateLinked SessionState = "linked"
	// StateFailed means the attempt is unrecoverable without an explicit
	// regenerate.
	StateFailed SessionState = "failed"
)

// Terminal reports whether no further realtime events are expected.
func (s SessionState) Terminal() bool {
	return s == StateLinked
}

// Recoverable reports whether a regenerate command is accepted.
func (s SessionState) Recoverable() bool {
	return s == StateExpired || s == StateFailed
}

type InstanceStatus string

const (
	InstanceStatusDisconnected InstanceStatus = "disconnected"
	InstanceStatusConnecting   InstanceStatus = "connecting"
	InstanceStatusConnected    InstanceStatus = "connected"
)
