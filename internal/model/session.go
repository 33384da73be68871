package model

import (
	"time"

	apperrors "github.com/volxolabs/walink/internal/errors"
)

// PairingSession is the state of one linking attempt for one instance.
// It is owned exclusively by the session controller; observers receive
// value copies and must treat them as immutable.
type PairingSession struct {
	InstanceID string       `json:"instanceId"`
	State      SessionState `json:"state"`

	// Artifact and Deadline are set together while an artifact is active
	// and zero otherwise. Deadline is absolute; the visible countdown is
	// derived from it, never stored.
	Artifact string    `json:"artifact,omitempty"`
	Deadline time.Time `json:"deadline,omitzero"`

	// LinkedIdentity is the confirmed external account identifier, set
	// only in the linked state.
	LinkedIdentity string `json:"linkedIdentity,omitempty"`

	// Failure is the last error classification, present only in the
	// failed state.
	Failure *apperrors.AppError `json:"failure,omitempty"`

	// StatusText is the most recent free-text status pushed by the
	// backend. Informational only, carried across transitions.
	StatusText string `json:"statusText,omitempty"`
}

// HasArtifact reports whether an artifact and deadline are live.
func (s PairingSession) HasArtifact() bool {
	return s.Artifact != "" && !s.Deadline.IsZero()
}
