// Package pairing coordinates one QR linking attempt for one instance:
// it fires the connection trigger, subscribes to the instance's realtime
// channel, enforces artifact expiry and reconciles confirmation into a
// small set of states the presentation layer renders from.
package pairing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/volxolabs/walink/internal/errors"
	"github.com/volxolabs/walink/internal/model"
	"github.com/volxolabs/walink/internal/realtime"
)

const defaultArtifactTTL = 45 * time.Second

// ConnectionRequester fires the one-shot begin-pairing trigger.
type ConnectionRequester interface {
	RequestConnection(ctx context.Context, instanceID string) error
}

// Observer receives a session snapshot on subscription and after every
// subsequent change. Observers are invoked on the controller's event
// turn and must not call back into the controller.
type Observer func(model.PairingSession)

// Options configures a Controller.
type Options struct {
	Dialer    realtime.Dialer
	Requester ConnectionRequester

	// ArtifactTTL is the artifact validity window. Defaults to 45s.
	ArtifactTTL time.Duration
}

// Controller owns one PairingSession. All transitions are serialized on
// one mutex, so channel events, timer expiry and commands are processed
// as discrete turns with no interleaved mutation. Callers must not run
// two controllers for the same instance concurrently.
type Controller struct {
	instanceID string
	dialer     realtime.Dialer
	requester  ConnectionRequester
	ttl        time.Duration

	mu        sync.Mutex
	session   model.PairingSession
	observers []observerEntry
	nextObsID int
	disposed  bool

	// Per-attempt resources. gen discards events from superseded
	// attempts; at most one channel and one armed timer exist at a time.
	gen           int
	attemptCancel context.CancelFunc
	channel       realtime.Channel
	timer         ExpiryTimer
	ackSeen       bool
	readySeen     bool
}

type observerEntry struct {
	id int
	fn Observer
}

func NewController(instanceID string, opts Options) (*Controller, error) {
	if instanceID == "" {
		return nil, apperrors.MissingRequired("instanceId")
	}
	if opts.Dialer == nil {
		return nil, apperrors.MissingRequired("Dialer")
	}
	if opts.Requester == nil {
		return nil, apperrors.MissingRequired("Requester")
	}

	ttl := opts.ArtifactTTL
	if ttl <= 0 {
		ttl = defaultArtifactTTL
	}

	return &Controller{
		instanceID: instanceID,
		dialer:     opts.Dialer,
		requester:  opts.Requester,
		ttl:        ttl,
		session: model.PairingSession{
			InstanceID: instanceID,
			State:      model.StateIdle,
		},
	}, nil
}

// Observe registers an observer. It is called with the current snapshot
// immediately and then once per change, in transition order. The
// returned cancel function unregisters it and is safe to call twice.
func (c *Controller) Observe(fn Observer) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return func() {}
	}

	id := c.nextObsID
	c.nextObsID++
	c.observers = append(c.observers, observerEntry{id: id, fn: fn})
	fn(c.session)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, entry := range c.observers {
			if entry.id == id {
				c.observers = append(c.observers[:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// Start begins the first pairing attempt. The transition to connecting
// is synchronous. Calling Start while an attempt is already in flight is
// a no-op: the outstanding attempt's outcome is shared. From expired or
// failed the caller must use Regenerate instead.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return apperrors.SessionDisposed()
	}

	switch c.session.State {
	case model.StateIdle:
		c.beginAttemptLocked()
		return nil
	case model.StateConnecting, model.StateAwaitingArtifact, model.StateArtifactActive:
		// Double-invoked start coalesces onto the running attempt.
		return nil
	default:
		return apperrors.InvalidState("start", string(c.session.State))
	}
}

// Regenerate discards the expired or failed attempt and begins a fresh
// one. In any other state it is rejected without side effects.
func (c *Controller) Regenerate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return apperrors.SessionDisposed()
	}
	if !c.session.State.Recoverable() {
		return apperrors.InvalidState("regenerate", string(c.session.State))
	}

	c.beginAttemptLocked()
	return nil
}

// Dispose releases the channel and timer and silences the session: no
// observer is notified again, even if the transport delivers a late
// event. Idempotent.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.disposed = true

	c.timer.Cancel()
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}
	c.releaseChannelLocked()
	c.observers = nil

	log.Debug().Str("instanceId", c.instanceID).Msg("pairing session disposed")
}

func (c *Controller) beginAttemptLocked() {
	// A session never holds more than one live channel or timer; the
	// previous attempt normally tore these down already.
	c.timer.Cancel()
	c.releaseChannelLocked()

	c.gen++
	gen := c.gen

	ctx, cancel := context.WithCancel(context.Background())
	c.attemptCancel = cancel
	c.ackSeen = false
	c.readySeen = false

	c.session.Artifact = ""
	c.session.Deadline = time.Time{}
	c.session.LinkedIdentity = ""
	c.session.Failure = nil
	c.setStateLocked(model.StateConnecting)

	go c.openChannel(ctx, gen)
	go c.sendRequest(ctx, gen)
}

func (c *Controller) openChannel(ctx context.Context, gen int) {
	channel, err := c.dialer.Dial(ctx, c.instanceID)

	c.mu.Lock()
	if c.disposed || gen != c.gen || !c.attemptLive() {
		// The attempt ended while the dial was in flight (disposed,
		// superseded, or failed through the request path).
		c.mu.Unlock()
		if channel != nil {
			channel.Close()
		}
		return
	}
	if err != nil {
		c.failLocked(apperrors.ChannelUnavailable("could not open realtime channel", err))
		c.mu.Unlock()
		return
	}
	c.channel = channel
	c.mu.Unlock()

	for event := range channel.Events() {
		c.handleChannelEvent(gen, event)
	}
}

func (c *Controller) sendRequest(ctx context.Context, gen int) {
	err := c.requester.RequestConnection(ctx, c.instanceID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed || gen != c.gen {
		return
	}

	if err != nil {
		appErr, ok := apperrors.AsAppError(err)
		if !ok {
			appErr = apperrors.RequestFailed("connection request failed", err)
		}
		c.failLocked(appErr)
		return
	}

	c.ackSeen = true
	c.maybeAdvanceLocked()
}

func (c *Controller) handleChannelEvent(gen int, event realtime.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed || gen != c.gen {
		return
	}

	switch event.Kind {
	case realtime.KindReady:
		c.readySeen = true
		c.maybeAdvanceLocked()

	case realtime.KindArtifact:
		c.applyArtifactLocked(gen, event.Artifact)

	case realtime.KindStatus:
		if c.attemptLive() {
			c.session.StatusText = event.Status
			c.notifyLocked()
		}

	case realtime.KindConfirmed:
		c.confirmLocked(event.Identity)

	case realtime.KindTransportError:
		if c.attemptLive() {
			c.failLocked(apperrors.ChannelUnavailable("realtime channel error", event.Err))
		}

	case realtime.KindClosed:
		if c.attemptLive() {
			c.failLocked(apperrors.ChannelUnavailable("realtime channel closed before confirmation", nil))
		}
	}
}

// attemptLive reports whether the attempt still expects channel events.
func (c *Controller) attemptLive() bool {
	switch c.session.State {
	case model.StateConnecting, model.StateAwaitingArtifact, model.StateArtifactActive:
		return true
	}
	return false
}

// maybeAdvanceLocked leaves connecting once both the request ack and the
// registration ack have been seen. The backend does not guarantee an
// order between the two, and an artifact or confirmation event may even
// arrive first; those advance the session directly.
func (c *Controller) maybeAdvanceLocked() {
	if c.session.State == model.StateConnecting && c.ackSeen && c.readySeen {
		c.setStateLocked(model.StateAwaitingArtifact)
	}
}

// applyArtifactLocked installs a fresh artifact. A refresh while one is
// already active replaces artifact and deadline atomically: the old
// schedule is cancelled before the new one arms, so the deadline for a
// given artifact is never extended.
func (c *Controller) applyArtifactLocked(gen int, artifact string) {
	if !c.attemptLive() {
		return
	}

	c.timer.Cancel()
	deadline := time.Now().Add(c.ttl)
	c.session.Artifact = artifact
	c.session.Deadline = deadline
	c.timer.Arm(deadline, func() { c.onExpiry(gen) })
	c.setStateLocked(model.StateArtifactActive)

	log.Debug().
		Str("instanceId", c.instanceID).
		Time("deadline", deadline).
		Msg("pairing artifact armed")
}

// confirmLocked handles the terminal linked event. Confirmation wins any
// race with expiry: the timer is cancelled here, and a tick that already
// fired is discarded by the state check in onExpiry.
func (c *Controller) confirmLocked(identity string) {
	if !c.attemptLive() {
		return
	}

	c.timer.Cancel()
	c.endAttemptLocked()

	c.session.Artifact = ""
	c.session.Deadline = time.Time{}
	c.session.LinkedIdentity = identity
	c.setStateLocked(model.StateLinked)

	log.Info().
		Str("instanceId", c.instanceID).
		Str("linkedIdentity", identity).
		Msg("instance linked")
}

func (c *Controller) onExpiry(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed || gen != c.gen {
		return
	}
	// Stray fires after cancellation or confirmation are no-ops.
	if c.session.State != model.StateArtifactActive {
		return
	}

	c.timer.Cancel()
	c.endAttemptLocked()

	c.session.Artifact = ""
	c.session.Deadline = time.Time{}
	c.setStateLocked(model.StateExpired)

	log.Info().Str("instanceId", c.instanceID).Msg("pairing artifact expired")
}

// failLocked reports an unrecoverable attempt failure. Failures are
// never retried automatically; the only way out is Regenerate.
func (c *Controller) failLocked(cause *apperrors.AppError) {
	if !c.attemptLive() {
		return
	}

	c.timer.Cancel()
	c.endAttemptLocked()

	c.session.Artifact = ""
	c.session.Deadline = time.Time{}
	c.session.Failure = cause
	c.setStateLocked(model.StateFailed)

	log.Warn().
		Str("instanceId", c.instanceID).
		Str("code", string(cause.Code)).
		Err(cause).
		Msg("pairing attempt failed")
}

// endAttemptLocked tears down the attempt's channel and cancels its
// in-flight work. Runs on every exit path out of a live attempt.
func (c *Controller) endAttemptLocked() {
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}
	c.releaseChannelLocked()
}

func (c *Controller) releaseChannelLocked() {
	if c.channel == nil {
		return
	}
	// Close off the event turn: the close handshake may block briefly and
	// late events are already fenced by gen/disposed checks.
	go c.channel.Close()
	c.channel = nil
}

func (c *Controller) setStateLocked(state model.SessionState) {
	if c.session.State != state {
		log.Debug().
			Str("instanceId", c.instanceID).
			Str("from", string(c.session.State)).
			Str("to", string(state)).
			Msg("pairing state transition")
	}
	c.session.State = state
	c.notifyLocked()
}

func (c *Controller) notifyLocked() {
	for _, entry := range c.observers {
		entry.fn(c.session)
	}
}
