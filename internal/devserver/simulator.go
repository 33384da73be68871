package devserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/volxolabs/walink/internal/config"
	apperrors "github.com/volxolabs/walink/internal/errors"
	"github.com/volxolabs/walink/internal/model"
)

// Simulator plays the WhatsApp engine: after a connection request it
// pushes a QR artifact, rotates it on the artifact TTL a few times, and
// either expires the attempt or confirms it when a scan is reported.
type Simulator struct {
	hub   *Hub
	store *InstanceStore
	ttl   time.Duration

	// autoScanAfter, when positive, confirms the attempt automatically
	// after that delay, which makes unattended end-to-end runs possible.
	autoScanAfter  time.Duration
	autoScanNumber string

	mu     sync.Mutex
	active map[string]context.CancelFunc // instanceID -> run cancel
}

func NewSimulator(hub *Hub, store *InstanceStore, ttl, autoScanAfter time.Duration, autoScanNumber string) *Simulator {
	return &Simulator{
		hub:            hub,
		store:          store,
		ttl:            ttl,
		autoScanAfter:  autoScanAfter,
		autoScanNumber: autoScanNumber,
		active:         make(map[string]context.CancelFunc),
	}
}

// StartPairing begins (or restarts) the pairing simulation for an
// instance. A second request supersedes the running simulation, exactly
// like the real engine regenerating a session.
func (s *Simulator) StartPairing(instanceID string) {
	ctx := s.beginRun(instanceID)

	s.store.SetStatus(instanceID, model.InstanceStatusConnecting, "")
	s.hub.Publish(instanceID, PushMessage{Type: "status", StatusText: "connection requested"})

	go s.run(ctx, instanceID)

	if s.autoScanAfter > 0 {
		go func() {
			select {
			case <-ctx.Done():
			case <-time.After(s.autoScanAfter):
				if err := s.Scan(instanceID, s.autoScanNumber); err != nil {
					log.Debug().Err(err).Str("instanceId", instanceID).Msg("auto scan skipped")
				}
			}
		}()
	}
}

// Scan reports that the artifact was scanned: the run is stopped and the
// confirmation is pushed.
func (s *Simulator) Scan(instanceID, number string) error {
	if number == "" {
		return apperrors.MissingRequired("number")
	}

	s.mu.Lock()
	cancel, ok := s.active[instanceID]
	if ok {
		delete(s.active, instanceID)
	}
	s.mu.Unlock()

	if !ok {
		return apperrors.InvalidState("scan", "no pairing in progress")
	}
	cancel()

	s.store.SetStatus(instanceID, model.InstanceStatusConnected, number)
	s.hub.Publish(instanceID, PushMessage{Type: "status", StatusText: "authenticated"})
	s.hub.Publish(instanceID, PushMessage{Type: "phone", Number: number})

	log.Info().Str("instanceId", instanceID).Str("number", number).Msg("simulated scan confirmed")
	return nil
}

// StopPairing aborts a running simulation, e.g. on disconnect.
func (s *Simulator) StopPairing(instanceID string) {
	s.mu.Lock()
	cancel, ok := s.active[instanceID]
	if ok {
		delete(s.active, instanceID)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.active {
		cancel()
		delete(s.active, id)
	}
}

func (s *Simulator) beginRun(instanceID string) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if prev, ok := s.active[instanceID]; ok {
		prev()
	}
	s.active[instanceID] = cancel
	s.mu.Unlock()

	return ctx
}

func (s *Simulator) run(ctx context.Context, instanceID string) {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for i := 0; i < config.SimQRRefreshCount; i++ {
		artifact := newArtifact()
		s.hub.Publish(instanceID, PushMessage{Type: "qr", Data: artifact})
		log.Debug().
			Str("instanceId", instanceID).
			Int("rotation", i).
			Msg("pushed simulated qr artifact")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	// No scan arrived for any rotation: the engine gives up.
	s.mu.Lock()
	if cancel, ok := s.active[instanceID]; ok {
		delete(s.active, instanceID)
		defer cancel()
	}
	s.mu.Unlock()

	s.store.SetStatus(instanceID, model.InstanceStatusDisconnected, "")
	s.hub.Publish(instanceID, PushMessage{Type: "status", StatusText: "pairing expired"})
	log.Info().Str("instanceId", instanceID).Msg("simulated pairing expired")
}

// newArtifact builds an opaque payload in the shape real engines emit.
func newArtifact() string {
	buf := make([]byte, 24)
	rand.Read(buf)
	return "wa://" + hex.EncodeToString(buf)
}
