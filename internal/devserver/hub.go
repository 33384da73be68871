// Package devserver is an in-memory stand-in for the production backend:
// it speaks the same wire contract (connection trigger, instance
// management, realtime push over WebSocket or SSE) and simulates the
// WhatsApp side of pairing, so the client can be developed and exercised
// end to end without a real engine.
package devserver

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// PushMessage is one wire message fanned out to an instance's
// subscribers, JSON-encoded exactly as clients expect it.
type PushMessage struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	StatusText string `json:"message,omitempty"`
	Number     string `json:"number,omitempty"`
}

type Subscriber struct {
	InstanceID string
	Messages   chan PushMessage
	Done       chan struct{}
}

// Hub fans push messages out to the subscribers of each instance.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]bool // instanceID -> set of subscribers
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscriber]bool)}
}

func (h *Hub) Subscribe(instanceID string) *Subscriber {
	sub := &Subscriber{
		InstanceID: instanceID,
		Messages:   make(chan PushMessage, 100),
		Done:       make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[instanceID] == nil {
		h.subs[instanceID] = make(map[*Subscriber]bool)
	}
	h.subs[instanceID][sub] = true
	count := len(h.subs[instanceID])
	h.mu.Unlock()

	log.Info().
		Str("instanceId", instanceID).
		Int("subscriberCount", count).
		Msg("push subscriber registered")

	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subs[sub.InstanceID]; ok && subs[sub] {
		delete(subs, sub)
		close(sub.Done)

		if len(subs) == 0 {
			delete(h.subs, sub.InstanceID)
		}

		log.Info().
			Str("instanceId", sub.InstanceID).
			Int("subscriberCount", len(subs)).
			Msg("push subscriber removed")
	}
}

func (h *Hub) Publish(instanceID string, msg PushMessage) {
	h.mu.RLock()
	subs := h.subs[instanceID]
	h.mu.RUnlock()

	for sub := range subs {
		select {
		case sub.Messages <- msg:
		default:
			log.Warn().
				Str("instanceId", instanceID).
				Str("type", msg.Type).
				Msg("subscriber buffer full, dropping message")
		}
	}
}

func (h *Hub) SubscriberCount(instanceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[instanceID])
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, subs := range h.subs {
		for sub := range subs {
			close(sub.Done)
		}
	}
	h.subs = make(map[string]map[*Subscriber]bool)
}
