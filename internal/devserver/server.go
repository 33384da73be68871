package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/volxolabs/walink/internal/config"
	apperrors "github.com/volxolabs/walink/internal/errors"
	"github.com/volxolabs/walink/internal/httputil"
	"github.com/volxolabs/walink/internal/model"
)

type Server struct {
	hub      *Hub
	store    *InstanceStore
	sim      *Simulator
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, store *InstanceStore, sim *Simulator) *Server {
	return &Server{
		hub:   hub,
		store: store,
		sim:   sim,
		upgrader: websocket.Upgrader{
			// Local development server: any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	// The push endpoints live outside the request timeout: both hold
	// their connection open for the whole pairing attempt.
	r.Get("/ws", s.handleWebSocket)
	r.Get("/events", s.handleSSE)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(bodyLimit)

		r.Post("/connect", s.handleConnect)
		r.Post("/disconnect", s.handleDisconnect)
		r.Post("/restart", s.handleRestart)
		r.Post("/scan", s.handleScan)

		r.Get("/instances", s.handleListInstances)
		r.Post("/instances", s.handleCreateInstance)
		r.Delete("/instances/{instanceID}", s.handleDeleteInstance)
	})

	return r
}

type instanceRequest struct {
	InstanceID string `json:"instanceId"`
}

type scanRequest struct {
	InstanceID string `json:"instanceId"`
	Number     string `json:"number"`
}

type createInstanceRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeInstanceRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, ok := s.store.Get(req.InstanceID); !ok {
		httputil.WriteError(w, apperrors.NotFound("Instance"))
		return
	}

	s.sim.StartPairing(req.InstanceID)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "pairing"})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeInstanceRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, ok := s.store.Get(req.InstanceID); !ok {
		httputil.WriteError(w, apperrors.NotFound("Instance"))
		return
	}

	s.sim.StopPairing(req.InstanceID)
	s.store.SetStatus(req.InstanceID, model.InstanceStatusDisconnected, "")
	s.hub.Publish(req.InstanceID, PushMessage{Type: "status", StatusText: "disconnected"})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeInstanceRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, ok := s.store.Get(req.InstanceID); !ok {
		httputil.WriteError(w, apperrors.NotFound("Instance"))
		return
	}

	s.sim.StopPairing(req.InstanceID)
	s.sim.StartPairing(req.InstanceID)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "restarting"})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed json"))
		return
	}
	if req.InstanceID == "" {
		httputil.WriteError(w, apperrors.MissingRequired("instanceId"))
		return
	}

	if err := s.sim.Scan(req.InstanceID, req.Number); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "linked"})
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed json"))
		return
	}

	instance, err := s.store.Create(req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, instance)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instanceID")
	s.sim.StopPairing(id)
	if err := s.store.Delete(id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWebSocket upgrades the connection, waits for the register
// message and then relays hub messages until either side closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(config.ChannelDialTimeout))
	var register struct {
		Type       string `json:"type"`
		InstanceID string `json:"instanceId"`
	}
	if err := conn.ReadJSON(&register); err != nil || register.Type != "register" || register.InstanceID == "" {
		log.Warn().Err(err).Msg("websocket client sent no valid register message")
		return
	}
	conn.SetReadDeadline(time.Time{})

	sub := s.hub.Subscribe(register.InstanceID)
	defer s.hub.Unsubscribe(sub)

	if err := s.writeMessage(conn, PushMessage{Type: "registered"}); err != nil {
		return
	}

	// Reader goroutine notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(config.ChannelPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-sub.Done:
			return
		case msg := <-sub.Messages:
			if err := s.writeMessage(conn, msg); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(config.ChannelWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, msg PushMessage) error {
	conn.SetWriteDeadline(time.Now().Add(config.ChannelWriteTimeout))
	return conn.WriteJSON(msg)
}

// handleSSE is the server-push variant of the same contract: the
// instance registers through the query string and messages flow as
// event-stream frames.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	instanceID := r.URL.Query().Get("instanceId")
	if instanceID == "" {
		httputil.WriteError(w, apperrors.MissingRequired("instanceId"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.hub.Subscribe(instanceID)
	defer s.hub.Unsubscribe(sub)

	if err := s.sendSSE(w, flusher, PushMessage{Type: "registered"}); err != nil {
		return
	}

	heartbeat := time.NewTicker(config.SSEHeartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case msg := <-sub.Messages:
			if err := s.sendSSE(w, flusher, msg); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) sendSSE(w http.ResponseWriter, flusher http.Flusher, msg PushMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + msg.Type + "\n")); err != nil {
		return err
	}
	if _, err := w.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (s *Server) decodeInstanceRequest(r *http.Request) (*instanceRequest, error) {
	var req instanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apperrors.InvalidInput("body", "malformed json")
	}
	if req.InstanceID == "" {
		return nil, apperrors.MissingRequired("instanceId")
	}
	return &req, nil
}
