package realtime

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/volxolabs/walink/internal/config"
)

// WebSocketDialer opens duplex channels against the backend's /ws endpoint.
type WebSocketDialer struct {
	// BaseURL is the ws:// or wss:// root of the backend.
	BaseURL string
}

func (d *WebSocketDialer) Dial(ctx context.Context, instanceID string) (Channel, error) {
	endpoint, err := url.JoinPath(d.BaseURL, "ws")
	if err != nil {
		return nil, fmt.Errorf("build ws url: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: config.ChannelDialTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	conn.SetWriteDeadline(time.Now().Add(config.ChannelWriteTimeout))
	register := wireMessage{Type: msgTypeRegister, InstanceID: instanceID}
	if err := conn.WriteJSON(register); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send register: %w", err)
	}
	conn.SetWriteDeadline(time.Time{})

	ch := &wsChannel{
		conn:       conn,
		instanceID: instanceID,
		events:     make(chan Event, config.ChannelEventBuffer),
		done:       make(chan struct{}),
	}

	go ch.readPump()
	go ch.pingLoop()

	log.Debug().Str("instanceId", instanceID).Str("endpoint", endpoint).Msg("websocket channel opened")
	return ch, nil
}

type wsChannel struct {
	conn       *websocket.Conn
	instanceID string
	events     chan Event
	done       chan struct{}
	closeOnce  sync.Once
	closedByUs atomic.Bool
}

func (c *wsChannel) Events() <-chan Event {
	return c.events
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closedByUs.Store(true)
		close(c.done)

		deadline := time.Now().Add(config.ChannelWriteTimeout)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()

		log.Debug().Str("instanceId", c.instanceID).Msg("websocket channel closed")
	})
	return nil
}

func (c *wsChannel) readPump() {
	defer close(c.events)

	c.conn.SetReadLimit(config.ChannelReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(config.ChannelPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(config.ChannelPongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.emit(c.terminalEvent(err))
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(config.ChannelPongWait))

		event, err := parseEvent(raw)
		if err != nil {
			// Fail soft: a malformed message never kills the channel.
			log.Warn().Err(err).
				Str("instanceId", c.instanceID).
				Bytes("raw", raw).
				Msg("dropping malformed websocket event")
			continue
		}

		c.emit(event)
	}
}

func (c *wsChannel) terminalEvent(err error) Event {
	if c.closedByUs.Load() ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return Event{Kind: KindClosed}
	}
	return Event{Kind: KindTransportError, Err: err}
}

func (c *wsChannel) pingLoop() {
	ticker := time.NewTicker(config.ChannelPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(config.ChannelWriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *wsChannel) emit(event Event) {
	select {
	case c.events <- event:
	default:
		log.Warn().
			Str("instanceId", c.instanceID).
			Str("kind", string(event.Kind)).
			Msg("channel event buffer full, dropping event")
	}
}
