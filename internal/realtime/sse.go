package realtime

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/volxolabs/walink/internal/config"
)

// SSEDialer opens server-sent event streams against the backend's /events
// endpoint. The stream is one-way; registration happens through the
// instanceId query parameter and the backend acknowledges it with a
// registered event, same as the duplex transport.
type SSEDialer struct {
	// BaseURL is the http:// or https:// root of the backend.
	BaseURL string

	// HTTPClient defaults to http.DefaultClient. The client must not set
	// an overall timeout: the stream is long-lived.
	HTTPClient *http.Client
}

func (d *SSEDialer) Dial(ctx context.Context, instanceID string) (Channel, error) {
	endpoint, err := url.JoinPath(d.BaseURL, "events")
	if err != nil {
		return nil, fmt.Errorf("build sse url: %w", err)
	}
	endpoint += "?instanceId=" + url.QueryEscape(instanceID)

	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build sse request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	// The dial context only bounds connection establishment, not the
	// lifetime of the stream.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	ch := &sseChannel{
		resp:       resp,
		cancel:     cancel,
		instanceID: instanceID,
		events:     make(chan Event, config.ChannelEventBuffer),
	}

	go ch.readPump()

	log.Debug().Str("instanceId", instanceID).Str("endpoint", endpoint).Msg("sse channel opened")
	return ch, nil
}

type sseChannel struct {
	resp       *http.Response
	cancel     context.CancelFunc
	instanceID string
	events     chan Event
	closeOnce  sync.Once
	closedByUs atomic.Bool
}

func (c *sseChannel) Events() <-chan Event {
	return c.events
}

func (c *sseChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closedByUs.Store(true)
		c.cancel()
		c.resp.Body.Close()
		log.Debug().Str("instanceId", c.instanceID).Msg("sse channel closed")
	})
	return nil
}

func (c *sseChannel) readPump() {
	defer close(c.events)
	defer c.resp.Body.Close()

	scanner := bufio.NewScanner(c.resp.Body)
	scanner.Buffer(make([]byte, 4096), config.ChannelReadLimit)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			// Blank line terminates one SSE frame.
			if data.Len() > 0 {
				c.dispatch(data.String())
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// Comment lines carry the server heartbeat.
		default:
			// event:/id:/retry: fields are advisory; the payload alone
			// identifies the message.
		}
	}

	if err := scanner.Err(); err != nil && !c.closedByUs.Load() {
		c.emit(Event{Kind: KindTransportError, Err: err})
		return
	}
	c.emit(Event{Kind: KindClosed})
}

func (c *sseChannel) dispatch(data string) {
	event, err := parseEvent([]byte(data))
	if err != nil {
		log.Warn().Err(err).
			Str("instanceId", c.instanceID).
			Str("data", data).
			Msg("dropping malformed sse event")
		return
	}
	c.emit(event)
}

func (c *sseChannel) emit(event Event) {
	select {
	case c.events <- event:
	default:
		log.Warn().
			Str("instanceId", c.instanceID).
			Str("kind", string(event.Kind)).
			Msg("channel event buffer full, dropping event")
	}
}
