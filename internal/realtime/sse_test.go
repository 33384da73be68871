package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseTestServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "acme-01", r.URL.Query().Get("instanceId"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		flusher := w.(http.Flusher)

		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSSEChannel_DeliversEvents(t *testing.T) {
	server := sseTestServer(t, []string{
		"event: registered\ndata: {\"type\":\"registered\"}\n\n",
		": ping\n\n",
		"event: qr\ndata: {\"type\":\"qr\",\"data\":\"wa://abc123\"}\n\n",
		"event: phone\ndata: {\"type\":\"phone\",\"number\":\"+15551234567\"}\n\n",
	})

	dialer := &SSEDialer{BaseURL: server.URL}
	ch, err := dialer.Dial(context.Background(), "acme-01")
	require.NoError(t, err)
	defer ch.Close()

	events := collectEvents(t, ch, 4)
	require.Len(t, events, 4)
	assert.Equal(t, KindReady, events[0].Kind)
	assert.Equal(t, Event{Kind: KindArtifact, Artifact: "wa://abc123"}, events[1])
	assert.Equal(t, Event{Kind: KindConfirmed, Identity: "+15551234567"}, events[2])
	// Server closing the stream after its script ends reads as an
	// orderly close.
	assert.Equal(t, KindClosed, events[3].Kind)
}

func TestSSEChannel_DropsMalformedFrames(t *testing.T) {
	server := sseTestServer(t, []string{
		"data: not-json{\n\n",
		"data: {\"type\":\"warp\"}\n\n",
		"data: {\"type\":\"status\",\"message\":\"hold on\"}\n\n",
	})

	dialer := &SSEDialer{BaseURL: server.URL}
	ch, err := dialer.Dial(context.Background(), "acme-01")
	require.NoError(t, err)
	defer ch.Close()

	events := collectEvents(t, ch, 2)
	require.Len(t, events, 2)
	assert.Equal(t, Event{Kind: KindStatus, Status: "hold on"}, events[0])
	assert.Equal(t, KindClosed, events[1].Kind)
}

func TestSSEChannel_NonOKStatusFailsDial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance not found", http.StatusNotFound)
	}))
	defer server.Close()

	dialer := &SSEDialer{BaseURL: server.URL}
	_, err := dialer.Dial(context.Background(), "acme-01")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestSSEChannel_CloseIsIdempotent(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-block
	}))
	t.Cleanup(func() {
		close(block)
		server.Close()
	})

	dialer := &SSEDialer{BaseURL: server.URL}
	ch, err := dialer.Dial(context.Background(), "acme-01")
	require.NoError(t, err)

	assert.NoError(t, ch.Close())
	assert.NoError(t, ch.Close())

	events := collectEvents(t, ch, 1)
	assert.Equal(t, KindClosed, events[0].Kind)
}
