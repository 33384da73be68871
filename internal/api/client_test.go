package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/volxolabs/walink/internal/errors"
	"github.com/volxolabs/walink/internal/model"
)

func TestRequestConnection(t *testing.T) {
	t.Run("posts instance id and accepts 2xx", func(t *testing.T) {
		var got connectRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/connect", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		client := NewClient(server.URL, 5*time.Second)
		err := client.RequestConnection(context.Background(), "acme-01")

		require.NoError(t, err)
		assert.Equal(t, "acme-01", got.InstanceID)
	})

	t.Run("classifies error response with backend message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"message": "whatsapp engine offline"})
		}))
		defer server.Close()

		client := NewClient(server.URL, 5*time.Second)
		err := client.RequestConnection(context.Background(), "acme-01")

		require.Error(t, err)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeRequestFailed, appErr.Code)
		assert.Contains(t, appErr.Message, "whatsapp engine offline")
	})

	t.Run("classifies network failure", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", time.Second)
		err := client.RequestConnection(context.Background(), "acme-01")

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeRequestFailed, apperrors.GetCode(err))
	})

	t.Run("rejects empty instance id without a request", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		client := NewClient(server.URL, time.Second)
		err := client.RequestConnection(context.Background(), "")

		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
		assert.False(t, called)
	})
}

func TestRequestConnection_Coalesces(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.RequestConnection(context.Background(), "acme-01")
		}(i)
	}

	// Let all callers pile onto the in-flight request before releasing it.
	assert.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load(), "concurrent callers must share one request")
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestInstanceManagement(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	instances := []model.Instance{
		{ID: "i-1", Name: "acme-01", Status: model.InstanceStatusConnected, PhoneNumber: "+15551234567", CreatedAt: now},
		{ID: "i-2", Name: "acme-02", Status: model.InstanceStatusDisconnected, CreatedAt: now},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/instances":
			json.NewEncoder(w).Encode(instances)
		case r.Method == http.MethodPost && r.URL.Path == "/instances":
			var params model.CreateInstanceParams
			json.NewDecoder(r.Body).Decode(&params)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(model.Instance{ID: "i-3", Name: params.Name, Status: model.InstanceStatusDisconnected, CreatedAt: now})
		case r.Method == http.MethodDelete && r.URL.Path == "/instances/i-1":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/disconnect":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/restart":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		got, err := client.ListInstances(ctx)
		require.NoError(t, err)
		assert.Equal(t, instances, got)
	})

	t.Run("create", func(t *testing.T) {
		instance, err := client.CreateInstance(ctx, "acme-03")
		require.NoError(t, err)
		assert.Equal(t, "i-3", instance.ID)
		assert.Equal(t, "acme-03", instance.Name)
	})

	t.Run("create requires name", func(t *testing.T) {
		_, err := client.CreateInstance(ctx, "")
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("delete", func(t *testing.T) {
		assert.NoError(t, client.DeleteInstance(ctx, "i-1"))
	})

	t.Run("disconnect and restart", func(t *testing.T) {
		assert.NoError(t, client.Disconnect(ctx, "i-1"))
		assert.NoError(t, client.Restart(ctx, "i-1"))
	})
}
