// Package api is the REST client for the backend's connection trigger and
// instance management endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/volxolabs/walink/internal/errors"
	"github.com/volxolabs/walink/internal/model"
)

// Client issues requests against the backend. The connection trigger is
// coalesced per instance: concurrent callers share a single outstanding
// request and receive its outcome, so a double-invoked start never
// produces duplicate backend pairing attempts.
type Client struct {
	baseURL string
	http    *http.Client
	connect singleflight.Group
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type connectRequest struct {
	InstanceID string `json:"instanceId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RequestConnection fires the one-shot begin-pairing trigger. Any 2xx is
// success; the pairing artifact itself arrives over the realtime channel,
// never in this response.
func (c *Client) RequestConnection(ctx context.Context, instanceID string) error {
	if instanceID == "" {
		return apperrors.MissingRequired("instanceId")
	}

	_, err, shared := c.connect.Do(instanceID, func() (any, error) {
		return nil, c.postJSON(ctx, "/connect", connectRequest{InstanceID: instanceID}, nil)
	})
	if shared {
		log.Debug().Str("instanceId", instanceID).Msg("connection request coalesced")
	}
	return err
}

// Disconnect asks the backend to drop the instance's WhatsApp session.
func (c *Client) Disconnect(ctx context.Context, instanceID string) error {
	if instanceID == "" {
		return apperrors.MissingRequired("instanceId")
	}
	return c.postJSON(ctx, "/disconnect", connectRequest{InstanceID: instanceID}, nil)
}

// Restart asks the backend to restart the instance's WhatsApp session.
func (c *Client) Restart(ctx context.Context, instanceID string) error {
	if instanceID == "" {
		return apperrors.MissingRequired("instanceId")
	}
	return c.postJSON(ctx, "/restart", connectRequest{InstanceID: instanceID}, nil)
}

func (c *Client) ListInstances(ctx context.Context) ([]model.Instance, error) {
	var instances []model.Instance
	if err := c.getJSON(ctx, "/instances", &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

func (c *Client) CreateInstance(ctx context.Context, name string) (*model.Instance, error) {
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	var instance model.Instance
	if err := c.postJSON(ctx, "/instances", model.CreateInstanceParams{Name: name}, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

func (c *Client) DeleteInstance(ctx context.Context, instanceID string) error {
	if instanceID == "" {
		return apperrors.MissingRequired("instanceId")
	}
	return c.do(ctx, http.MethodDelete, "/instances/"+url.PathEscape(instanceID), nil, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal("encode request body").WithCause(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Internal("build request").WithCause(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.RequestFailed(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.RequestFailed(readErrorMessage(resp), nil).
			WithDetails(map[string]any{"status": resp.StatusCode, "path": path})
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.RequestFailed(fmt.Sprintf("decode %s response", path), err)
		}
	}
	return nil
}

// readErrorMessage extracts a human-readable message from an error
// response body, falling back to the HTTP status text.
func readErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(data) > 0 {
		var parsed errorResponse
		if json.Unmarshal(data, &parsed) == nil {
			if parsed.Message != "" {
				return parsed.Message
			}
			if parsed.Error != "" {
				return parsed.Error
			}
		}
	}
	return http.StatusText(resp.StatusCode)
}
