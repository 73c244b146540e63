// Package social is the REST client for the social-network backend:
// short-lived access tokens, participant profiles and voice-channel CRUD.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sigma-social/voiced/internal/core"
	"github.com/sigma-social/voiced/internal/domain"
)

// Client talks to the backend's /api surface. It implements
// core.TokenSource and core.ProfileResolver.
type Client struct {
	base    string
	refresh string
	http    *http.Client
}

// NewClient builds a client for base (e.g. http://host/api) authenticating
// with the long-lived refresh token.
func NewClient(base, refreshToken string) *Client {
	return &Client{
		base:    base,
		refresh: refreshToken,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Token exchanges the refresh token for a fresh access token. Called once
// per signaling dial, so no caching.
func (c *Client) Token(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"refresh": c.refresh})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/users/token/refresh/", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Access string `json:"access"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}
	return out.Access, nil
}

// Profile fetches roster display metadata for one participant.
func (c *Client) Profile(ctx context.Context, id core.ParticipantID) (domain.Profile, error) {
	var p domain.Profile
	err := c.getJSON(ctx, fmt.Sprintf("/users/profile/%s/", id), &p)
	return p, err
}

// Rooms lists the voice channels known to the backend.
func (c *Client) Rooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := c.getJSON(ctx, "/voice_channels/", &rooms)
	return rooms, err
}

// Room fetches a single voice channel.
func (c *Client) Room(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	var room domain.Room
	err := c.getJSON(ctx, fmt.Sprintf("/voice_channels/%s/", id), &room)
	return room, err
}

// CreateRoom creates a voice channel and returns the backend's record.
func (c *Client) CreateRoom(ctx context.Context, name domain.RoomName) (domain.Room, error) {
	body, err := json.Marshal(map[string]string{"name": string(name)})
	if err != nil {
		return domain.Room{}, err
	}
	req, err := c.authedRequest(ctx, http.MethodPost, "/voice_channels/", bytes.NewReader(body))
	if err != nil {
		return domain.Room{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var room domain.Room
	if err := c.do(req, &room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// DeleteRoom removes a voice channel.
func (c *Client) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	req, err := c.authedRequest(ctx, http.MethodDelete,
		fmt.Sprintf("/voice_channels/%s/", id), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.authedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) authedRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little of the body for the log, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		log.Debug().
			Str("module", "social").
			Str("url", req.URL.Path).
			Int("status", resp.StatusCode).
			Msg("backend error response")
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
