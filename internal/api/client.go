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

	"github.com/emojinious/emojinious-client/internal/models"
)

// Client talks to the Emojinious REST API: the join flow and the
// host-only settings update. Everything else reaches the client over the
// broker subscriptions.
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

// SetHeader sets a header sent on every request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetTimeout overrides the default request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint, token string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(responseBody)}
	}

	return responseBody, nil
}

// JoinResponse is what the server returns from player creation.
type JoinResponse struct {
	Player struct {
		ID          string `json:"id"`
		Nickname    string `json:"nickname"`
		SessionID   string `json:"sessionId"`
		CharacterID int    `json:"characterId"`
		IsHost      bool   `json:"isHost"`
	} `json:"player"`
	Token string `json:"token"`
}

// CreatePlayer registers a player. An empty sessionID creates a fresh
// session with this player as host; a non-empty one joins as a guest.
func (c *Client) CreatePlayer(ctx context.Context, nickname string, characterID int, sessionID string) (*JoinResponse, error) {
	payload := map[string]any{
		"nickname":    nickname,
		"characterId": characterID,
	}
	if sessionID != "" {
		payload["sessionId"] = sessionID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal create player request: %w", err)
	}

	data, err := c.makeRequest(ctx, http.MethodPost, "/api/players", "", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}

	var resp JoinResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse create player response: %w", err)
	}
	return &resp, nil
}

// UpdateSettings sends new game settings for the session. Host only; the
// server echoes accepted settings back through the next game snapshot, so
// nothing is mutated locally here.
func (c *Client) UpdateSettings(ctx context.Context, sessionID string, settings models.GameSettings, token string) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return &SettingsUpdateError{SessionID: sessionID, Err: fmt.Errorf("marshal settings: %w", err)}
	}

	endpoint := fmt.Sprintf("/api/sessions/%s/settings", url.PathEscape(sessionID))
	if _, err := c.makeRequest(ctx, http.MethodPut, endpoint, token, bytes.NewReader(body)); err != nil {
		return &SettingsUpdateError{SessionID: sessionID, Err: err}
	}
	return nil
}

// InviteLink builds the shareable join URL for a session.
func (c *Client) InviteLink(sessionID string) string {
	return fmt.Sprintf("%s/join?sessionId=%s", c.baseURL, url.QueryEscape(sessionID))
}
