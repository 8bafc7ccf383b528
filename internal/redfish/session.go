package redfish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// SessionsPath is the Redfish session collection.
const SessionsPath = "/redfish/v1/SessionService/Sessions"

// Login opens a Redfish session and keeps its token for later requests.
// Once a token is held, basic-auth credentials are no longer sent.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{
		"UserName": username,
		"Password": password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, SessionsPath, body)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("login rejected: %w", err)
	}

	token := resp.Header.Get("X-Auth-Token")
	if token == "" {
		return ErrNoSessionToken
	}

	location := resp.Header.Get("Location")
	if location == "" {
		var created struct {
			ID string `json:"@odata.id"` //nolint:tagliatelle // OData annotation
		}
		if json.Unmarshal(resp.Body, &created) == nil {
			location = created.ID
		}
	}

	c.mu.Lock()
	c.token = token
	c.sessionURI = location
	c.mu.Unlock()

	c.logger.Debug("session opened", slog.String("session", location))
	return nil
}

// SessionURI returns the URI of the open session, or "".
func (c *Client) SessionURI() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionURI
}

// Logout deletes the open session and forgets its token. The token is
// forgotten even when the DELETE fails, since the session will expire on
// its own.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.RLock()
	uri := c.sessionURI
	hasToken := c.token != ""
	c.mu.RUnlock()

	if !hasToken || uri == "" {
		return ErrNoSession
	}

	resp, err := c.Do(ctx, http.MethodDelete, uri, nil)

	c.mu.Lock()
	c.token = ""
	c.sessionURI = ""
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("logout rejected: %w", err)
	}
	c.logger.Debug("session closed", slog.String("session", uri))
	return nil
}
