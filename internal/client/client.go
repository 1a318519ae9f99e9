// Package client talks to a running mural server: the JSON API for signing
// in and registering actions, and /live for watching the mural.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibeteen/vibe-teen/internal/handler"
	"github.com/vibeteen/vibe-teen/internal/live"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/service"
)

// DefaultServer is used when neither the flag nor the stored profile names one.
const DefaultServer = "http://localhost:8080"

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server answered %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client is safe for concurrent use once built.
type Client struct {
	base   *url.URL
	http   *http.Client
	token  string
	dialer *websocket.Dialer
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends the session token as a Bearer header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New parses server and returns a client for it.
func New(server string, opts ...Option) (*Client, error) {
	if server == "" {
		server = DefaultServer
	}
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parsing server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: server URL must be http or https, got %q", server)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 10 * time.Second},
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Server is the base URL the client talks to.
func (c *Client) Server() string {
	return c.base.String()
}

// Signup creates a member and returns the session.
func (c *Client) Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error) {
	var res service.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/members/signup", in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login signs an existing member in.
func (c *Client) Login(ctx context.Context, email, pin string) (*service.AuthResult, error) {
	var res service.AuthResult
	body := map[string]string{"email": email, "pin": pin}
	if err := c.do(ctx, http.MethodPost, "/api/members/login", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Me returns the member the token belongs to.
func (c *Client) Me(ctx context.Context) (*model.Member, error) {
	var m model.Member
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Register submits an action. It returns once the server accepted it; the
// action itself arrives with a later feed snapshot.
func (c *Client) Register(ctx context.Context, beneficiary, category string) error {
	body := map[string]string{"beneficiaryName": beneficiary, "category": category}
	return c.do(ctx, http.MethodPost, "/api/actions", body, nil)
}

// Stats fetches the stats cards. "Mine" is set when the client has a token.
func (c *Client) Stats(ctx context.Context) (*handler.StatsResponse, error) {
	var s handler.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Mission fetches the mission of the day.
func (c *Client) Mission(ctx context.Context) (string, error) {
	var body struct {
		Mission string `json:"mission"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/inspiration", nil, &body); err != nil {
		return "", err
	}
	return body.Mission, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er handler.ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er) == nil {
			apiErr.Type = er.Error
			apiErr.Message = er.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding %s response: %w", path, err)
	}
	return nil
}

// Live is an open /live connection. Next and Send may be used from different
// goroutines, but each only from one at a time.
type Live struct {
	conn *websocket.Conn
}

// Watch opens /live.
func (c *Client) Watch(ctx context.Context) (*Live, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/live"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("client: connecting to %s: %w", u.String(), err)
	}
	return &Live{conn: conn}, nil
}

// Next blocks for the next server frame.
func (l *Live) Next() (live.Outbound, error) {
	var out live.Outbound
	if err := l.conn.ReadJSON(&out); err != nil {
		return live.Outbound{}, err
	}
	return out, nil
}

// Send writes one gesture or register message.
func (l *Live) Send(in live.Inbound) error {
	return l.conn.WriteJSON(in)
}

// Close sends a close frame and drops the connection.
func (l *Live) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return l.conn.Close()
}
