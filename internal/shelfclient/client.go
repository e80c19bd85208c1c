package shelfclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marcus/shelf/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client is an HTTP client for the shelf server.
type Client struct {
	BaseURL string
	Session string
	HTTP    *http.Client
}

// New creates a new client. session may be empty before sign-in.
func New(baseURL, session string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Session: session,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Auth types (mirrors internal/api/auth.go, independently defined) ---

// AuthResponse is the response from sign-up and sign-in.
type AuthResponse struct {
	User      models.User `json:"user"`
	Session   string      `json:"session"`
	ExpiresAt string      `json:"expires_at"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doNoAuth(ctx, "GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Auth methods ---

// SignUp creates an account and stores the returned session on c.
func (c *Client) SignUp(ctx context.Context, username, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/v1/auth/sign-up", username, password)
}

// SignIn opens a session and stores it on c.
func (c *Client) SignIn(ctx context.Context, username, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/v1/auth/sign-in", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (*AuthResponse, error) {
	body := models.AuthParams{Username: username, Password: password}
	var resp AuthResponse
	if err := c.doNoAuth(ctx, "POST", path, body, &resp); err != nil {
		return nil, err
	}
	c.Session = resp.Session
	return &resp, nil
}

// SignOut invalidates the current session and clears it from c.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, "POST", "/v1/auth/sign-out", nil, nil); err != nil {
		return err
	}
	c.Session = ""
	return nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, "GET", "/v1/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile changes the signed-in user's display name or email.
func (c *Client) UpdateProfile(ctx context.Context, p models.ProfileParams) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, "PATCH", "/v1/auth/me", p, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// --- Errors ---

// APIError is an error response from the server that has no sentinel.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// ValidationError is a rejected input. Issues maps field names to messages.
type ValidationError struct {
	Message string
	Issues  models.FieldErrors
}

func (e *ValidationError) Error() string {
	if len(e.Issues) > 0 {
		return e.Issues.Error()
	}
	return e.Message
}

// Unwrap exposes the field issues to errors.As.
func (e *ValidationError) Unwrap() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e.Issues
}

// errorBody is the standard error envelope from the server.
type errorBody struct {
	Error struct {
		Code    string             `json:"code"`
		Message string             `json:"message"`
		Issues  models.FieldErrors `json:"issues"`
	} `json:"error"`
}

// decodeError converts an error response into a sentinel, *ValidationError
// or *APIError.
func decodeError(status int, body []byte) error {
	var eb errorBody
	if json.Unmarshal(body, &eb) != nil || eb.Error.Code == "" {
		return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
	}
	e := eb.Error
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, e.Message)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, e.Message)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, e.Message)
	case e.Code == "validation":
		return &ValidationError{Message: e.Message, Issues: e.Issues}
	default:
		return &APIError{Status: status, Code: e.Code, Message: e.Message}
	}
}

// --- HTTP helpers ---

// do executes an authenticated HTTP request.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, true)
}

// doNoAuth executes an unauthenticated HTTP request.
func (c *Client) doNoAuth(ctx context.Context, method, path string, body, result any) error {
	return c.doRequest(ctx, method, path, body, result, false)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.Session != "" {
		req.Header.Set("Authorization", "Bearer "+c.Session)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// call invokes an RPC procedure and decodes result.data into result.
func (c *Client) call(ctx context.Context, procedure string, input, result any) error {
	var env struct {
		Result struct {
			Data json.RawMessage `json:"data"`
		} `json:"result"`
	}
	if err := c.do(ctx, "POST", "/rpc/"+procedure, input, &env); err != nil {
		return err
	}
	if result == nil || len(env.Result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result.Data, result); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", procedure, err)
	}
	return nil
}
