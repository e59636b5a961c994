// Package ordersapi talks to the restaurant orders backend.
package ordersapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/board/models"
)

var ErrRejected = errors.New("backend rejected the request")

// HTTPError is any non-2xx answer.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *HTTPError) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

// Session is the logged-in kitchen user. Claims come from the token without
// verifying it; the backend does that on every request.
type Session struct {
	Token     string
	User      models.User
	Role      string
	ExpiresAt time.Time
}

const maxErrBody = 512

type Client struct {
	rc *resty.Client
	lg *logger.Logger

	mu      sync.RWMutex
	session Session
}

// New builds a client for baseURL (e.g. http://localhost:3000/api). timeout
// bounds each request; zero means no limit. Requests are never retried.
func New(baseURL string, timeout time.Duration, lg *logger.Logger) *Client {
	if lg == nil {
		lg = logger.New("ordersapi")
	}
	c := &Client{lg: lg}
	c.rc = resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	c.rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("X-Request-ID", uuid.NewString())
		if tok := c.Session().Token; tok != "" {
			req.SetHeader("Authorization", "Bearer "+tok)
		}
		return nil
	})
	c.rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		c.lg.WithRequestID(resp.Request.Header.Get("X-Request-ID")).Debug("backend_request", map[string]any{
			"method": resp.Request.Method, "url": resp.Request.URL, "status": resp.StatusCode(),
			"duration_ms": resp.Time().Milliseconds(),
		})
		return nil
	})
	return c
}

func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetToken uses an already issued bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.session = sessionFromToken(token)
	c.mu.Unlock()
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp models.LoginResponse
	if _, err := c.exec(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return Session{}, fmt.Errorf("login: %w: %s", ErrRejected, resp.Message)
	}
	s := sessionFromToken(resp.Token)
	s.User = resp.User
	if s.Role == "" {
		s.Role = resp.User.Role
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	c.lg.Info("backend_login", map[string]any{"user": resp.User.Name, "role": s.Role})
	return s, nil
}

func sessionFromToken(token string) Session {
	s := Session{Token: token}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// opaque token
		return s
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	if rol, ok := claims["rol"].(string); ok {
		s.Role = rol
	}
	return s
}

type ordersEnvelope struct {
	Success *bool          `json:"success"`
	Message string         `json:"message"`
	Data    []models.Order `json:"data"`
}

// FetchActiveOrders returns the orders the kitchen still has to handle.
// Both a bare array and a {success, data} envelope are accepted.
func (c *Client) FetchActiveOrders(ctx context.Context) ([]models.Order, error) {
	resp, err := c.exec(ctx, http.MethodGet, "/ordenes/activas", nil, nil)
	if err != nil {
		return nil, err
	}
	raw := bytes.TrimSpace(resp.Body())
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []models.Order{}, nil
	}
	if raw[0] == '[' {
		var orders []models.Order
		if err := json.Unmarshal(raw, &orders); err != nil {
			return nil, fmt.Errorf("decode active orders: %w", err)
		}
		return orders, nil
	}
	var env ordersEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode active orders: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, env.Message)
	}
	if env.Data == nil {
		return []models.Order{}, nil
	}
	return env.Data, nil
}

// SubmitStatusChange asks the backend to move the order (and its items) to
// target. It returns the confirmed order, or nil when the backend confirmed
// without sending it.
func (c *Client) SubmitStatusChange(ctx context.Context, orderID int64, target models.Status) (*models.Order, error) {
	path := "/ordenes/" + strconv.FormatInt(orderID, 10) + "/estado"
	resp, err := c.exec(ctx, http.MethodPatch, path, models.StatusChangeRequest{Status: target}, &models.StatusChangeResponse{})
	if err != nil {
		return nil, err
	}
	res := resp.Result().(*models.StatusChangeResponse)
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, res.Message)
	}
	return res.Data, nil
}

// exec runs one request. Transport failures are wrapped, non-2xx answers
// become *HTTPError, and a 2xx body is decoded into result when given.
func (c *Client) exec(ctx context.Context, method, path string, body, result any) (*resty.Response, error) {
	req := c.rc.R().SetContext(ctx).ForceContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.IsSuccess() {
		msg := resp.String()
		if len(msg) > maxErrBody {
			msg = msg[:maxErrBody]
		}
		return resp, &HTTPError{Method: method, Path: path, Status: resp.StatusCode(), Body: msg}
	}
	return resp, nil
}
