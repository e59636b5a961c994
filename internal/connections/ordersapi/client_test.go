package ordersapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/board/models"
)

type captured struct {
	method, path string
	header       http.Header
	body         []byte
}

func newBackend(t *testing.T, h func(w http.ResponseWriter, r *http.Request)) (*Client, *[]captured) {
	t.Helper()
	var mu sync.Mutex
	var reqs []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: b})
		mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", 2*time.Second, logger.NewWithWriter("test", io.Discard)), &reqs
}

func TestFetchActiveOrders(t *testing.T) {
	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":7,"mesa":"Mesa 4","estado":"pendiente","fecha_creacion":"2025-08-20T15:00:00Z",
			"items":[{"id":70,"nombre":"Lomo","estado":"pendiente"}]}]`)
	})
	c.SetToken("opaque-token")

	orders, err := c.FetchActiveOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(7), orders[0].ID)
	assert.Equal(t, "Mesa 4", orders[0].Table)
	assert.Equal(t, models.StatusPending, orders[0].Status)
	assert.Equal(t, "Lomo", orders[0].Items[0].Name)

	req := (*reqs)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/api/ordenes/activas", req.path)
	assert.Equal(t, "Bearer opaque-token", req.header.Get("Authorization"))
	assert.Equal(t, "application/json", req.header.Get("Accept"))
	_, err = uuid.Parse(req.header.Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestFetchActiveOrders_Envelope(t *testing.T) {
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":[{"id":1,"estado":"lista"},{"id":2,"estado":"pendiente"}]}`)
	})
	orders, err := c.FetchActiveOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestFetchActiveOrders_Failures(t *testing.T) {
	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":"TOKEN_INVALID"}`)
	})
	_, err := c.FetchActiveOrders(context.Background())
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.True(t, he.Unauthorized())
	assert.Contains(t, he.Body, "TOKEN_INVALID")
	assert.Empty(t, (*reqs)[0].header.Get("Authorization"))

	bad, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"x"`)
	})
	_, err = bad.FetchActiveOrders(context.Background())
	assert.Error(t, err)
}

func TestSubmitStatusChange(t *testing.T) {
	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"message":"ok","data":{"id":9,"mesa":"Mesa 1","estado":"preparando",
			"items":[{"id":90,"nombre":"Pan","estado":"preparando"}]}}`)
	})

	got, err := c.SubmitStatusChange(context.Background(), 9, models.StatusPreparing)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusPreparing, got.Items[0].Status)

	req := (*reqs)[0]
	assert.Equal(t, http.MethodPatch, req.method)
	assert.Equal(t, "/api/ordenes/9/estado", req.path)
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(req.body, &body))
	assert.Equal(t, map[string]string{"estado": "preparando"}, body)
}

func TestSubmitStatusChange_NoData(t *testing.T) {
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"message":"Estado actualizado"}`)
	})
	got, err := c.SubmitStatusChange(context.Background(), 9, models.StatusReady)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSubmitStatusChange_Failures(t *testing.T) {
	rejected, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"message":"Orden no encontrada"}`)
	})
	_, err := rejected.SubmitStatusChange(context.Background(), 9, models.StatusReady)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "Orden no encontrada")

	broken, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err = broken.SubmitStatusChange(context.Background(), 9, models.StatusReady)
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusInternalServerError, he.Status)

	down := New("http://127.0.0.1:1/api", time.Second, logger.NewWithWriter("test", io.Discard))
	_, err = down.SubmitStatusChange(context.Background(), 9, models.StatusReady)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id": 3, "rol": "cocina", "exp": exp.Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)

	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			_ = json.NewEncoder(w).Encode(models.LoginResponse{
				Success: true, Token: token, User: models.User{ID: 3, Name: "Cocina", Role: "cocina"},
			})
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	s, err := c.Login(context.Background(), "cocina@restaurante.com", "1234")
	require.NoError(t, err)
	assert.Equal(t, token, s.Token)
	assert.Equal(t, "cocina", s.Role)
	assert.Equal(t, "Cocina", s.User.Name)
	assert.True(t, exp.Equal(s.ExpiresAt))

	var body models.LoginRequest
	require.NoError(t, json.Unmarshal((*reqs)[0].body, &body))
	assert.Equal(t, "cocina@restaurante.com", body.Email)

	_, err = c.FetchActiveOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+token, (*reqs)[1].header.Get("Authorization"))
}

func TestLogin_Rejected(t *testing.T) {
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"message":"Credenciales inválidas"}`)
	})
	_, err := c.Login(context.Background(), "x", "y")
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Empty(t, c.Session().Token)
}

func TestRequests_NotRetriedAndFreshRequestID(t *testing.T) {
	c, reqs := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.SubmitStatusChange(context.Background(), 3, models.StatusReady)
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusServiceUnavailable, he.Status)
	assert.Equal(t, "/ordenes/3/estado", he.Path)
	require.Len(t, *reqs, 1, "a failed status change is sent once")

	_, err = c.FetchActiveOrders(context.Background())
	require.Error(t, err)
	require.Len(t, *reqs, 2)
	assert.NotEqual(t, (*reqs)[0].header.Get("X-Request-ID"), (*reqs)[1].header.Get("X-Request-ID"))
}

func TestSubmitStatusChange_BrokenConfirmation(t *testing.T) {
	c, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":`)
	})
	_, err := c.SubmitStatusChange(context.Background(), 3, models.StatusReady)
	assert.Error(t, err)
}
