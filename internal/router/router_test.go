package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talx-hub/gopher-billpay/internal/config"
	"github.com/talx-hub/gopher-billpay/internal/utils/auth"
)

type stubHandler struct {
	name string
}

func (s stubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Handler", s.name)
	w.WriteHeader(http.StatusTeapot)
}

type h struct{}

func (h) StartBatch(w http.ResponseWriter, r *http.Request) {
	stubHandler{name: "start_batch"}.ServeHTTP(w, r)
}
func (h) ListBatches(w http.ResponseWriter, r *http.Request) {
	stubHandler{name: "list_batches"}.ServeHTTP(w, r)
}
func (h) GetBatch(w http.ResponseWriter, r *http.Request) {
	stubHandler{name: "get_batch"}.ServeHTTP(w, r)
}
func (h) StopBatch(w http.ResponseWriter, r *http.Request) {
	stubHandler{name: "stop_batch"}.ServeHTTP(w, r)
}
func (h) ListPending(w http.ResponseWriter, r *http.Request) {
	stubHandler{name: "list_pending"}.ServeHTTP(w, r)
}
func (h) Ping(w http.ResponseWriter, r *http.Request) {
	stubHandler{name: "ping"}.ServeHTTP(w, r)
}

func do(t *testing.T, srv *httptest.Server, method, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, http.NoBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	err = resp.Body.Close()
	require.NoError(t, err)
	return resp
}

func TestCustomRouter_Route_happyTests(t *testing.T) {
	r := New(nil, nil)
	r.SetRouter(h{})
	srv := httptest.NewServer(r.GetRouter())
	defer srv.Close()

	tests := []struct {
		method   string
		path     string
		wantName string
		wantCode int
	}{
		{http.MethodPost, "/api/batches", "start_batch", http.StatusTeapot},
		{http.MethodGet, "/api/batches", "list_batches", http.StatusTeapot},
		{http.MethodGet, "/api/batches/b-1", "get_batch", http.StatusTeapot},
		{http.MethodPost, "/api/batches/b-1/stop", "stop_batch", http.StatusTeapot},
		{http.MethodGet, "/api/services/tra_cuu_ftth/pending", "list_pending", http.StatusTeapot},
		{http.MethodGet, "/ping", "ping", http.StatusTeapot},
	}

	for _, tt := range tests {
		resp := do(t, srv, tt.method, tt.path, "")
		assert.Equal(t, tt.wantCode, resp.StatusCode)
		assert.Equal(t, tt.wantName, resp.Header.Get("X-Handler"))
	}
}

func TestCustomRouter_Route_wrong_routes(t *testing.T) {
	r := New(nil, nil)
	r.SetRouter(h{})
	srv := httptest.NewServer(r.GetRouter())
	defer srv.Close()

	tests := []struct {
		method   string
		path     string
		wantCode int
	}{
		{http.MethodPost, "/", http.StatusNotFound},
		{http.MethodGet, "/api/", http.StatusNotFound},
		{http.MethodPost, "/api", http.StatusNotFound},
		{http.MethodGet, "/api/services/tra_cuu_ftth", http.StatusNotFound},
		{http.MethodGet, "/api/batches/b-1/stop/now", http.StatusNotFound},
		{http.MethodGet, "/ping/", http.StatusNotFound},

		{http.MethodDelete, "/api/batches", http.StatusMethodNotAllowed},
		{http.MethodPut, "/api/batches/b-1", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/batches/b-1/stop", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/services/tra_cuu_ftth/pending", http.StatusMethodNotAllowed},
		{http.MethodPost, "/ping?x=true", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, "")
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}
}

func TestCustomRouter_Route_authentication(t *testing.T) {
	const secret = "Zq8!vR2#kP9@wL5$"
	r := New(&config.Config{SecretKey: secret}, nil)
	r.SetRouter(h{})
	srv := httptest.NewServer(r.GetRouter())
	defer srv.Close()

	token, err := auth.BuildToken("operator", []byte(secret), 0)
	require.NoError(t, err)
	foreign, err := auth.BuildToken("operator", []byte("another-secret"), 0)
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		wantCode int
	}{
		{"no token", http.MethodGet, "/api/batches", "", http.StatusUnauthorized},
		{"foreign token", http.MethodGet, "/api/batches", foreign, http.StatusUnauthorized},
		{"garbage token", http.MethodPost, "/api/batches/b-1/stop", "not.a.jwt", http.StatusUnauthorized},
		{"valid token", http.MethodGet, "/api/batches", token, http.StatusTeapot},
		{"valid token pending", http.MethodGet, "/api/services/gach_dien_evn/pending", token, http.StatusTeapot},
		{"ping stays open", http.MethodGet, "/ping", "", http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}
}
