package middlewares

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/utils/auth"
)

func TestAuthentication(t *testing.T) {
	secret := []byte("super-secret-key")
	valid, err := auth.BuildToken("operator-1", secret, time.Hour)
	require.NoError(t, err)
	foreign, err := auth.BuildToken("operator-1", []byte("other"), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantUser string
		wantCode int
	}{
		{name: "valid token", header: "Bearer " + valid, wantCode: http.StatusOK, wantUser: "operator-1"},
		{name: "no header", header: "", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, wantCode: http.StatusUnauthorized},
		{name: "foreign secret", header: "Bearer " + foreign, wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser any
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = r.Context().Value(model.KeyContextUserID)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/batches", http.NoBody)
			if tt.header != "" {
				req.Header.Set(model.HeaderAuthorization, tt.header)
			}
			rr := httptest.NewRecorder()
			Authentication(secret, slog.Default())(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantUser != "" {
				assert.Equal(t, tt.wantUser, gotUser)
			} else {
				assert.Nil(t, gotUser)
			}
		})
	}
}
