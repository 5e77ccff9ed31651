package callback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
)

func TestNewPayload(t *testing.T) {
	amount := int64(50000)
	details := map[string]string{"contract_code": "HD1"}

	tests := []struct {
		name   string
		update order.Update
		want   string
	}{
		{
			name: "success with amount and details",
			update: order.Update{
				OrderID: "o1", Code: "c1", Status: order.UpdateSuccess,
				Amount: &amount, Notes: "ok", Details: details,
			},
			want: `{"orderId":"o1","code":"c1","status":"success","amount":"50000","notes":"ok",
				"data":{"type":"ftth_details","details":{"contract_code":"HD1"}}}`,
		},
		{
			name: "failure without amount",
			update: order.Update{
				OrderID: "o2", Code: "c2", Status: order.UpdateFailed, Notes: "timeout",
			},
			want: `{"orderId":"o2","code":"c2","status":"failed","amount":null,"notes":"timeout"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(NewPayload(tt.update))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestClient_UpdateOrder(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
	}{
		{
			name:      "delivered on first try",
			statuses:  []int{http.StatusOK},
			wantCalls: 1,
		},
		{
			name:      "retried after server error",
			statuses:  []int{http.StatusInternalServerError, http.StatusOK},
			wantCalls: 2,
		},
		{
			name:      "rate limited then delivered",
			statuses:  []int{http.StatusTooManyRequests, http.StatusOK},
			wantCalls: 2,
		},
		{
			name: "gives up after three tries",
			statuses: []int{
				http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway,
			},
			wantCalls: 3,
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, callbackPath, r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				body, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				var p Payload
				assert.NoError(t, json.Unmarshal(body, &p))
				assert.Equal(t, "o1", p.OrderID)

				status := tt.statuses[n-1]
				if status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "0")
				}
				w.WriteHeader(status)
			}))
			defer srv.Close()

			c := New(srv.URL, 3, time.Millisecond)
			err := c.UpdateOrder(context.Background(), order.Update{
				OrderID: "o1", Code: "c1", Status: order.UpdateSuccess,
			})
			if tt.wantErr {
				var statusErr *serviceerrs.CallbackStatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestClient_FindOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ordersPath, r.URL.Path)
		assert.Equal(t, "tra_cuu_ftth", r.URL.Query().Get("serviceType"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("code") {
		case "known":
			_, _ = w.Write([]byte(`[{"orderId":"o-new","code":"known"},{"orderId":"o-old","code":"known"}]`))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", 1, 0)
	ctx := context.Background()

	id, err := c.FindOrderID(ctx, order.ServiceFTTHLookup, "known")
	require.NoError(t, err)
	assert.Equal(t, "o-new", id)

	ids, err := c.ListPendingOrders(ctx, order.ServiceFTTHLookup, "known")
	require.NoError(t, err)
	assert.Equal(t, []string{"o-new", "o-old"}, ids)

	_, err = c.FindOrderID(ctx, order.ServiceFTTHLookup, "missing")
	assert.ErrorIs(t, err, serviceerrs.ErrOrderNotFound)

	_, err = c.FindOrderID(ctx, order.ServiceFTTHLookup, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, serviceerrs.ErrOrderNotFound)
}

func TestHandleResponse_retryAfter(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"7"}},
	}
	err := handleResponse(resp, nil)

	var tooMany *serviceerrs.TooManyRequestsError
	require.True(t, errors.As(err, &tooMany))
	assert.Equal(t, 7*time.Second, tooMany.RetryAfter)

	resp.Header = http.Header{}
	assert.Error(t, handleResponse(resp, nil))
}
