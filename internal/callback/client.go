// Package callback reports order results to the order service over HTTP.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
	"github.com/talx-hub/gopher-billpay/internal/utils/logger"
)

const (
	callbackPath = "/api/automation/callback"
	ordersPath   = "/api/automation/orders"
	healthPath   = "/api/health"

	detailsType     = "ftth_details"
	processingNotes = "Đang xử lý"
)

type Client struct {
	client   http.Client
	baseURL  string
	attempts int
	backoff  time.Duration
}

func New(baseURL string, attempts int, backoff time.Duration) *Client {
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		client:   http.Client{Timeout: model.DefaultCallbackTimeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		attempts: attempts,
		backoff:  backoff,
	}
}

type Data struct {
	Details any    `json:"details"`
	Type    string `json:"type"`
}

type Payload struct {
	Data    *Data   `json:"data,omitempty"`
	Amount  *string `json:"amount"`
	OrderID string  `json:"orderId"`
	Code    string  `json:"code"`
	Status  string  `json:"status"`
	Notes   string  `json:"notes"`
}

// PendingOrder is one entry of the order service lookup.
type PendingOrder struct {
	CreatedAt time.Time `json:"createdAt"`
	OrderID   string    `json:"orderId"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
}

func NewPayload(u order.Update) Payload {
	p := Payload{
		OrderID: u.OrderID,
		Code:    u.Code,
		Status:  string(u.Status),
		Notes:   u.Notes,
	}
	if u.Amount != nil {
		s := strconv.FormatInt(*u.Amount, 10)
		p.Amount = &s
	}
	if u.Details != nil {
		p.Data = &Data{Type: detailsType, Details: u.Details}
	}
	return p
}

func (c *Client) UpdateOrder(ctx context.Context, u order.Update) error {
	return c.send(ctx, NewPayload(u))
}

func (c *Client) MarkProcessing(ctx context.Context, orderID, code string) error {
	return c.send(ctx, Payload{
		OrderID: orderID,
		Code:    code,
		Status:  string(order.StatusProcessing),
		Notes:   processingNotes,
	})
}

func (c *Client) FindOrderID(ctx context.Context, service order.ServiceType, code string,
) (string, error) {
	orders, err := c.listOrders(ctx, service, code)
	if err != nil {
		return "", err
	}
	if len(orders) == 0 {
		return "", serviceerrs.ErrOrderNotFound
	}
	return orders[0].OrderID, nil
}

func (c *Client) ListPendingOrders(ctx context.Context, service order.ServiceType, code string,
) ([]string, error) {
	orders, err := c.listOrders(ctx, service, code)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}
	return ids, nil
}

// Health reports whether the order service answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	return err
}

// send posts the payload, retrying on transport errors and bad statuses.
// A 429 answer waits for Retry-After instead of the fixed backoff.
func (c *Client) send(ctx context.Context, p Payload) error {
	log := logger.FromContext(ctx).With(
		slog.String("order_id", p.OrderID),
		slog.String("code", p.Code),
	)

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode callback payload: %w", err)
	}

	var lastErr error
	for attempt := range c.attempts {
		_, lastErr = c.do(ctx, http.MethodPost, c.baseURL+callbackPath, body)
		if lastErr == nil {
			log.LogAttrs(ctx, slog.LevelInfo, "callback delivered",
				slog.Int("attempt", attempt+1),
				slog.String("status", p.Status),
			)
			return nil
		}

		log.LogAttrs(ctx, slog.LevelWarn, "callback failed",
			slog.Int("attempt", attempt+1),
			slog.Any(model.KeyLoggerError, lastErr),
		)
		if attempt == c.attempts-1 {
			break
		}

		wait := c.backoff
		var tooMany *serviceerrs.TooManyRequestsError
		if errors.As(lastErr, &tooMany) {
			wait = tooMany.RetryAfter
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("callback cancelled: %w", ctx.Err())
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("callback failed after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) listOrders(ctx context.Context, service order.ServiceType, code string,
) ([]PendingOrder, error) {
	query := url.Values{}
	query.Set("serviceType", string(service))
	query.Set("code", code)

	body, err := c.do(ctx, http.MethodGet, c.baseURL+ordersPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("order lookup failed: %w", err)
	}

	var orders []PendingOrder
	if err = json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("order lookup decoding error: %w", err)
	}
	return orders, nil
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte,
) ([]byte, error) {
	tCtx, cancel := context.WithTimeout(ctx, model.DefaultCallbackTimeout)
	defer cancel()

	var reqBody io.Reader = http.NoBody
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	request, err := http.NewRequestWithContext(tCtx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create the request: %w", err)
	}
	if payload != nil {
		request.Header.Set(model.HeaderContentType, "application/json")
	}

	resp, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to the order service: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.FromContext(ctx).LogAttrs(ctx,
				slog.LevelError,
				"failed to close the response body",
				slog.Any(model.KeyLoggerError, err),
			)
		}
	}()
	if err != nil {
		return nil, fmt.Errorf("failed to read the body: %w", err)
	}

	return body, handleResponse(resp, body)
}

func handleResponse(resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return serviceerrs.ErrOrderNotFound
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		if retryAfter == "" {
			return errors.New("empty retry-after value")
		}
		ra, err := strconv.Atoi(retryAfter)
		if err != nil {
			return fmt.Errorf("retry after atoi failed: %w", err)
		}
		return &serviceerrs.TooManyRequestsError{
			RetryAfter: time.Duration(ra) * time.Second,
		}
	}

	return &serviceerrs.CallbackStatusError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
