package dto

import (
	"errors"
	"time"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
)

// StartBatchRequest accepts the codes either as a list or as one
// newline separated text.
type StartBatchRequest struct {
	Service string   `json:"service"`
	Text    string   `json:"text,omitempty"`
	PIN     string   `json:"pin,omitempty"`
	Amount  string   `json:"amount,omitempty"`
	Lines   []string `json:"lines,omitempty"`
}

// AllLines merges Lines and Text, keeping the order.
func (r *StartBatchRequest) AllLines() []string {
	lines := append([]string{}, r.Lines...)
	return append(lines, model.SplitLines(r.Text)...)
}

func (r *StartBatchRequest) IsValid() error {
	var serviceErr, linesErr error
	if _, err := order.ParseServiceType(r.Service); err != nil {
		serviceErr = err
	}

	hasCode := false
	for _, l := range r.AllLines() {
		if _, ok := model.ParseItem(l); ok {
			hasCode = true
			break
		}
	}
	if !hasCode {
		linesErr = errors.New("no codes to process")
	}
	return errors.Join(serviceErr, linesErr)
}

type StartBatchResponse struct {
	ID string `json:"id"`
}

type PendingCodeResponse struct {
	CreatedAt time.Time `json:"created_at"`
	Code      string    `json:"code"`
	OrderID   string    `json:"order_id,omitempty"`
	Line      string    `json:"line"`
}

func NewPendingCodeResponse(p order.PendingCode) PendingCodeResponse {
	return PendingCodeResponse{
		CreatedAt: p.CreatedAt,
		Code:      p.Code,
		OrderID:   p.OrderID,
		Line:      p.Line(),
	}
}
