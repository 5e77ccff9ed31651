// Package reconciler writes processing outcomes back to the order store.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
	"github.com/talx-hub/gopher-billpay/internal/utils/logger"
)

type OrderStore interface {
	// FindOrderID returns serviceerrs.ErrOrderNotFound when no pending or
	// processing transaction exists for the code.
	FindOrderID(ctx context.Context, service order.ServiceType, code string) (string, error)
	ListPendingOrders(ctx context.Context, service order.ServiceType, code string) ([]string, error)
	UpdateOrder(ctx context.Context, u order.Update) error
	MarkProcessing(ctx context.Context, orderID, code string) error
}

type Reconciler struct {
	store OrderStore
}

func New(store OrderStore) *Reconciler {
	return &Reconciler{store: store}
}

// Begin maps every item to its order and marks the order processing.
// Items carrying an order id use it as is.
func (r *Reconciler) Begin(ctx context.Context,
	service order.ServiceType, items []model.Item,
) map[string]string {
	log := logger.FromContext(ctx)
	mapping := make(map[string]string, len(items))

	for _, item := range items {
		if _, seen := mapping[item.Code]; seen {
			continue
		}
		orderID := item.OrderID
		if orderID == "" {
			orderID = r.find(ctx, service, item.Code)
		}
		mapping[item.Code] = orderID
		if orderID == "" {
			log.LogAttrs(ctx, slog.LevelInfo, "order not found",
				slog.String("code", item.Code))
			continue
		}

		if err := r.store.MarkProcessing(ctx, orderID, item.Code); err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "failed to mark order processing",
				slog.String("code", item.Code),
				slog.String("order_id", orderID),
				slog.Any(model.KeyLoggerError, err),
			)
		}
	}
	return mapping
}

// Reconcile sends one update for the outcome. Failures are logged only.
func (r *Reconciler) Reconcile(ctx context.Context,
	service order.ServiceType, item model.Item, orderID string, o outcome.Outcome,
) {
	log := logger.FromContext(ctx).With(slog.String("code", item.Code))

	if orderID == "" {
		orderID = r.find(ctx, service, item.Code)
	}
	if orderID == "" {
		pending, err := r.store.ListPendingOrders(ctx, service, item.Code)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "failed to list pending orders",
				slog.Any(model.KeyLoggerError, err))
		}
		log.LogAttrs(ctx, slog.LevelWarn, "no order for code, update skipped",
			slog.String("pending", strings.Join(pending, ", ")))
		return
	}

	u := NewUpdate(service, orderID, item.Code, o)
	if err := r.store.UpdateOrder(ctx, u); err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "failed to update order",
			slog.String("order_id", orderID),
			slog.Any(model.KeyLoggerError, err),
		)
		return
	}
	log.LogAttrs(ctx, slog.LevelInfo, "order updated",
		slog.String("order_id", orderID),
		slog.String("status", string(u.Status)),
	)
}

func (r *Reconciler) find(ctx context.Context, service order.ServiceType, code string) string {
	id, err := r.store.FindOrderID(ctx, service, code)
	if err == nil {
		return id
	}
	if !errors.Is(err, serviceerrs.ErrOrderNotFound) {
		logger.FromContext(ctx).LogAttrs(ctx, slog.LevelWarn, "order lookup failed",
			slog.String("code", code),
			slog.Any(model.KeyLoggerError, err),
		)
	}
	return ""
}

// NewUpdate converts an outcome to an order update. Amounts the portal
// showed as text are sent as null and kept in the notes.
func NewUpdate(service order.ServiceType, orderID, code string, o outcome.Outcome,
) order.Update {
	u := order.Update{
		Service: service,
		OrderID: orderID,
		Code:    code,
		Status:  order.UpdateSuccess,
		Notes:   o.Notes,
		Details: o.Details,
	}
	if o.IsError() {
		u.Status = order.UpdateFailed
		return u
	}

	switch {
	case o.Amount.IsRaw():
		u.Notes = joinNotes(u.Notes, fmt.Sprintf("amount: %s", o.Amount.Raw()))
	case !o.Amount.IsAbsent():
		v, _ := o.Amount.Int64()
		u.Amount = &v
	}
	return u
}

func joinNotes(notes, extra string) string {
	if notes == "" {
		return extra
	}
	return notes + " | " + extra
}
