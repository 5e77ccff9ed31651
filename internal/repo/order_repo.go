package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/repo/internal/db"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
)

// DuplicateClosedNote marks transactions closed because another order for
// the same code was paid.
const DuplicateClosedNote = "auto-closed dup"

type OrderRepository struct {
	DB
}

func NewOrderRepository(pool connectionPool, log *slog.Logger) *OrderRepository {
	return &OrderRepository{
		DB{
			pool: pool,
			log:  log,
		},
	}
}

// FindOrderID returns the newest pending or processing order for the code.
func (r *OrderRepository) FindOrderID(ctx context.Context,
	service order.ServiceType, code string,
) (string, error) {
	findLogic := func() (string, error) {
		queries := db.New(r.pool)
		id, err := queries.FindOrderIDByCode(ctx, db.FindOrderIDByCodeParams{
			Code:        code,
			ServiceType: string(service),
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return "", serviceerrs.ErrOrderNotFound
		}
		if err != nil {
			return "", fmt.Errorf("failed to find order for code %s: %w", code, err)
		}
		return id, nil
	}

	return withRetry(ctx, findLogic) //nolint: wrapcheck // error from wrapped function
}

func (r *OrderRepository) ListPendingOrders(ctx context.Context,
	service order.ServiceType, code string,
) ([]string, error) {
	listLogic := func() ([]string, error) {
		queries := db.New(r.pool)
		ids, err := queries.ListPendingOrderIDs(ctx, db.ListPendingOrderIDsParams{
			Code:        code,
			ServiceType: string(service),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list pending orders for code %s: %w", code, err)
		}
		return ids, nil
	}

	return withRetry(ctx, listLogic) //nolint: wrapcheck // error from wrapped function
}

// FetchPendingCodes returns up to limit distinct codes still waiting for
// processing, oldest first, each with its newest order.
func (r *OrderRepository) FetchPendingCodes(ctx context.Context,
	service order.ServiceType, limit int,
) ([]order.PendingCode, error) {
	fetchLogic := func() ([]order.PendingCode, error) {
		queries := db.New(r.pool)
		rows, err := queries.ListPendingCodes(ctx, db.ListPendingCodesParams{
			ServiceType: string(service),
			Limit:       int32(limit), //nolint: gosec // limit is a small config value
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch pending codes for %s: %w", service, err)
		}

		codes := make([]order.PendingCode, 0, len(rows))
		for _, row := range rows {
			if row.Code == "" {
				continue
			}
			codes = append(codes, order.PendingCode{
				CreatedAt: row.CreatedAt.Time,
				Code:      row.Code,
				OrderID:   row.OrderID,
			})
		}
		return codes, nil
	}

	return withRetry(ctx, fetchLogic) //nolint: wrapcheck // error from wrapped function
}

type resultData struct {
	Details any     `json:"details"`
	Amount  *string `json:"amount"`
	Code    string  `json:"code"`
	Status  string  `json:"status"`
	Notes   string  `json:"notes"`
}

// UpdateOrder writes the outcome to the order and its transactions in one TX.
// When the order has no transactions the newest open transaction for the code
// is updated instead. A successful payment closes open duplicates of the code.
func (r *OrderRepository) UpdateOrder(ctx context.Context, u order.Update) error {
	result := resultData{
		Code:    u.Code,
		Status:  string(u.Status.OrderStatus()),
		Notes:   u.Notes,
		Details: u.Details,
	}
	amount := pgtype.Numeric{}
	if u.Amount != nil {
		s := strconv.FormatInt(*u.Amount, 10)
		result.Amount = &s
		amount = pgtype.Numeric{Int: big.NewInt(*u.Amount), Valid: true}
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result for order %s: %w", u.OrderID, err)
	}

	update := func(ctx context.Context, tx connectionPool) (struct{}, error) {
		queries := db.New(tx)

		orderTag, err := queries.UpdateOrderResult(ctx, db.UpdateOrderResultParams{
			Status:     string(u.Status.OrderStatus()),
			ResultData: string(resultJSON),
			ID:         u.OrderID,
		})
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to update order %s: %w", u.OrderID, err)
		}

		txParams := db.UpdateTransactionsParams{
			Amount:         amount,
			Status:         string(u.Status.TransactionStatus()),
			Notes:          u.Notes,
			ProcessingData: string(resultJSON),
		}
		trTag, err := queries.UpdateTransactionsByOrder(ctx, db.UpdateTransactionsByOrderParams{
			UpdateTransactionsParams: txParams,
			OrderID:                  u.OrderID,
		})
		if err != nil {
			return struct{}{}, fmt.Errorf(
				"failed to update transactions of order %s: %w", u.OrderID, err)
		}
		if trTag.RowsAffected() == 0 && u.Service != "" {
			trTag, err = queries.UpdateLatestTransactionByCode(ctx,
				db.UpdateLatestTransactionByCodeParams{
					UpdateTransactionsParams: txParams,
					Code:                     u.Code,
					ServiceType:              string(u.Service),
				})
			if err != nil {
				return struct{}{}, fmt.Errorf(
					"failed to update transaction by code %s: %w", u.Code, err)
			}
		}
		if orderTag.RowsAffected() == 0 && trTag.RowsAffected() == 0 {
			return struct{}{}, fmt.Errorf("order %s: %w", u.OrderID, serviceerrs.ErrOrderNotFound)
		}

		if u.Status == order.UpdateSuccess {
			closed, err := queries.CloseDuplicateTransactions(ctx,
				db.CloseDuplicateTransactionsParams{
					OrderID: u.OrderID,
					Notes:   DuplicateClosedNote,
				})
			if err != nil {
				return struct{}{}, fmt.Errorf(
					"failed to close duplicates of order %s: %w", u.OrderID, err)
			}
			if closed.RowsAffected() > 0 {
				r.log.LogAttrs(ctx, slog.LevelInfo, "duplicate transactions closed",
					slog.String("order_id", u.OrderID),
					slog.Int64("count", closed.RowsAffected()),
				)
			}
		}
		return struct{}{}, nil
	}

	_, err = retryTx(ctx, r.DB, update)
	return err //nolint: wrapcheck // error from wrapped function
}

// MarkProcessing moves a pending order and its transactions to processing.
func (r *OrderRepository) MarkProcessing(ctx context.Context, orderID, _ string) error {
	mark := func(ctx context.Context, tx connectionPool) (struct{}, error) {
		queries := db.New(tx)
		if err := queries.MarkOrderProcessing(ctx, orderID); err != nil {
			return struct{}{}, fmt.Errorf("failed to mark order %s processing: %w", orderID, err)
		}
		if err := queries.MarkTransactionsProcessing(ctx, orderID); err != nil {
			return struct{}{}, fmt.Errorf(
				"failed to mark transactions of order %s processing: %w", orderID, err)
		}
		return struct{}{}, nil
	}

	_, err := retryTx(ctx, r.DB, mark)
	return err //nolint: wrapcheck // error from wrapped function
}

// InsertOrders creates one pending order with one pending transaction per code.
func (r *OrderRepository) InsertOrders(ctx context.Context,
	service order.ServiceType, userID string, codes []string,
) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}

	insert := func(ctx context.Context, tx connectionPool) (int, error) {
		queries := db.New(tx)
		for _, code := range codes {
			id, err := queries.CreateOrder(ctx, db.CreateOrderParams{
				UserID:      userID,
				ServiceType: string(service),
				InputData:   code,
			})
			if err != nil {
				return 0, fmt.Errorf("failed to create order for code %s: %w", code, err)
			}
			if err = queries.CreateTransaction(ctx, db.CreateTransactionParams{
				OrderID: id,
				Code:    code,
			}); err != nil {
				return 0, fmt.Errorf("failed to create transaction for code %s: %w", code, err)
			}
		}
		return len(codes), nil
	}

	return retryTx(ctx, r.DB, insert) //nolint: wrapcheck // error from wrapped function
}
