package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const findOrderIDByCode = `-- name: FindOrderIDByCode :one
SELECT st.order_id
FROM service_transactions st
JOIN orders o ON o.id = st.order_id
WHERE st.code = $1
  AND o.service_type = $2
  AND st.status IN ('pending', 'processing')
ORDER BY st.created_at DESC
LIMIT 1
`

type FindOrderIDByCodeParams struct {
	Code        string
	ServiceType string
}

func (q *Queries) FindOrderIDByCode(ctx context.Context, arg FindOrderIDByCodeParams,
) (string, error) {
	row := q.db.QueryRow(ctx, findOrderIDByCode, arg.Code, arg.ServiceType)
	var orderID string
	err := row.Scan(&orderID)
	return orderID, err
}

const listPendingOrderIDs = `-- name: ListPendingOrderIDs :many
SELECT st.order_id
FROM service_transactions st
JOIN orders o ON o.id = st.order_id
WHERE st.code = $1
  AND o.service_type = $2
  AND st.status IN ('pending', 'processing')
ORDER BY st.created_at DESC
`

type ListPendingOrderIDsParams struct {
	Code        string
	ServiceType string
}

func (q *Queries) ListPendingOrderIDs(ctx context.Context, arg ListPendingOrderIDsParams,
) ([]string, error) {
	rows, err := q.db.Query(ctx, listPendingOrderIDs, arg.Code, arg.ServiceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var orderID string
		if err := rows.Scan(&orderID); err != nil {
			return nil, err
		}
		items = append(items, orderID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listPendingCodes = `-- name: ListPendingCodes :many
SELECT code, order_id, created_at
FROM (
    SELECT DISTINCT ON (st.code) st.code, st.order_id, st.created_at
    FROM service_transactions st
    JOIN orders o ON o.id = st.order_id
    WHERE o.service_type = $1
      AND st.status IN ('pending', 'processing')
    ORDER BY st.code, st.created_at DESC
) latest
ORDER BY created_at, code
LIMIT $2
`

type ListPendingCodesParams struct {
	ServiceType string
	Limit       int32
}

type ListPendingCodesRow struct {
	CreatedAt pgtype.Timestamp
	Code      string
	OrderID   string
}

func (q *Queries) ListPendingCodes(ctx context.Context, arg ListPendingCodesParams,
) ([]ListPendingCodesRow, error) {
	rows, err := q.db.Query(ctx, listPendingCodes, arg.ServiceType, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPendingCodesRow
	for rows.Next() {
		var i ListPendingCodesRow
		if err := rows.Scan(&i.Code, &i.OrderID, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderResult = `-- name: UpdateOrderResult :execresult
UPDATE orders
SET status = $1,
    result_data = $2,
    updated_at = NOW()
WHERE id = $3
`

type UpdateOrderResultParams struct {
	Status     string
	ResultData string
	ID         string
}

func (q *Queries) UpdateOrderResult(ctx context.Context, arg UpdateOrderResultParams,
) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, updateOrderResult, arg.Status, arg.ResultData, arg.ID)
}

const updateTransactionsByOrder = `-- name: UpdateTransactionsByOrder :execresult
UPDATE service_transactions
SET status = $1,
    amount = COALESCE($2, amount),
    notes = $3,
    processing_data = $4,
    updated_at = NOW()
WHERE order_id = $5
`

type UpdateTransactionsParams struct {
	Amount         pgtype.Numeric
	Status         string
	Notes          string
	ProcessingData string
}

type UpdateTransactionsByOrderParams struct {
	UpdateTransactionsParams
	OrderID string
}

func (q *Queries) UpdateTransactionsByOrder(ctx context.Context,
	arg UpdateTransactionsByOrderParams,
) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, updateTransactionsByOrder,
		arg.Status, arg.Amount, arg.Notes, arg.ProcessingData, arg.OrderID)
}

const updateLatestTransactionByCode = `-- name: UpdateLatestTransactionByCode :execresult
UPDATE service_transactions
SET status = $1,
    amount = COALESCE($2, amount),
    notes = $3,
    processing_data = $4,
    updated_at = NOW()
WHERE id = (
    SELECT st.id
    FROM service_transactions st
    JOIN orders o ON o.id = st.order_id
    WHERE split_part(st.code, '|', 1) = $5
      AND o.service_type = $6
      AND st.status IN ('pending', 'processing')
    ORDER BY st.created_at DESC
    LIMIT 1
)
`

type UpdateLatestTransactionByCodeParams struct {
	UpdateTransactionsParams
	Code        string
	ServiceType string
}

func (q *Queries) UpdateLatestTransactionByCode(ctx context.Context,
	arg UpdateLatestTransactionByCodeParams,
) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, updateLatestTransactionByCode,
		arg.Status, arg.Amount, arg.Notes, arg.ProcessingData, arg.Code, arg.ServiceType)
}

const closeDuplicateTransactions = `-- name: CloseDuplicateTransactions :execresult
UPDATE service_transactions st
SET status = 'failed',
    notes = $2,
    updated_at = NOW()
FROM orders o
WHERE o.id = st.order_id
  AND st.order_id <> $1
  AND st.status IN ('pending', 'processing')
  AND o.service_type = (SELECT service_type FROM orders WHERE id = $1)
  AND st.code IN (SELECT code FROM service_transactions WHERE order_id = $1)
`

type CloseDuplicateTransactionsParams struct {
	OrderID string
	Notes   string
}

func (q *Queries) CloseDuplicateTransactions(ctx context.Context,
	arg CloseDuplicateTransactionsParams,
) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, closeDuplicateTransactions, arg.OrderID, arg.Notes)
}

const markOrderProcessing = `-- name: MarkOrderProcessing :exec
UPDATE orders
SET status = 'processing',
    updated_at = NOW()
WHERE id = $1
  AND status = 'pending'
`

func (q *Queries) MarkOrderProcessing(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, markOrderProcessing, id)
	return err
}

const markTransactionsProcessing = `-- name: MarkTransactionsProcessing :exec
UPDATE service_transactions
SET status = 'processing',
    updated_at = NOW()
WHERE order_id = $1
  AND status = 'pending'
`

func (q *Queries) MarkTransactionsProcessing(ctx context.Context, orderID string) error {
	_, err := q.db.Exec(ctx, markTransactionsProcessing, orderID)
	return err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (user_id, service_type, status, input_data)
VALUES ($1, $2, 'pending', $3)
RETURNING id
`

type CreateOrderParams struct {
	UserID      string
	ServiceType string
	InputData   string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (string, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.UserID, arg.ServiceType, arg.InputData)
	var id string
	err := row.Scan(&id)
	return id, err
}

const createTransaction = `-- name: CreateTransaction :exec
INSERT INTO service_transactions (order_id, code, status)
VALUES ($1, $2, 'pending')
`

type CreateTransactionParams struct {
	OrderID string
	Code    string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.Exec(ctx, createTransaction, arg.OrderID, arg.Code)
	return err
}
