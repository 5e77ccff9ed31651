package repo

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
)

func TestOrderRepository_FindOrderID(t *testing.T) {
	repo, ctx, _ := setupRepo(t, NewOrderRepository)

	id, err := repo.FindOrderID(ctx, order.ServiceFTTHLookup, "find-1")
	require.NoError(t, err)
	assert.Equal(t, "o-find-new", id)

	id, err = repo.FindOrderID(ctx, order.ServiceEVNPayment, "find-1")
	require.NoError(t, err)
	assert.Equal(t, "o-find-evn", id)

	_, err = repo.FindOrderID(ctx, order.ServiceViettelTopUp, "find-1")
	assert.ErrorIs(t, err, serviceerrs.ErrOrderNotFound)
}

func TestOrderRepository_ListPendingOrders(t *testing.T) {
	repo, ctx, _ := setupRepo(t, NewOrderRepository)

	ids, err := repo.ListPendingOrders(ctx, order.ServiceFTTHLookup, "find-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o-find-new", "o-find-old"}, ids)

	ids, err = repo.ListPendingOrders(ctx, order.ServiceFTTHLookup, "no-such-code")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOrderRepository_FetchPendingCodes(t *testing.T) {
	repo, ctx, _ := setupRepo(t, NewOrderRepository)

	codes, err := repo.FetchPendingCodes(ctx, order.ServicePostpaidLookup, 10)
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Equal(t, "p-1", codes[0].Code)
	assert.Equal(t, "o-p1", codes[0].OrderID)
	assert.Equal(t, "p-2", codes[1].Code)
	assert.Equal(t, "o-p2b", codes[1].OrderID)
	assert.Equal(t, "p-2|o-p2b", codes[1].Line())

	codes, err = repo.FetchPendingCodes(ctx, order.ServicePostpaidLookup, 1)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "p-1", codes[0].Code)
}

type storedState struct {
	Amount            pgtype.Numeric
	Notes             pgtype.Text
	ResultData        pgtype.Text
	TransactionStatus string
	OrderStatus       string
}

func loadState(t *testing.T, repo *OrderRepository, orderID string) storedState {
	t.Helper()
	var s storedState
	err := repo.pool.QueryRow(t.Context(), `
		SELECT st.status, st.amount, st.notes, o.status, o.result_data
		FROM orders o
		LEFT JOIN service_transactions st ON st.order_id = o.id
		WHERE o.id = $1`, orderID,
	).Scan(&s.TransactionStatus, &s.Amount, &s.Notes, &s.OrderStatus, &s.ResultData)
	require.NoError(t, err)
	return s
}

func TestOrderRepository_UpdateOrder(t *testing.T) {
	repo, ctx, _ := setupRepo(t, NewOrderRepository)

	t.Run("success", func(t *testing.T) {
		amount := int64(150000)
		err := repo.UpdateOrder(ctx, order.Update{
			OrderID: "o-upd-1",
			Code:    "upd-1",
			Service: order.ServiceEVNPayment,
			Status:  order.UpdateSuccess,
			Amount:  &amount,
			Notes:   "EVN payment ok",
		})
		require.NoError(t, err)

		s := loadState(t, repo, "o-upd-1")
		assert.Equal(t, "success", s.TransactionStatus)
		assert.Equal(t, "completed", s.OrderStatus)
		assert.Equal(t, "EVN payment ok", s.Notes.String)
		v, err := s.Amount.Int64Value()
		require.NoError(t, err)
		assert.Equal(t, int64(150000), v.Int64)
		assert.JSONEq(t,
			`{"code":"upd-1","status":"completed","amount":"150000","notes":"EVN payment ok","details":null}`,
			s.ResultData.String)
	})

	t.Run("failure keeps amount empty", func(t *testing.T) {
		err := repo.UpdateOrder(ctx, order.Update{
			OrderID: "o-fail-1",
			Code:    "fail-1",
			Service: order.ServiceEVNPayment,
			Status:  order.UpdateFailed,
			Notes:   "timeout",
		})
		require.NoError(t, err)

		s := loadState(t, repo, "o-fail-1")
		assert.Equal(t, "failed", s.TransactionStatus)
		assert.Equal(t, "failed", s.OrderStatus)
		assert.False(t, s.Amount.Valid)
	})

	t.Run("paid order closes duplicates", func(t *testing.T) {
		amount := int64(220000)
		err := repo.UpdateOrder(ctx, order.Update{
			OrderID: "o-dup-b",
			Code:    "dup-1",
			Service: order.ServiceTVInternet,
			Status:  order.UpdateSuccess,
			Amount:  &amount,
		})
		require.NoError(t, err)

		dup := loadState(t, repo, "o-dup-a")
		assert.Equal(t, "failed", dup.TransactionStatus)
		assert.Equal(t, DuplicateClosedNote, dup.Notes.String)
		assert.Equal(t, "pending", dup.OrderStatus)
	})

	t.Run("order without transactions falls back to code", func(t *testing.T) {
		err := repo.UpdateOrder(ctx, order.Update{
			OrderID: "o-orphan",
			Code:    "orphan-1",
			Service: order.ServiceViettelTopUp,
			Status:  order.UpdateFailed,
			Notes:   "Số dư không đủ",
		})
		require.NoError(t, err)

		s := loadState(t, repo, "o-orphan-tx")
		assert.Equal(t, "failed", s.TransactionStatus)
		assert.Equal(t, "Số dư không đủ", s.Notes.String)
	})

	t.Run("unknown order", func(t *testing.T) {
		err := repo.UpdateOrder(ctx, order.Update{
			OrderID: "no-such-order",
			Code:    "no-such-code",
			Service: order.ServiceViettelTopUp,
			Status:  order.UpdateFailed,
		})
		assert.ErrorIs(t, err, serviceerrs.ErrOrderNotFound)
	})
}

func TestOrderRepository_MarkProcessing(t *testing.T) {
	repo, ctx, _ := setupRepo(t, NewOrderRepository)

	require.NoError(t, repo.MarkProcessing(ctx, "o-mark-1", "mark-1"))

	s := loadState(t, repo, "o-mark-1")
	assert.Equal(t, "processing", s.OrderStatus)
	assert.Equal(t, "processing", s.TransactionStatus)
}

func TestOrderRepository_InsertOrders(t *testing.T) {
	repo, ctx, _ := setupRepo(t, NewOrderRepository)

	n, err := repo.InsertOrders(ctx, order.ServiceMultiTopUp, "u1",
		[]string{"0912000001", "0912000002|50000"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	codes, err := repo.FetchPendingCodes(ctx, order.ServiceMultiTopUp, 10)
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Equal(t, "0912000001", codes[0].Code)

	n, err = repo.InsertOrders(ctx, order.ServiceMultiTopUp, "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
