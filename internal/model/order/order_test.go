package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServiceType(t *testing.T) {
	for _, s := range ServiceTypes() {
		got, err := ParseServiceType(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
		assert.NotEqual(t, string(s), s.Label())
	}

	_, err := ParseServiceType("xo_so")
	assert.Error(t, err)
	assert.Equal(t, "xo_so", ServiceType("xo_so").Label())
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		status  UpdateStatus
		wantOrd Status
		wantTx  TransactionStatus
	}{
		{UpdateSuccess, StatusCompleted, TransactionSuccess},
		{UpdateFailed, StatusFailed, TransactionFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.wantOrd, tt.status.OrderStatus())
			assert.Equal(t, tt.wantTx, tt.status.TransactionStatus())
		})
	}
}

func TestPendingCode_Line(t *testing.T) {
	assert.Equal(t, "0912345678", PendingCode{Code: "0912345678"}.Line())
	assert.Equal(t, "0912345678|o-1", PendingCode{Code: "0912345678", OrderID: "o-1"}.Line())
	assert.Equal(t, "0912345678|50000|o-1", PendingCode{Code: "0912345678|50000", OrderID: "o-1"}.Line())
	assert.Equal(t, "0912345678|50000|", PendingCode{Code: "0912345678|50000"}.Line())
}
