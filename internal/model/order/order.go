package order

import (
	"fmt"
	"strings"
	"time"
)

// ServiceType mirrors the service_type enum of the order store.
type ServiceType string

const (
	ServiceFTTHLookup     ServiceType = "tra_cuu_ftth"
	ServiceEVNPayment     ServiceType = "gach_dien_evn"
	ServiceMultiTopUp     ServiceType = "nap_tien_da_mang"
	ServiceViettelTopUp   ServiceType = "nap_tien_viettel"
	ServiceTVInternet     ServiceType = "thanh_toan_tv_internet"
	ServicePostpaidLookup ServiceType = "tra_cuu_no_tra_sau"
)

var labels = map[ServiceType]string{
	ServiceFTTHLookup:     "Tra cứu FTTH",
	ServiceEVNPayment:     "Thanh toán điện EVN",
	ServiceMultiTopUp:     "Nạp tiền đa mạng",
	ServiceViettelTopUp:   "Nạp tiền Viettel",
	ServiceTVInternet:     "Thanh toán TV-Internet",
	ServicePostpaidLookup: "Tra cứu nợ trả sau",
}

// ServiceTypes lists every automated service in a stable order.
func ServiceTypes() []ServiceType {
	return []ServiceType{
		ServiceFTTHLookup,
		ServiceEVNPayment,
		ServiceMultiTopUp,
		ServiceViettelTopUp,
		ServiceTVInternet,
		ServicePostpaidLookup,
	}
}

// Label is the human readable name used for export folders.
func (s ServiceType) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

func (s ServiceType) Valid() bool {
	_, ok := labels[s]
	return ok
}

func ParseServiceType(raw string) (ServiceType, error) {
	s := ServiceType(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown service type %q", raw)
	}
	return s, nil
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionProcessing TransactionStatus = "processing"
	TransactionSuccess    TransactionStatus = "success"
	TransactionFailed     TransactionStatus = "failed"
)

// UpdateStatus is the status reported back for a processed code.
type UpdateStatus string

const (
	UpdateSuccess UpdateStatus = "success"
	UpdateFailed  UpdateStatus = "failed"
)

// OrderStatus maps an update status onto the orders.status column.
func (s UpdateStatus) OrderStatus() Status {
	if s == UpdateSuccess {
		return StatusCompleted
	}
	return StatusFailed
}

// TransactionStatus maps an update status onto service_transactions.status.
func (s UpdateStatus) TransactionStatus() TransactionStatus {
	if s == UpdateSuccess {
		return TransactionSuccess
	}
	return TransactionFailed
}

// Update is the result of one processed code written back to the order store.
type Update struct {
	Details any
	Amount  *int64
	OrderID string
	Code    string
	Notes   string
	Service ServiceType
	Status  UpdateStatus
}

// PendingCode is a code still waiting for processing.
type PendingCode struct {
	CreatedAt time.Time `json:"created_at"`
	Code      string    `json:"code"`
	OrderID   string    `json:"order_id"`
}

// Line renders the pending code as a batch input line. Top-up codes
// stored as phone|amount keep a trailing separator so the amount is not
// read as an order id.
func (p PendingCode) Line() string {
	if p.OrderID == "" {
		if strings.Contains(p.Code, "|") {
			return p.Code + "|"
		}
		return p.Code
	}
	return p.Code + "|" + p.OrderID
}
