package model

import "time"

const DefaultTimeout = 10 * time.Second
const DefaultOverlayTimeout = 16 * time.Second
const DefaultPresenceTimeout = 3 * time.Second
const DefaultNavigationTimeout = 30 * time.Second
const DefaultReloadPause = 2 * time.Second
const DefaultAttemptCount = 3
const DefaultRetryBackoff = time.Second
const DefaultSessionAcquireTimeout = 5 * time.Second
const DefaultPendingLimit = 10
const DefaultCallbackTimeout = 10 * time.Second
const DefaultCallbackAttemptCount = 3
const DefaultCallbackBackoff = 2 * time.Second
const DefaultBatchHistory = 50

// DefaultDBAttemptCount is how many times a retriable database call runs.
// The pause before retry n (counting from 1) is (2n-1) * DefaultDBRetryBase.
const DefaultDBAttemptCount = 3
const DefaultDBRetryBase = time.Second

// MinPayableAmount is the smallest bill the portal accepts for payment, in VND.
const MinPayableAmount = 5000

const HeaderContentType = "Content-Type"
const HeaderAuthorization = "Authorization"

const (
	StatusComplete   = "Đã xử lý"
	StatusIncomplete = "Chưa xử lý"
)

type ContextKey string

const (
	KeyContextLogger ContextKey = "logger"
	KeyContextUserID ContextKey = "user_id"
)

const KeyLoggerError = "error"
