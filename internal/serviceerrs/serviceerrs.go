package serviceerrs

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOrderNotFound            = errors.New("order not found")
	ErrSessionBusy              = errors.New("browser session is busy")
	ErrBatchNotFound            = errors.New("batch not found")
	ErrUnknownService           = errors.New("unknown service type")
	ErrEmptyExport              = errors.New("nothing to export")
	ErrTokenExpired             = errors.New("token expired")
	ErrSemaphoreTimeoutExceeded = errors.New("semaphore acquire timeout exceeded")
	ErrAmountNotFound           = errors.New("amount not found")
)

type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e *TooManyRequestsError) Error() string {
	return "too many requests"
}

// CallbackStatusError is returned when the order service answers with an
// unexpected status code.
type CallbackStatusError struct {
	Body       string
	StatusCode int
}

func (e *CallbackStatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d\nBody: %s", e.StatusCode, e.Body)
}

// StepError names the portal step that failed.
type StepError struct {
	Err  error
	Step string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func Step(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}
