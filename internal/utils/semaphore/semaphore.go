package semaphore

import (
	"time"

	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
)

type Semaphore struct {
	semaCh chan struct{}
}

func New(maxHolders uint64) *Semaphore {
	return &Semaphore{
		semaCh: make(chan struct{}, maxHolders),
	}
}

func (s *Semaphore) AcquireWithTimeout(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		return serviceerrs.ErrSemaphoreTimeoutExceeded
	case s.semaCh <- struct{}{}:
		return nil
	}
}

// TryAcquire takes the semaphore only if it is free right now.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.semaCh <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Semaphore) Release() {
	<-s.semaCh
}

// Busy reports whether every slot is taken.
func (s *Semaphore) Busy() bool {
	return len(s.semaCh) == cap(s.semaCh)
}
