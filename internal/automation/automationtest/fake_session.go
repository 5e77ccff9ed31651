// Package automationtest provides an in-memory Session for flow tests.
package automationtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/talx-hub/gopher-billpay/internal/automation"
)

var _ automation.Session = (*FakeSession)(nil)

var ErrNoElement = errors.New("element not found")

// FakeSession is a scripted page. Selectors absent from Elements are treated
// as missing; Hooks run after a click on the given selector and may mutate
// the page.
type FakeSession struct {
	Elements map[string]bool
	Texts    map[string]string
	Values   map[string]string
	HTML     map[string]string
	Visible  map[string]bool
	Hooks    map[string]func(*FakeSession)
	Page     string
	actions  []string
	mu       sync.Mutex
	closed   bool
}

func NewFakeSession() *FakeSession {
	return &FakeSession{
		Elements: make(map[string]bool),
		Texts:    make(map[string]string),
		Values:   make(map[string]string),
		HTML:     make(map[string]string),
		Visible:  make(map[string]bool),
		Hooks:    make(map[string]func(*FakeSession)),
	}
}

// With marks the selectors as present on the page.
func (f *FakeSession) With(selectors ...string) *FakeSession {
	for _, s := range selectors {
		f.Elements[s] = true
	}
	return f
}

// Actions returns the recorded actions in order.
func (f *FakeSession) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

func (f *FakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeSession) record(format string, args ...any) {
	f.actions = append(f.actions, fmt.Sprintf(format, args...))
}

func (f *FakeSession) present(selector string) error {
	if !f.Elements[selector] {
		return fmt.Errorf("%s: %w", selector, ErrNoElement)
	}
	return nil
}

func (f *FakeSession) Goto(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("goto %s", url)
	return nil
}

func (f *FakeSession) Reload(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reload")
	return nil
}

func (f *FakeSession) WaitPresent(_ context.Context, selector string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.present(selector)
}

func (f *FakeSession) WaitHidden(_ context.Context, selector string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Visible[selector] {
		return fmt.Errorf("%s still visible: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (f *FakeSession) Fill(_ context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.present(selector); err != nil {
		return err
	}
	f.Values[selector] = value
	f.record("fill %s=%s", selector, value)
	return nil
}

func (f *FakeSession) Press(_ context.Context, selector, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.present(selector); err != nil {
		return err
	}
	f.record("press %s %s", selector, key)
	return nil
}

func (f *FakeSession) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	if err := f.present(selector); err != nil {
		f.mu.Unlock()
		return err
	}
	f.record("click %s", selector)
	hook := f.Hooks[selector]
	f.mu.Unlock()

	if hook != nil {
		hook(f)
	}
	return nil
}

func (f *FakeSession) Text(_ context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.present(selector); err != nil {
		return "", err
	}
	return f.Texts[selector], nil
}

func (f *FakeSession) InputValue(_ context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.present(selector); err != nil {
		return "", err
	}
	return f.Values[selector], nil
}

func (f *FakeSession) OuterHTML(_ context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.present(selector); err != nil {
		return "", err
	}
	return f.HTML[selector], nil
}

func (f *FakeSession) Content(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Page, nil
}

func (f *FakeSession) FirstText(_ context.Context, selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Texts[selector]
}

func (f *FakeSession) Evaluate(_ context.Context, selector, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.present(selector); err != nil {
		return err
	}
	f.record("evaluate %s", selector)
	return nil
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
