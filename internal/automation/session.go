// Package automation drives the payment portal through a browser session.
package automation

import (
	"context"
	"strings"
	"time"
)

const (
	ErrorBannerSelector = "li[role='alert'] span.ui-messages-error-summary"
	InfoBannerSelector  = "li[role='alert'] span.ui-messages-info-summary"

	loginUserInput     = "loginForm:userName"
	loginPasswordInput = "loginForm:password"
)

// Session is the narrow set of browser operations the service flows use.
// Selectors are CSS selectors; use ByID for JSF element ids.
type Session interface {
	Goto(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string) error
	Press(ctx context.Context, selector, key string) error
	Click(ctx context.Context, selector string) error
	Text(ctx context.Context, selector string) (string, error)
	InputValue(ctx context.Context, selector string) (string, error)
	OuterHTML(ctx context.Context, selector string) (string, error)
	Content(ctx context.Context) (string, error)
	// FirstText returns the first non-empty text among the matches of
	// selector, or "" when nothing matches.
	FirstText(ctx context.Context, selector string) string
	// Evaluate runs script with the matched element as its argument.
	Evaluate(ctx context.Context, selector, script string) error
	Close() error
}

// ByID builds a selector for an element id. JSF ids contain colons, so the
// attribute form is used instead of #id.
func ByID(id string) string {
	return `[id="` + strings.ReplaceAll(id, `"`, `\"`) + `"]`
}

func ErrorBanner(ctx context.Context, s Session) string {
	return s.FirstText(ctx, ErrorBannerSelector)
}

func InfoBanner(ctx context.Context, s Session) string {
	return s.FirstText(ctx, InfoBannerSelector)
}

// Pause sleeps unless ctx is done first.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err() //nolint: wrapcheck // plain context error
	case <-timer.C:
		return nil
	}
}

// FillLogin types the portal credentials into the login form if it is shown.
// The operator submits the form, as captcha may be required.
func FillLogin(ctx context.Context, s Session, username, password string) error {
	if username == "" {
		return nil
	}
	const loginWait = 5 * time.Second
	if err := s.WaitPresent(ctx, ByID(loginUserInput), loginWait); err != nil {
		return nil
	}
	if err := s.Fill(ctx, ByID(loginUserInput), username); err != nil {
		return err
	}
	return s.Fill(ctx, ByID(loginPasswordInput), password)
}
