package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/talx-hub/gopher-billpay/internal/model"
)

type BrowserOptions struct {
	ProfileDir string
	PortalURL  string
	Username   string
	Password   string
	Headless   bool
}

// Browser is a Session backed by a persistent Chromium profile, so the
// portal login survives restarts.
type Browser struct {
	pw      *playwright.Playwright
	context playwright.BrowserContext
	page    playwright.Page
	log     *slog.Logger
}

func Launch(ctx context.Context, opts BrowserOptions, log *slog.Logger) (*Browser, error) {
	if err := os.MkdirAll(opts.ProfileDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(opts.ProfileDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(opts.Headless),
			Args: []string{
				"--disable-notifications",
				"--disable-popup-blocking",
				"--no-sandbox",
				"--disable-dev-shm-usage",
			},
		})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		_ = bctx.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.OnDialog(func(dialog playwright.Dialog) {
		if err := dialog.Accept(); err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "failed to accept dialog",
				slog.Any(model.KeyLoggerError, err))
		}
	})

	b := &Browser{pw: pw, context: bctx, page: page, log: log}
	if err = b.Goto(ctx, opts.PortalURL); err != nil {
		return b, err
	}
	if err = FillLogin(ctx, b, opts.Username, opts.Password); err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "failed to fill login form",
			slog.Any(model.KeyLoggerError, err))
	}
	return b, nil
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (b *Browser) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err //nolint: wrapcheck // plain context error
	}
	if _, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(model.DefaultNavigationTimeout),
	}); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

func (b *Browser) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err //nolint: wrapcheck // plain context error
	}
	if _, err := b.page.Reload(playwright.PageReloadOptions{
		Timeout: ms(model.DefaultNavigationTimeout),
	}); err != nil {
		return fmt.Errorf("failed to reload page: %w", err)
	}
	return nil
}

func (b *Browser) waitFor(ctx context.Context,
	selector string, state *playwright.WaitForSelectorState, timeout time.Duration,
) error {
	if err := ctx.Err(); err != nil {
		return err //nolint: wrapcheck // plain context error
	}
	err := b.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   state,
		Timeout: ms(timeout),
	})
	if err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (b *Browser) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	return b.waitFor(ctx, selector, playwright.WaitForSelectorStateAttached, timeout)
}

func (b *Browser) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	return b.waitFor(ctx, selector, playwright.WaitForSelectorStateHidden, timeout)
}

func (b *Browser) Fill(ctx context.Context, selector, value string) error {
	if err := b.WaitPresent(ctx, selector, model.DefaultTimeout); err != nil {
		return err
	}
	if err := b.page.Locator(selector).First().Fill(value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func (b *Browser) Press(ctx context.Context, selector, key string) error {
	if err := ctx.Err(); err != nil {
		return err //nolint: wrapcheck // plain context error
	}
	if err := b.page.Locator(selector).First().Press(key); err != nil {
		return fmt.Errorf("press %s on %s: %w", key, selector, err)
	}
	return nil
}

func (b *Browser) Click(ctx context.Context, selector string) error {
	if err := b.WaitPresent(ctx, selector, model.DefaultTimeout); err != nil {
		return err
	}
	if err := b.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: ms(model.DefaultTimeout),
	}); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (b *Browser) Text(ctx context.Context, selector string) (string, error) {
	if err := b.WaitPresent(ctx, selector, model.DefaultTimeout); err != nil {
		return "", err
	}
	text, err := b.page.Locator(selector).First().InnerText()
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

func (b *Browser) InputValue(ctx context.Context, selector string) (string, error) {
	if err := b.WaitPresent(ctx, selector, model.DefaultTimeout); err != nil {
		return "", err
	}
	v, err := b.page.Locator(selector).First().InputValue()
	if err != nil {
		return "", fmt.Errorf("read value of %s: %w", selector, err)
	}
	return strings.TrimSpace(v), nil
}

func (b *Browser) OuterHTML(ctx context.Context, selector string) (string, error) {
	if err := b.WaitPresent(ctx, selector, model.DefaultTimeout); err != nil {
		return "", err
	}
	v, err := b.page.Locator(selector).First().Evaluate("el => el.outerHTML", nil)
	if err != nil {
		return "", fmt.Errorf("read HTML of %s: %w", selector, err)
	}
	html, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected outerHTML type %T", v)
	}
	return html, nil
}

func (b *Browser) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err //nolint: wrapcheck // plain context error
	}
	html, err := b.page.Content()
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

func (b *Browser) FirstText(ctx context.Context, selector string) string {
	if ctx.Err() != nil {
		return ""
	}
	texts, err := b.page.Locator(selector).AllInnerTexts()
	if err != nil {
		b.log.LogAttrs(ctx, slog.LevelDebug, "failed to read texts",
			slog.String("selector", selector),
			slog.Any(model.KeyLoggerError, err))
		return ""
	}
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return ""
}

func (b *Browser) Evaluate(ctx context.Context, selector, script string) error {
	if err := b.WaitPresent(ctx, selector, model.DefaultTimeout); err != nil {
		return err
	}
	if _, err := b.page.Locator(selector).First().Evaluate(script, nil); err != nil {
		return fmt.Errorf("evaluate on %s: %w", selector, err)
	}
	return nil
}

func (b *Browser) Close() error {
	var errs []error
	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}
