// Package flows holds the portal step sequences of every automated service.
package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talx-hub/gopher-billpay/internal/automation"
	"github.com/talx-hub/gopher-billpay/internal/classifier"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
	"github.com/talx-hub/gopher-billpay/internal/utils/logger"
)

const DefaultPortalURL = "https://kpp.bankplus.vn"

// Options are the side inputs shared by every code of a batch.
type Options struct {
	PortalURL string
	PIN       string
	// Amount is the top-up amount used when a line carries none.
	Amount   string
	Keywords classifier.Keywords
	// Pause is the settle time after submits; zero disables pauses.
	Pause time.Duration
}

// Flow is the step sequence of one service.
//
// Attempt returns an outcome for definitive results and an error for
// transient failures worth retrying.
type Flow interface {
	Service() order.ServiceType
	Prepare(ctx context.Context, s automation.Session) error
	Attempt(ctx context.Context, s automation.Session, item model.Item) (outcome.Outcome, error)
}

func New(service order.ServiceType, opts Options) (Flow, error) {
	if opts.PortalURL == "" {
		opts.PortalURL = DefaultPortalURL
	}
	opts.PortalURL = strings.TrimRight(opts.PortalURL, "/")
	if opts.Keywords.Negative == nil && opts.Keywords.NoDebt == nil {
		opts.Keywords = classifier.DefaultKeywords()
	}

	base := flowBase{opts: opts}
	switch service {
	case order.ServiceFTTHLookup:
		return &FTTHLookup{base}, nil
	case order.ServiceEVNPayment:
		return &EVNPayment{base}, nil
	case order.ServiceTVInternet:
		return &TVInternetPayment{base}, nil
	case order.ServiceMultiTopUp:
		return &MultiNetworkTopUp{chargeCard{base}}, nil
	case order.ServiceViettelTopUp:
		return &ViettelTopUp{chargeCard{base}}, nil
	case order.ServicePostpaidLookup:
		return &PostpaidLookup{chargeCard{base}}, nil
	}
	return nil, fmt.Errorf("%s: %w", service, serviceerrs.ErrUnknownService)
}

type flowBase struct {
	opts Options
}

func (b flowBase) url(path string) string {
	return b.opts.PortalURL + path
}

func (b flowBase) pause(ctx context.Context, factor float64) error {
	return automation.Pause(ctx, time.Duration(float64(b.opts.Pause)*factor))
}

// banners classifies the visible banners. It reports false when the page
// shows no definitive result and the flow should go on.
func (b flowBase) banners(ctx context.Context, s automation.Session) (outcome.Outcome, bool) {
	res := classifier.Classify(classifier.Page{
		ErrorBanner: automation.ErrorBanner(ctx, s),
		InfoBanner:  automation.InfoBanner(ctx, s),
	}, b.opts.Keywords)
	if res.Kind == outcome.KindSuccess {
		return outcome.Outcome{}, false
	}
	return res, true
}

// errorBanner reports a negative error banner only, ignoring info banners.
func (b flowBase) errorBanner(ctx context.Context, s automation.Session) (outcome.Outcome, bool) {
	banner := classifier.NormalizeBanner(automation.ErrorBanner(ctx, s))
	if classifier.IsNegative(banner, b.opts.Keywords) {
		return outcome.Failure(banner), true
	}
	return outcome.Outcome{}, false
}

func (b flowBase) requirePIN() (outcome.Outcome, bool) {
	if b.opts.PIN == "" {
		return outcome.Failure("PIN is not configured"), true
	}
	return outcome.Outcome{}, false
}

// hideModal pushes a confirmation overlay behind the page so the buttons
// under it become clickable. A missing overlay is not an error.
func hideModal(ctx context.Context, s automation.Session, id string) {
	sel := automation.ByID(id)
	if err := s.WaitPresent(ctx, sel, model.DefaultPresenceTimeout); err != nil {
		return
	}
	if err := s.Evaluate(ctx, sel, "el => { el.style.zIndex = '-99'; }"); err != nil {
		logger.FromContext(ctx).LogAttrs(ctx, slog.LevelDebug,
			"failed to hide modal",
			slog.String("id", id),
			slog.Any(model.KeyLoggerError, err),
		)
	}
}

func step(name string, err error) error {
	if err == nil {
		return nil
	}
	var se *serviceerrs.StepError
	if errors.As(err, &se) {
		return err
	}
	return serviceerrs.Step(name, err)
}
