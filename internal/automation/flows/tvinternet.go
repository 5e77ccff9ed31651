package flows

import (
	"context"
	"fmt"

	"github.com/talx-hub/gopher-billpay/internal/automation"
	"github.com/talx-hub/gopher-billpay/internal/classifier"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
)

const (
	tvPINInput      = "payMoneyForm:pinId"
	tvPayButton     = "payMoneyForm:btnPay"
	tvConfirmModal  = "payMoneyForm:dlgConfirm_modal"
	tvConfirmButton = "payMoneyForm:yesId0"
)

// TVInternetPayment pays the TV/internet bill of a subscriber.
type TVInternetPayment struct {
	flowBase
}

func (f *TVInternetPayment) Service() order.ServiceType {
	return order.ServiceTVInternet
}

func (f *TVInternetPayment) Prepare(ctx context.Context, s automation.Session) error {
	return f.openFTTH(ctx, s)
}

func (f *TVInternetPayment) Attempt(ctx context.Context, s automation.Session, item model.Item,
) (outcome.Outcome, error) {
	if res, missing := f.requirePIN(); missing {
		return res, nil
	}
	// A previous payment leaves the page on its receipt.
	if err := f.openFTTH(ctx, s); err != nil {
		return outcome.Outcome{}, err
	}
	if err := f.checkCode(ctx, s, item.Code); err != nil {
		return outcome.Outcome{}, err
	}
	if res, done := f.errorBanner(ctx, s); done {
		return res, nil
	}

	html, err := s.OuterHTML(ctx, automation.ByID(ftthResult))
	if err != nil {
		return outcome.Outcome{}, step("read result", err)
	}
	ca, err := classifier.AmountByCode(html, item.Code)
	if err != nil {
		return outcome.Failure(codeNotFound), nil
	}
	if !ca.Payable() {
		return outcome.Failure(fmt.Sprintf("Amount: %s", ca.Amount)), nil
	}

	if err = s.Click(ctx, automation.ByID(ca.PayButtonID)); err != nil {
		return outcome.Outcome{}, step("open payment", err)
	}
	if err = s.Fill(ctx, automation.ByID(tvPINInput), f.opts.PIN); err != nil {
		return outcome.Outcome{}, step("fill PIN", err)
	}
	if err = s.Click(ctx, automation.ByID(tvPayButton)); err != nil {
		return outcome.Outcome{}, step("pay", err)
	}
	hideModal(ctx, s, tvConfirmModal)
	if err = s.Click(ctx, automation.ByID(tvConfirmButton)); err != nil {
		return outcome.Outcome{}, step("confirm payment", err)
	}
	if err = f.pause(ctx, 2); err != nil {
		return outcome.Outcome{}, err
	}
	if res, done := f.errorBanner(ctx, s); done {
		return res, nil
	}
	return outcome.Success(ca.Amount,
		fmt.Sprintf("TV-Internet payment ok - %s | Amount: %s", item.Code, ca.Amount), nil), nil
}
