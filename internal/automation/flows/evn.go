package flows

import (
	"context"

	"github.com/talx-hub/gopher-billpay/internal/automation"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
)

const (
	evnPath          = "/pages/collectElectricBill.jsf?serviceCode=EVN"
	evnReady         = "collectElectricBillForm:j_idt29"
	evnBillInput     = "payMoneyForm:billCodeId"
	evnCheckButton   = "payMoneyForm:btnPay"
	evnAmount        = "payMoneyForm:j_idt49"
	evnConfirmButton = "payMoneyForm:yesIdEVN"
)

// EVNPayment pays an electricity bill by its bill code.
type EVNPayment struct {
	flowBase
}

func (f *EVNPayment) Service() order.ServiceType {
	return order.ServiceEVNPayment
}

func (f *EVNPayment) Prepare(ctx context.Context, s automation.Session) error {
	if err := s.Goto(ctx, f.url(evnPath)); err != nil {
		return step("open EVN page", err)
	}
	if err := s.WaitPresent(ctx, automation.ByID(evnReady), model.DefaultTimeout); err != nil {
		return step("open EVN page", err)
	}
	return f.pause(ctx, 2)
}

func (f *EVNPayment) Attempt(ctx context.Context, s automation.Session, item model.Item,
) (outcome.Outcome, error) {
	if err := s.Fill(ctx, automation.ByID(evnBillInput), item.Code); err != nil {
		return outcome.Outcome{}, step("fill bill code", err)
	}
	if err := f.pause(ctx, 0.5); err != nil {
		return outcome.Outcome{}, err
	}
	if err := s.Click(ctx, automation.ByID(evnCheckButton)); err != nil {
		return outcome.Outcome{}, step("submit bill code", err)
	}
	if err := f.pause(ctx, 1); err != nil {
		return outcome.Outcome{}, err
	}
	if err := s.WaitHidden(ctx, automation.ByID(ftthOverlay), model.DefaultOverlayTimeout); err != nil {
		return outcome.Outcome{}, step("wait for bill", err)
	}
	if res, done := f.errorBanner(ctx, s); done {
		return res, nil
	}

	text, err := s.Text(ctx, automation.ByID(evnAmount))
	if err != nil {
		return outcome.Outcome{}, step("read amount", err)
	}
	// Unparsable amount text is kept as is.
	amount := model.ParseAmount(text)

	if err = f.pause(ctx, 0.5); err != nil {
		return outcome.Outcome{}, err
	}
	if err = s.Click(ctx, automation.ByID(evnConfirmButton)); err != nil {
		return outcome.Outcome{}, step("confirm payment", err)
	}
	return outcome.Success(amount, "EVN payment ok", nil), nil
}
