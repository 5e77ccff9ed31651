package flows

import (
	"context"

	"github.com/talx-hub/gopher-billpay/internal/automation"
	"github.com/talx-hub/gopher-billpay/internal/classifier"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
)

const (
	ftthPath        = "/pages/newInternetTelevisionViettel.jsf?serviceCode=000003&serviceType=INTERNET"
	ftthConsole     = "payMoneyForm:console:3"
	ftthCodeInput   = "payMoneyForm:contractCode"
	ftthCheckButton = "payMoneyForm:btnPay0"
	ftthOverlay     = "payMoneyForm:j_idt6_modal"
	ftthResult      = "payMoneyForm:j_idt41"

	codeNotFound = "Không tìm thấy mã thuê bao"
)

// openFTTH loads the internet/TV page and picks the subscriber-number search.
func (b flowBase) openFTTH(ctx context.Context, s automation.Session) error {
	if err := s.Goto(ctx, b.url(ftthPath)); err != nil {
		return step("open FTTH page", err)
	}
	if err := s.WaitPresent(ctx, automation.ByID(ftthCodeInput), model.DefaultTimeout); err != nil {
		return step("open FTTH page", err)
	}

	const selectRadio = `el => {
		const box = el.closest('.ui-radiobutton') && el.closest('.ui-radiobutton').querySelector('.ui-radiobutton-box');
		(box || el).click();
	}`
	if err := s.Evaluate(ctx, automation.ByID(ftthConsole), selectRadio); err != nil {
		return step("select subscriber search",
			s.Click(ctx, `label[for="`+ftthConsole+`"]`))
	}
	return nil
}

// checkCode submits a code on the FTTH page and waits for the result.
func (b flowBase) checkCode(ctx context.Context, s automation.Session, code string) error {
	if err := s.Fill(ctx, automation.ByID(ftthCodeInput), code); err != nil {
		return step("fill code", err)
	}
	if err := s.Click(ctx, automation.ByID(ftthCheckButton)); err != nil {
		return step("submit code", err)
	}
	if err := b.pause(ctx, 1); err != nil {
		return err
	}
	return step("wait for result",
		s.WaitHidden(ctx, automation.ByID(ftthOverlay), model.DefaultOverlayTimeout))
}

// FTTHLookup reads the debt and contract details of an FTTH subscriber.
type FTTHLookup struct {
	flowBase
}

func (f *FTTHLookup) Service() order.ServiceType {
	return order.ServiceFTTHLookup
}

func (f *FTTHLookup) Prepare(ctx context.Context, s automation.Session) error {
	return f.openFTTH(ctx, s)
}

func (f *FTTHLookup) Attempt(ctx context.Context, s automation.Session, item model.Item,
) (outcome.Outcome, error) {
	if err := f.checkCode(ctx, s, item.Code); err != nil {
		return outcome.Outcome{}, err
	}
	if res, done := f.banners(ctx, s); done {
		return res, nil
	}

	html, err := s.OuterHTML(ctx, automation.ByID(ftthResult))
	if err != nil {
		return outcome.Outcome{}, step("read result", err)
	}
	amount := model.RawAmount(codeNotFound)
	if ca, err := classifier.AmountByCode(html, item.Code); err == nil {
		amount = ca.Amount
	}

	page, err := s.Content(ctx)
	if err != nil {
		return outcome.Outcome{}, step("read page", err)
	}
	details, err := classifier.ExtractFTTHDetails(page)
	if err != nil {
		return outcome.Outcome{}, step("read details", err)
	}
	if details.IsEmpty() {
		return outcome.Success(amount, details.Notes(), nil), nil
	}
	return outcome.Success(amount, details.Notes(), details), nil
}
