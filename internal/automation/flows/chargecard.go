package flows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talx-hub/gopher-billpay/internal/automation"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
	"github.com/talx-hub/gopher-billpay/internal/utils/logger"
)

const (
	chargePath          = "/pages/chargecard.jsf"
	chargePhoneInput    = "indexForm:phoneNumberId"
	chargeSupplierModal = "indexForm:dlgConfirmTT_modal"
	chargeSupplier      = "indexForm:supplier"
	chargeSupplierOK    = "indexForm:yesTTId"
	chargeCheckButton   = "indexForm:btnCheck"
	chargeDebt          = "indexForm:debtId_input"
	chargeAmountInput   = "indexForm:transAmountId_input"
	chargePINInput      = "indexForm:pinId"
	chargePayButton     = "indexForm:btnPay"
	chargeConfirmModal  = "indexForm:dlgConfirm_modal"
	chargeConfirmButton = "indexForm:yesIdCard"

	supplierPrepaid  = 0
	supplierPostpaid = 1
)

// denominations maps a prepaid amount to its radio index on the page.
var denominations = map[int64]int{
	10000:  0,
	20000:  1,
	30000:  2,
	50000:  3,
	100000: 4,
	200000: 5,
	300000: 6,
	500000: 7,
}

type chargeCard struct {
	flowBase
}

func (c chargeCard) Prepare(ctx context.Context, s automation.Session) error {
	return c.open(ctx, s)
}

func (c chargeCard) open(ctx context.Context, s automation.Session) error {
	if err := s.Goto(ctx, c.url(chargePath)); err != nil {
		return step("open top-up page", err)
	}
	if err := s.WaitPresent(ctx, automation.ByID(chargePhoneInput), model.DefaultTimeout); err != nil {
		return step("open top-up page", err)
	}
	return c.pause(ctx, 2)
}

func (c chargeCard) enterPhone(ctx context.Context, s automation.Session, phone string) error {
	sel := automation.ByID(chargePhoneInput)
	if err := s.Fill(ctx, sel, phone); err != nil {
		return step("fill phone", err)
	}
	if err := s.Press(ctx, sel, "Tab"); err != nil {
		return step("fill phone", err)
	}
	return c.pause(ctx, 1)
}

// switchSupplier picks the prepaid or postpaid tab. The portal only offers
// the switch for some numbers, so failures are logged and ignored.
func (c chargeCard) switchSupplier(ctx context.Context, s automation.Session, index int) {
	hideModal(ctx, s, chargeSupplierModal)

	steps := []string{
		chargeSupplier,
		fmt.Sprintf("%s_%d", chargeSupplier, index),
		chargeSupplierOK,
	}
	for _, id := range steps {
		if err := s.Click(ctx, automation.ByID(id)); err != nil {
			logger.FromContext(ctx).LogAttrs(ctx, slog.LevelDebug,
				"supplier switch skipped",
				slog.String("id", id),
				slog.Any(model.KeyLoggerError, err),
			)
			return
		}
		if err := c.pause(ctx, 0.5); err != nil {
			return
		}
	}
}

// checkDebt submits the postpaid debt query and classifies the banners.
func (c chargeCard) checkDebt(ctx context.Context, s automation.Session,
) (outcome.Outcome, bool, error) {
	if err := s.Click(ctx, automation.ByID(chargeCheckButton)); err != nil {
		return outcome.Outcome{}, false, step("check debt", err)
	}
	if err := c.pause(ctx, 1); err != nil {
		return outcome.Outcome{}, false, err
	}
	res, done := c.banners(ctx, s)
	return res, done, nil
}

func (c chargeCard) readDebt(ctx context.Context, s automation.Session) (model.Amount, error) {
	raw, err := s.InputValue(ctx, automation.ByID(chargeDebt))
	if err != nil {
		return model.Amount{}, step("read debt", err)
	}
	debt := model.ParseAmount(raw)
	if _, ok := debt.Int64(); !ok {
		return model.Amount{}, step("read debt", fmt.Errorf("unexpected debt value %q", raw))
	}
	return debt, nil
}

// pay enters the PIN and confirms the payment, then checks the result banner.
func (c chargeCard) pay(ctx context.Context, s automation.Session) (outcome.Outcome, bool, error) {
	if err := s.Fill(ctx, automation.ByID(chargePINInput), c.opts.PIN); err != nil {
		return outcome.Outcome{}, false, step("fill PIN", err)
	}
	if err := s.Click(ctx, automation.ByID(chargePayButton)); err != nil {
		return outcome.Outcome{}, false, step("pay", err)
	}
	hideModal(ctx, s, chargeConfirmModal)
	if err := c.pause(ctx, 0.5); err != nil {
		return outcome.Outcome{}, false, err
	}
	if err := s.Click(ctx, automation.ByID(chargeConfirmButton)); err != nil {
		return outcome.Outcome{}, false, step("confirm payment", err)
	}
	if err := c.pause(ctx, 2); err != nil {
		return outcome.Outcome{}, false, err
	}
	res, failed := c.errorBanner(ctx, s)
	return res, failed, nil
}

func (c chargeCard) amountOf(item model.Item) model.Amount {
	if item.Amount != "" {
		return model.ParseAmount(item.Amount)
	}
	return model.ParseAmount(c.opts.Amount)
}

// MultiNetworkTopUp tops up a prepaid number (phone|amount lines) or pays
// the debt of a postpaid number (phone only).
type MultiNetworkTopUp struct {
	chargeCard
}

func (f *MultiNetworkTopUp) Service() order.ServiceType {
	return order.ServiceMultiTopUp
}

func (f *MultiNetworkTopUp) Attempt(ctx context.Context, s automation.Session, item model.Item,
) (outcome.Outcome, error) {
	if res, missing := f.requirePIN(); missing {
		return res, nil
	}
	if err := f.open(ctx, s); err != nil {
		return outcome.Outcome{}, err
	}
	if err := f.enterPhone(ctx, s, item.Code); err != nil {
		return outcome.Outcome{}, err
	}

	if item.Amount != "" {
		return f.prepaid(ctx, s, item)
	}
	return f.postpaid(ctx, s, item)
}

func (f *MultiNetworkTopUp) prepaid(ctx context.Context, s automation.Session, item model.Item,
) (outcome.Outcome, error) {
	amount := model.ParseAmount(item.Amount)
	value, _ := amount.Int64()
	index, ok := denominations[value]
	if !ok {
		return outcome.Failure(fmt.Sprintf("Mệnh giá không hỗ trợ: %s", item.Amount)), nil
	}

	f.switchSupplier(ctx, s, supplierPrepaid)
	const pickDenomination = `el => {
		const box = el.closest('div');
		if (!box.classList.contains('ui-state-active')) { box.click(); }
	}`
	sel := fmt.Sprintf(`input[id="indexForm:subAmountId:%d"]`, index)
	if err := s.Evaluate(ctx, sel, pickDenomination); err != nil {
		return outcome.Outcome{}, step("pick denomination", err)
	}
	if err := f.pause(ctx, 1); err != nil {
		return outcome.Outcome{}, err
	}

	res, failed, err := f.pay(ctx, s)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if failed {
		return res, nil
	}
	return outcome.Success(amount, fmt.Sprintf("Nạp trả trước %s", amount), nil), nil
}

func (f *MultiNetworkTopUp) postpaid(ctx context.Context, s automation.Session, item model.Item,
) (outcome.Outcome, error) {
	f.switchSupplier(ctx, s, supplierPostpaid)
	res, done, err := f.checkDebt(ctx, s)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if done {
		return res, nil
	}

	debt, err := f.readDebt(ctx, s)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if v, _ := debt.Int64(); v < model.MinPayableAmount {
		return outcome.Success(debt, fmt.Sprintf("Nợ cước dưới mức thanh toán: %s", debt), nil), nil
	}
	if err = s.Fill(ctx, automation.ByID(chargeAmountInput), debt.String()); err != nil {
		return outcome.Outcome{}, step("fill amount", err)
	}

	res, failed, err := f.pay(ctx, s)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if failed {
		return res, nil
	}
	return outcome.Success(debt, fmt.Sprintf("Gạch nợ trả sau %s - %s", item.Code, debt), nil), nil
}

// ViettelTopUp tops up a Viettel number with a free-form amount.
type ViettelTopUp struct {
	chargeCard
}

func (f *ViettelTopUp) Service() order.ServiceType {
	return order.ServiceViettelTopUp
}

func (f *ViettelTopUp) Attempt(ctx context.Context, s automation.Session, item model.Item,
) (outcome.Outcome, error) {
	if res, missing := f.requirePIN(); missing {
		return res, nil
	}
	amount := f.amountOf(item)
	if v, ok := amount.Int64(); !ok || v <= 0 {
		return outcome.Failure("Số tiền nạp không hợp lệ"), nil
	}

	if err := f.open(ctx, s); err != nil {
		return outcome.Outcome{}, err
	}
	if err := f.enterPhone(ctx, s, item.Code); err != nil {
		return outcome.Outcome{}, err
	}
	f.switchSupplier(ctx, s, supplierPrepaid)
	if err := s.Fill(ctx, automation.ByID(chargeAmountInput), amount.String()); err != nil {
		return outcome.Outcome{}, step("fill amount", err)
	}

	res, failed, err := f.pay(ctx, s)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if failed {
		return res, nil
	}
	return outcome.Success(amount, fmt.Sprintf("Nạp Viettel %s - %s", item.Code, amount), nil), nil
}

// PostpaidLookup reads the outstanding debt of a postpaid number.
type PostpaidLookup struct {
	chargeCard
}

func (f *PostpaidLookup) Service() order.ServiceType {
	return order.ServicePostpaidLookup
}

func (f *PostpaidLookup) Attempt(ctx context.Context, s automation.Session, item model.Item,
) (outcome.Outcome, error) {
	if err := f.open(ctx, s); err != nil {
		return outcome.Outcome{}, err
	}
	if err := f.enterPhone(ctx, s, item.Code); err != nil {
		return outcome.Outcome{}, err
	}
	f.switchSupplier(ctx, s, supplierPostpaid)

	res, done, err := f.checkDebt(ctx, s)
	if err != nil {
		return outcome.Outcome{}, err
	}
	if done {
		return res, nil
	}

	debt, err := f.readDebt(ctx, s)
	if err != nil {
		return outcome.Outcome{}, err
	}
	return outcome.Success(debt, fmt.Sprintf("Nợ cước: %s", debt), nil), nil
}
