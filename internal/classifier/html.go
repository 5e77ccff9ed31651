package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
)

var payButtonID = regexp.MustCompile(`^payMoneyForm:btnView\d*$`)

// CodeAmount is the amount shown for one subscriber group of a lookup result.
type CodeAmount struct {
	PayButtonID string
	Amount      model.Amount
}

// Payable reports whether the portal accepts a payment of this amount.
func (c CodeAmount) Payable() bool {
	v, ok := c.Amount.Int64()
	return ok && v >= model.MinPayableAmount
}

// AmountByCode finds the pay-content group mentioning code and reads the
// amount line of that group.
func AmountByCode(html, code string) (CodeAmount, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return CodeAmount{}, fmt.Errorf("failed to parse result HTML: %w", err)
	}

	var (
		res   CodeAmount
		found bool
	)
	doc.Find("div.row.pay-content.mb-3").EachWithBreak(func(_ int, group *goquery.Selection) bool {
		paragraphs := group.Find("p")
		mentions := false
		paragraphs.EachWithBreak(func(_ int, p *goquery.Selection) bool {
			mentions = strings.Contains(p.Text(), code)
			return !mentions
		})
		if !mentions {
			return true
		}

		group.Find("button").EachWithBreak(func(_ int, b *goquery.Selection) bool {
			id, _ := b.Attr("id")
			if payButtonID.MatchString(id) {
				res.PayButtonID = id
				return false
			}
			return true
		})
		paragraphs.EachWithBreak(func(_ int, p *goquery.Selection) bool {
			text := p.Text()
			idx := strings.Index(text, "VND")
			if idx < 0 {
				return true
			}
			res.Amount = model.ParseAmount(text[:idx])
			found = true
			return false
		})
		return !found
	})

	if !found {
		return res, fmt.Errorf("code %s: %w", code, serviceerrs.ErrAmountNotFound)
	}
	return res, nil
}

// FTTHDetails is the contract information shown by an FTTH lookup.
type FTTHDetails struct {
	DebtAmount               *int64 `json:"debt_amount,omitempty"`
	ContractCode             string `json:"contract_code,omitempty"`
	ContractOwner            string `json:"contract_owner,omitempty"`
	RepresentativeSubscriber string `json:"representative_subscriber,omitempty"`
	Service                  string `json:"service,omitempty"`
	ContactPhone             string `json:"contact_phone,omitempty"`
}

// Notes renders the details in the one-line form stored with the order.
func (d FTTHDetails) Notes() string {
	debt := ""
	if d.DebtAmount != nil {
		debt = fmt.Sprintf("%d", *d.DebtAmount)
	}
	return fmt.Sprintf("HD:%s | Chu:%s | SDT:%s | No:%s",
		d.ContractCode, d.ContractOwner, d.ContactPhone, debt)
}

func (d FTTHDetails) IsEmpty() bool {
	return d == FTTHDetails{}
}

var digitGroup = regexp.MustCompile(`[\d.,]+`)

// ExtractFTTHDetails reads the label/value rows of an FTTH lookup result.
func ExtractFTTHDetails(html string) (FTTHDetails, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return FTTHDetails{}, fmt.Errorf("failed to parse result HTML: %w", err)
	}

	var d FTTHDetails
	doc.Find("div.row").Each(func(_ int, row *goquery.Selection) {
		cols := row.ChildrenFiltered("div.col-6")
		if cols.Length() != 2 {
			return
		}
		label := cols.Eq(0).Find("label").First()
		value := cols.Eq(1).Find("p").First()
		if label.Length() == 0 || value.Length() == 0 {
			return
		}

		text := strings.TrimSpace(value.Text())
		switch strings.TrimSpace(label.Text()) {
		case "Mã hợp đồng:":
			d.ContractCode = text
		case "Chủ hợp đồng:":
			d.ContractOwner = text
		case "Số thuê bao đại diện:":
			d.RepresentativeSubscriber = text
		case "Dịch vụ:":
			d.Service = text
		case "Số điện thoại liên hệ:":
			d.ContactPhone = text
		case "Nợ cước:":
			d.DebtAmount = parseDebt(text)
		}
	})
	return d, nil
}

func parseDebt(text string) *int64 {
	num := digitGroup.FindString(text)
	if num == "" {
		return nil
	}
	v, ok := model.ParseAmount(num).Int64()
	if !ok {
		return nil
	}
	return &v
}
