// Package classifier turns portal page state into a processing outcome.
package classifier

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
)

// Keywords holds the lower-case phrases matched against banner text.
// An empty Negative list treats every error banner as negative.
type Keywords struct {
	Negative []string
	NoDebt   []string
}

func DefaultKeywords() Keywords {
	return Keywords{
		Negative: []string{"không", "đã xảy ra lỗi"},
		NoDebt:   []string{"không còn nợ cước"},
	}
}

// Page is the visible state of a result page.
type Page struct {
	ErrorBanner string
	InfoBanner  string
	AmountText  string
}

// Classify applies the rules in order: a negative error banner is an error,
// a no-debt info banner is no data, anything else is a success with the
// parsed amount.
func Classify(p Page, kw Keywords) outcome.Outcome {
	if banner := NormalizeBanner(p.ErrorBanner); IsNegative(banner, kw) {
		return outcome.Failure(banner)
	}
	if banner := NormalizeBanner(p.InfoBanner); IsNoDebt(banner, kw) {
		return outcome.NoData(banner)
	}
	return outcome.Success(model.ParseAmount(p.AmountText), "", nil)
}

// IsNegative reports whether the error banner is a definitive negative result.
func IsNegative(banner string, kw Keywords) bool {
	if banner == "" {
		return false
	}
	if len(kw.Negative) == 0 {
		return true
	}
	return containsAny(banner, kw.Negative)
}

func IsNoDebt(banner string, kw Keywords) bool {
	if banner == "" {
		return false
	}
	return containsAny(banner, kw.NoDebt)
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// NormalizeBanner drops markup and entities and collapses whitespace.
func NormalizeBanner(raw string) string {
	text := raw
	if strings.ContainsAny(raw, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
		if err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}
