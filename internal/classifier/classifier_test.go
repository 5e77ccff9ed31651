package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		page Page
		kw   Keywords
		want outcome.Outcome
	}{
		{
			name: "negative error banner",
			page: Page{
				ErrorBanner: "  Mã thuê bao   không tồn tại ",
				AmountText:  "150.000",
			},
			kw:   DefaultKeywords(),
			want: outcome.Failure("Mã thuê bao không tồn tại"),
		},
		{
			name: "negative keyword matched case-insensitively",
			page: Page{ErrorBanner: "ĐÃ XẢY RA LỖI trong quá trình xử lý"},
			kw:   DefaultKeywords(),
			want: outcome.Failure("ĐÃ XẢY RA LỖI trong quá trình xử lý"),
		},
		{
			name: "banner markup is stripped",
			page: Page{ErrorBanner: "<span>Thuê bao <b>không</b> hợp lệ&nbsp;</span>"},
			kw:   DefaultKeywords(),
			want: outcome.Failure("Thuê bao không hợp lệ"),
		},
		{
			name: "no debt info banner",
			page: Page{InfoBanner: "Thuê bao không còn nợ cước", AmountText: "0"},
			kw:   DefaultKeywords(),
			want: outcome.NoData("Thuê bao không còn nợ cước"),
		},
		{
			name: "error banner without negative keyword falls through",
			page: Page{ErrorBanner: "Vui lòng thử lại", AmountText: "VND1.000.000"},
			kw:   DefaultKeywords(),
			want: outcome.Success(model.NewAmount(1000000), "", nil),
		},
		{
			name: "empty negative list matches any banner",
			page: Page{ErrorBanner: "Vui lòng thử lại", AmountText: "150.000"},
			kw:   Keywords{},
			want: outcome.Failure("Vui lòng thử lại"),
		},
		{
			name: "success with amount",
			page: Page{AmountText: "150.000"},
			kw:   DefaultKeywords(),
			want: outcome.Success(model.NewAmount(150000), "", nil),
		},
		{
			name: "non-numeric amount passes through",
			page: Page{AmountText: "Đang cập nhật"},
			kw:   DefaultKeywords(),
			want: outcome.Success(model.RawAmount("Đang cập nhật"), "", nil),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.page, tt.kw))
		})
	}
}

func TestClassify_negativeBannerNeverReadsAmount(t *testing.T) {
	got := Classify(Page{
		ErrorBanner: "Không tìm thấy thông tin",
		AmountText:  "50.000",
	}, DefaultKeywords())

	assert.True(t, got.IsError())
	v, ok := got.Amount.Int64()
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestNormalizeBanner(t *testing.T) {
	assert.Equal(t, "", NormalizeBanner("  \n\t "))
	assert.Equal(t, "a b c", NormalizeBanner("a\n  b\tc"))
	assert.Equal(t, "Lỗi & cảnh báo", NormalizeBanner("<p>Lỗi &amp; cảnh báo</p>"))
}
