package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantValue   int64
		wantNumeric bool
		wantRaw     string
	}{
		{"dot thousands", "150.000", 150000, true, ""},
		{"currency prefix", "VND1.000.000", 1000000, true, ""},
		{"currency suffix", "50.000 VND", 50000, true, ""},
		{"comma thousands", "1,250,000", 1250000, true, ""},
		{"dong sign", "20.000đ", 20000, true, ""},
		{"padded", "  75.500  ", 75500, true, ""},
		{"zero", "0", 0, true, ""},
		{"plain digits", "12345", 12345, true, ""},
		{"non numeric", "Không tìm thấy mã thuê bao", 0, false, "Không tìm thấy mã thuê bao"},
		{"mixed", "12abc", 0, false, "12abc"},
		{"negative", "-5000", 0, false, "-5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ParseAmount(tt.text)
			v, ok := a.Int64()
			assert.Equal(t, tt.wantNumeric, ok)
			assert.Equal(t, tt.wantValue, v)
			assert.Equal(t, tt.wantRaw, a.Raw())
			assert.Equal(t, tt.wantRaw != "", a.IsRaw())
		})
	}
}

func TestParseAmount_empty(t *testing.T) {
	for _, text := range []string{"", "   "} {
		a := ParseAmount(text)
		assert.True(t, a.IsAbsent())
		assert.Empty(t, a.String())
	}
}

func TestAmount_MarshalJSON(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		want   string
	}{
		{"numeric", NewAmount(50000), `50000`},
		{"raw", RawAmount("Lỗi thanh toán"), `"Lỗi thanh toán"`},
		{"absent", Amount{}, `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.amount)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "150000", NewAmount(150000).String())
	assert.Equal(t, "n/a", RawAmount("n/a").String())
	assert.Equal(t, "", RawAmount("").String())
}
