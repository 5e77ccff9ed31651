package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Amount is a VND value read from the portal. It is either absent, a whole
// number, or the raw displayed text when the text could not be parsed.
type Amount struct {
	raw     string
	value   int64
	numeric bool
}

func NewAmount(value int64) Amount {
	return Amount{value: value, numeric: true}
}

func RawAmount(text string) Amount {
	if text == "" {
		return Amount{}
	}
	return Amount{raw: text}
}

var amountReplacer = strings.NewReplacer(
	"VND", "",
	"vnd", "",
	"đ", "",
	"₫", "",
	".", "",
	",", "",
	" ", "",
	"\u00a0", "",
)

// ParseAmount converts a displayed amount such as "150.000" or "VND1.000.000"
// to an integer. Text that is not a number is kept as a raw amount.
func ParseAmount(text string) Amount {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Amount{}
	}

	digits := amountReplacer.Replace(trimmed)
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || v < 0 {
		return RawAmount(trimmed)
	}
	return NewAmount(v)
}

func (a Amount) Int64() (int64, bool) {
	return a.value, a.numeric
}

func (a Amount) IsRaw() bool {
	return !a.numeric && a.raw != ""
}

func (a Amount) IsAbsent() bool {
	return !a.numeric && a.raw == ""
}

func (a Amount) Raw() string {
	return a.raw
}

func (a Amount) String() string {
	switch {
	case a.numeric:
		return strconv.FormatInt(a.value, 10)
	case a.raw != "":
		return a.raw
	default:
		return ""
	}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	switch {
	case a.numeric:
		return []byte(strconv.FormatInt(a.value, 10)), nil
	case a.raw != "":
		return json.Marshal(a.raw) //nolint: wrapcheck // plain string encoding
	default:
		return []byte("null"), nil
	}
}
