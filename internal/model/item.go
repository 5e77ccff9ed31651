package model

import "strings"

// Item is one input line of a batch.
//
// Accepted line shapes:
//
//	code
//	code|orderID
//	phone|amount|orderID
type Item struct {
	Line    string
	Code    string
	OrderID string
	Amount  string
}

// ParseItem trims the line and splits it into its parts. It reports false for
// blank lines and lines with an empty code.
func ParseItem(line string) (Item, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Item{}, false
	}

	parts := strings.Split(trimmed, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	item := Item{Line: trimmed, Code: parts[0]}
	switch len(parts) {
	case 1:
	case 2:
		item.OrderID = parts[1]
	default:
		item.Amount = parts[1]
		item.OrderID = parts[2]
	}

	if item.Code == "" {
		return Item{}, false
	}
	return item, true
}

// SplitLines splits multi-line input the way the operator typed it.
// Blank lines are kept so callers can account for them.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
