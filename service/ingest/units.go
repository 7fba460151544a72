package ingest

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormatUnits renders an integer amount in whole units, e.g. "1500000" with
// 6 decimals is "1.5". It is for display only; stored values stay integers.
func FormatUnits(value string, decimals int) (string, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if decimals < 0 {
		return "", fmt.Errorf("invalid decimals %d", decimals)
	}
	return d.Shift(int32(-decimals)).String(), nil
}
