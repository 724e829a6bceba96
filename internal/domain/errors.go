package domain

import "errors"

// ErrMissingData indicates no price/chain/quote exists for a (symbol, date).
// Callers recover locally: the affected symbol or position is skipped for the
// day and the run continues.
var ErrMissingData = errors.New("missing market data")

// IsMissingData reports whether err is (or wraps) ErrMissingData
func IsMissingData(err error) bool {
	return errors.Is(err, ErrMissingData)
}
