// Package money fixes the wire format of shopspring/decimal amounts. Import
// it for its side effect: every decimal.Decimal in the process then marshals
// as a bare JSON number, so servers and clients agree on how a price looks.
package money

import "github.com/shopspring/decimal"

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}
