package vault

import (
	"math"

	"github.com/shopspring/decimal"
)

// VaultTVL prices the vault share of assets. The price is 0 when the
// normalized amount is zero.
func VaultTVL(totalAssets Amount, usd float64) TVL {
	if math.IsNaN(usd) || math.IsInf(usd, 0) {
		usd = 0
	}
	tvl := TVL{TotalAssets: totalAssets, TVL: usd}

	normalized := totalAssets.Normalized()
	if normalized.IsZero() {
		return tvl
	}

	price, _ := decimal.NewFromFloat(usd).Div(normalized).Float64()
	tvl.Price = price
	return tvl
}
