package walletsync

import (
	"github.com/shopspring/decimal"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/pkg/currencypkg"
)

// TotalValue sums the totals of balances in USD using the static rates of
// currencypkg. A balance whose total does not parse counts as zero.
func TotalValue(balances []domain.Balance) decimal.Decimal {
	sum := decimal.Zero

	for _, b := range balances {
		total, err := decimal.NewFromString(b.Balance)
		if err != nil {
			continue
		}

		sum = sum.Add(total.Mul(currencypkg.USDRate(b.CurrencyCode)))
	}

	return sum
}
