package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"

	"invoice-fraud-detector/internal/models"
)

// CurrencyReconciler converts invoice amounts into the common unit and flags
// amounts that are suspiciously close after conversion.
//
// Conversion uses a static rate table; it is an approximation, not an FX lookup.
type CurrencyReconciler struct {
	rates             RateTable
	varianceThreshold float64
}

// NewCurrencyReconciler creates a reconciler. A nil table uses DefaultRates.
func NewCurrencyReconciler(rates RateTable, varianceThreshold float64) *CurrencyReconciler {
	if rates == nil {
		rates = DefaultRates()
	}
	return &CurrencyReconciler{rates: rates, varianceThreshold: varianceThreshold}
}

// ToCommon converts an amount in currency into the common unit
func (c *CurrencyReconciler) ToCommon(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(c.rates.Rate(currency)))
}

// InvoiceToCommon converts an invoice's total into the common unit
func (c *CurrencyReconciler) InvoiceToCommon(inv *models.RegionalInvoice) decimal.Decimal {
	return c.ToCommon(inv.TotalAmount, inv.Currency)
}

// Reconcile compares a (the submitted invoice) with b (a prior invoice).
// The variance is relative to a.
func (c *CurrencyReconciler) Reconcile(a, b *models.RegionalInvoice) models.CurrencyAnalysis {
	amountA := c.InvoiceToCommon(a)
	amountB := c.InvoiceToCommon(b)
	variance := VarianceFraction(amountA, amountB)

	return models.CurrencyAnalysis{
		CurrencyPair:     fmt.Sprintf("%s-%s", a.Currency, b.Currency),
		AmountA:          amountA.Round(2),
		AmountB:          amountB.Round(2),
		VarianceFraction: variance,
		VariancePercent:  decimal.NewFromFloat(variance * 100).Round(2).InexactFloat64(),
		Suspicious:       variance < c.varianceThreshold,
	}
}

// VarianceFraction returns |a-b| / |a|. Two zero amounts have no variance;
// a zero a against a non-zero b is a full mismatch (1.0).
func VarianceFraction(a, b decimal.Decimal) float64 {
	if a.IsZero() {
		if b.IsZero() {
			return 0.0
		}
		return 1.0
	}
	return a.Sub(b).Abs().Div(a.Abs()).InexactFloat64()
}
