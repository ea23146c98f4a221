// Package fingerprint turns raw invoice text into a deterministic
// InvoiceFingerprint.
//
// The Normalizer masks the tokens that legitimately differ between regional
// copies of the same invoice (currency symbols and codes, invoice numbers,
// dates, amounts) so that two submissions of one transaction compare as
// near-identical text. The Extractor pulls labelled fields such as vendor,
// line items and PO reference out of the text.
//
// Both are pure: the same input always yields the same output, which is what
// makes the content hash usable as a duplicate fast path.
package fingerprint

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// Placeholder tokens substituted by the Normalizer. All are ASCII letters and
// underscores so that a second pass leaves them untouched.
const (
	CurrencyToken      = "CURRENCY"
	InvoiceNumberToken = "INVOICE_NUMBER"
	DateToken          = "DATE"
	AmountToken        = "AMOUNT"
)

var (
	currencySymbolPattern = regexp.MustCompile(`[$€£₹¥＄￡￥]`)
	currencyCodePattern   = regexp.MustCompile(`(?i)\b(USD|EUR|GBP|INR|JPY|CAD)\b`)
	invoiceNumberPattern  = regexp.MustCompile(`(?i)invoice\s*#?:?\s*[A-Z0-9-]+`)
	datePattern           = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	numberPattern         = regexp.MustCompile(`\d+[,.]?\d*`)
)

// Normalizer canonicalizes free text for holistic comparison
type Normalizer struct{}

// NewNormalizer creates a Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize masks volatile tokens, transliterates to ASCII, collapses
// whitespace and lowercases. Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	// Symbols go first: transliteration would turn € into "EUR" and £ into "PS".
	s := currencySymbolPattern.ReplaceAllString(text, CurrencyToken)
	s = unidecode.Unidecode(s)
	s = currencySymbolPattern.ReplaceAllString(s, CurrencyToken)

	s = currencyCodePattern.ReplaceAllString(s, CurrencyToken)
	s = invoiceNumberPattern.ReplaceAllString(s, InvoiceNumberToken)
	s = datePattern.ReplaceAllString(s, DateToken)
	s = numberPattern.ReplaceAllString(s, AmountToken)

	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}
