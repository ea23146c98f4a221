package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"invoice-fraud-detector/internal/models"
)

// labelPattern matches "Label: value" up to the end of the line
func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + `:[ \t]*(.+?)[ \t]*(?:\r?\n|$)`)
}

var (
	vendorPatterns = []*regexp.Regexp{
		labelPattern("From"),
		labelPattern("Vendor"),
		labelPattern("Supplier"),
		labelPattern("Company"),
	}

	lineItemPatterns = []*regexp.Regexp{
		labelPattern("Description"),
		labelPattern("Product"),
		labelPattern("Service"),
		labelPattern("Item"),
	}

	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[$€£₹¥]\s*([\d,]+\.?\d*)`),
		regexp.MustCompile(`([\d,]+\.?\d*)\s*(?:USD|EUR|GBP|INR|JPY|CAD)`),
	}

	// Ordered from most to least specific; the bare "Reference" label is a last resort.
	poPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bPO\s+Reference\s*[#:]?\s*([A-Z0-9][A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)\bPurchase\s+Order(?:\s+(?:Number|No\.?))?\s*[#:]?\s*([A-Z0-9][A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)\bPO\s*(?:Number|No\.?|#)\s*:?\s*([A-Z0-9][A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)\b(PO-[A-Z0-9][A-Z0-9-]*)`),
		regexp.MustCompile(`(?i)\bReference\s*[#:]?\s*([A-Z0-9][A-Z0-9-]*)`),
	}

	addressPatterns = []*regexp.Regexp{
		labelPattern("Delivery"),
		labelPattern(`Ship\s+to`),
		labelPattern("Address"),
	}

	keywordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(software|license|consultation|equipment|service|support|maintenance|installation)\b`),
		regexp.MustCompile(`(?i)\b(microsoft|office|sap|oracle|aws|google|enterprise|professional|premium)\b`),
	}
)

// Extractor derives an InvoiceFingerprint from raw invoice text
type Extractor struct {
	normalizer *Normalizer
}

// NewExtractor creates an Extractor backed by the given Normalizer
func NewExtractor(normalizer *Normalizer) *Extractor {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &Extractor{normalizer: normalizer}
}

// Extract builds the fingerprint. It never fails: fields that cannot be found
// are left empty.
func (e *Extractor) Extract(rawText string) *models.InvoiceFingerprint {
	normalized := e.normalizer.Normalize(rawText)

	return &models.InvoiceFingerprint{
		ContentHash:       ContentHash(normalized),
		VendorName:        firstMatch(vendorPatterns, rawText),
		LineItems:         allMatches(lineItemPatterns, rawText),
		Amounts:           extractAmounts(rawText),
		POReference:       firstMatch(poPatterns, rawText),
		DeliveryAddress:   firstMatch(addressPatterns, rawText),
		NormalizedContent: normalized,
		Keywords:          extractKeywords(rawText),
	}
}

// ContentHash returns the hex sha256 of already-normalized content, or "" for empty content
func ContentHash(normalized string) string {
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, pattern := range patterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			if value := strings.TrimSpace(match[1]); value != "" {
				return value
			}
		}
	}
	return ""
}

func allMatches(patterns []*regexp.Regexp, text string) []string {
	items := make([]string, 0)
	for _, pattern := range patterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if value := strings.TrimSpace(match[1]); value != "" {
				items = append(items, value)
			}
		}
	}
	return items
}

func extractAmounts(text string) []decimal.Decimal {
	amounts := make([]decimal.Decimal, 0)
	for _, pattern := range amountPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			amount, err := decimal.NewFromString(strings.ReplaceAll(match[1], ",", ""))
			if err != nil {
				continue
			}
			amounts = append(amounts, amount)
		}
	}
	return amounts
}

func extractKeywords(text string) []string {
	seen := make(map[string]bool)
	keywords := make([]string, 0)
	for _, pattern := range keywordPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			keyword := strings.ToLower(match)
			if !seen[keyword] {
				seen[keyword] = true
				keywords = append(keywords, keyword)
			}
		}
	}
	sort.Strings(keywords)
	return keywords
}
