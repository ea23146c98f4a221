package models

import (
	"sort"
	"strings"
)

// UnknownRegion is recorded for submissions that name no region
const UnknownRegion = "Unknown"

// RegionalCenter is a regional office together with the currency it invoices in
type RegionalCenter struct {
	Region   string `json:"region"`
	Currency string `json:"currency"`
}

var regionalCenters = []RegionalCenter{
	{Region: "Germany", Currency: "EUR"},
	{Region: "USA", Currency: "USD"},
	{Region: "UK", Currency: "GBP"},
	{Region: "India", Currency: "INR"},
	{Region: "France", Currency: "EUR"},
	{Region: "Canada", Currency: "CAD"},
}

// RegionalCenters returns the known regional offices
func RegionalCenters() []RegionalCenter {
	out := make([]RegionalCenter, len(regionalCenters))
	copy(out, regionalCenters)
	return out
}

// DefaultCurrency returns the invoicing currency of a region, matched
// case-insensitively. ok is false for unknown regions.
func DefaultCurrency(region string) (currency string, ok bool) {
	region = strings.TrimSpace(region)
	for _, center := range regionalCenters {
		if strings.EqualFold(center.Region, region) {
			return center.Currency, true
		}
	}
	return "", false
}

// SupportedRegions returns the region names in declaration order
func SupportedRegions() []string {
	regions := make([]string, len(regionalCenters))
	for i, center := range regionalCenters {
		regions[i] = center.Region
	}
	return regions
}

// SupportedCurrencies returns the distinct regional currencies, sorted
func SupportedCurrencies() []string {
	seen := make(map[string]bool)
	var currencies []string
	for _, center := range regionalCenters {
		if !seen[center.Currency] {
			seen[center.Currency] = true
			currencies = append(currencies, center.Currency)
		}
	}
	sort.Strings(currencies)
	return currencies
}
