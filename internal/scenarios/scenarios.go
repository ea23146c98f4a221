// Package scenarios holds canned multi-regional submissions used by the demo
// command and by end-to-end tests.
package scenarios

import (
	"time"

	"github.com/shopspring/decimal"

	"invoice-fraud-detector/internal/matcher"
	"invoice-fraud-detector/internal/models"
)

// Scenario is an ordered set of submissions and the outcome they should produce
type Scenario struct {
	Name        string
	Description string

	// Config is the detection configuration the scenario is written against
	Config *matcher.DetectionConfig

	Submissions []*models.InvoiceSubmission

	// ExpectFlagged lists the invoice IDs that should raise an alert
	ExpectFlagged []string
}

// DemoBase is the first submission time of the demo scenario
var DemoBase = time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)

const germanOffice365 = `RECHNUNG
From: Microsoft Deutschland GmbH
Invoice ID: DE-2024-1001

Description: Office 365 Enterprise E5 - 500 licenses
Quantity: 500
Unit Price: €100.00
Total: €50,000.00

Delivery: Aptean Munich Office, Germany
PO Reference: PO-APT-2024-SFT-789

Payment Terms: Net 30`

const usOffice365 = `INVOICE
From: Microsoft Corporation USA
Invoice #: US-2024-2156

Description: Office 365 Enterprise E5 - 500 licenses
Quantity: 500
Unit Price: $110.00
Total: $55,000.00

Delivery: Aptean Munich Office, Germany
PO Reference: PO-APT-2024-SFT-789

Payment Terms: Net 30`

const ukOffice365 = `INVOICE
From: Microsoft UK Ltd
Invoice No: UK-2024-3310

Description: Office 365 Enterprise E5 - 500 licenses
Quantity: 500
Unit Price: £86.00
Total: £43,000.00

Delivery: Aptean Munich Office, Germany
PO Reference: PO-APT-2024-SFT-789

Payment Terms: Net 30`

const indiaConsulting = `TAX INVOICE
From: Infosys Limited
Invoice No: IN-2024-0420

Service: SAP S/4HANA implementation support - phase 2
Total: ₹2,500,000.00

Ship to: Aptean Hyderabad Development Centre, India
PO Reference: PO-APT-2024-IND-118

Payment Terms: Net 45`

// MultiRegionalAttack is the demo: one Office 365 purchase submitted to the
// German, US and UK offices within hours, interleaved with an unrelated
// Indian invoice.
func MultiRegionalAttack() *Scenario {
	return &Scenario{
		Name:        "multi-regional-attack",
		Description: "Same Microsoft purchase submitted to Germany, USA and UK",
		Config:      matcher.DefaultDetectionConfig(),
		Submissions: []*models.InvoiceSubmission{
			{
				InvoiceID:   "DE-2024-1001",
				Region:      "Germany",
				Currency:    "EUR",
				TotalAmount: decimal.NewFromInt(50000),
				SubmittedAt: DemoBase,
				Text:        germanOffice365,
			},
			{
				InvoiceID:   "IN-2024-0420",
				Region:      "India",
				Currency:    "INR",
				TotalAmount: decimal.NewFromInt(2500000),
				SubmittedAt: DemoBase.Add(time.Hour),
				Text:        indiaConsulting,
			},
			{
				InvoiceID:   "US-2024-2156",
				Region:      "USA",
				Currency:    "USD",
				TotalAmount: decimal.NewFromInt(55000),
				SubmittedAt: DemoBase.Add(2 * time.Hour),
				Text:        usOffice365,
			},
			{
				InvoiceID:   "UK-2024-3310",
				Region:      "UK",
				Currency:    "GBP",
				TotalAmount: decimal.NewFromInt(43000),
				SubmittedAt: DemoBase.Add(6 * time.Hour),
				Text:        ukOffice365,
			},
		},
		ExpectFlagged: []string{"US-2024-2156", "UK-2024-3310"},
	}
}

// CrossRegionDuplicate submits one purchase to Germany and, two hours later,
// to the USA under a different vendor subsidiary name.
func CrossRegionDuplicate(base time.Time) *Scenario {
	return &Scenario{
		Name:        "cross-region-duplicate",
		Description: "Germany then USA two hours later, same PO",
		Config:      matcher.DefaultDetectionConfig(),
		Submissions: []*models.InvoiceSubmission{
			{
				InvoiceID:   "DE-1",
				Region:      "Germany",
				Currency:    "EUR",
				TotalAmount: decimal.NewFromInt(50000),
				SubmittedAt: base,
				Text: `RECHNUNG
From: Microsoft Deutschland GmbH
Invoice ID: DE-1
Description: Office 365 Enterprise E5 - 500 licenses
Total: €50,000.00
Delivery: Munich Office
PO Reference: PO-789`,
			},
			{
				InvoiceID:   "US-1",
				Region:      "USA",
				Currency:    "USD",
				TotalAmount: decimal.NewFromInt(55000),
				SubmittedAt: base.Add(2 * time.Hour),
				Text: `INVOICE
From: Microsoft Corporation USA
Invoice #: US-1
Description: Office 365 Enterprise E5 - 500 licenses
Total: $55,000.00
Delivery: Munich Office, Germany
PO Reference: PO-789`,
			},
		},
		ExpectFlagged: []string{"US-1"},
	}
}

// UnrelatedInvoices submits two invoices with nothing in common to different
// regions inside the window.
func UnrelatedInvoices(base time.Time) *Scenario {
	return &Scenario{
		Name:        "unrelated-invoices",
		Description: "Different vendors, references and addresses",
		Config:      matcher.DefaultDetectionConfig(),
		Submissions: []*models.InvoiceSubmission{
			{
				InvoiceID:   "DE-2",
				Region:      "Germany",
				Currency:    "EUR",
				TotalAmount: decimal.NewFromInt(18250),
				SubmittedAt: base,
				Text: `RECHNUNG
From: Siemens AG
Description: Industrial pressure sensors
Total: €18,250.00
Delivery: Berlin Plant
PO Reference: PO-111`,
			},
			{
				InvoiceID:   "IN-2",
				Region:      "India",
				Currency:    "INR",
				TotalAmount: decimal.NewFromInt(940000),
				SubmittedAt: base.Add(3 * time.Hour),
				Text: `TAX INVOICE
From: Tata Consultancy Services
Service: Payroll platform consulting
Total: ₹940,000.00
Ship to: Pune Campus
PO Reference: PO-222`,
			},
		},
	}
}

// OutsideWindow submits an identical invoice to two regions 100 hours apart,
// beyond the 72 hour window.
func OutsideWindow(base time.Time) *Scenario {
	text := `INVOICE
From: Microsoft Corporation
Description: Azure reserved instances - 12 months
Total: $40,000.00
Delivery: Toronto Office
PO Reference: PO-555`

	return &Scenario{
		Name:        "outside-window",
		Description: "Identical invoices 100 hours apart",
		Config:      matcher.DefaultDetectionConfig(),
		Submissions: []*models.InvoiceSubmission{
			{
				InvoiceID:   "CA-3",
				Region:      "Canada",
				Currency:    "USD",
				TotalAmount: decimal.NewFromInt(40000),
				SubmittedAt: base,
				Text:        text,
			},
			{
				InvoiceID:   "US-3",
				Region:      "USA",
				Currency:    "USD",
				TotalAmount: decimal.NewFromInt(40000),
				SubmittedAt: base.Add(100 * time.Hour),
				Text:        text,
			},
		},
	}
}

// All returns every scenario, anchored at base where the scenario allows it
func All(base time.Time) []*Scenario {
	return []*Scenario{
		MultiRegionalAttack(),
		CrossRegionDuplicate(base),
		UnrelatedInvoices(base),
		OutsideWindow(base),
	}
}

// ByName returns the scenario with the given name, or nil
func ByName(name string, base time.Time) *Scenario {
	for _, s := range All(base) {
		if s.Name == name {
			return s
		}
	}
	return nil
}
