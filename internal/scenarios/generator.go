package scenarios

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"invoice-fraud-detector/internal/matcher"
	"invoice-fraud-detector/internal/models"
)

// Generator produces reproducible synthetic invoice streams. A share of the
// purchases is re-submitted to a second regional office with a converted
// amount and a different vendor subsidiary, which is the pattern the detector
// is built to catch.
type Generator struct {
	Count         int
	Start         time.Time
	Span          time.Duration
	DuplicateRate float64
	Seed          int64

	// MaxResubmitDelay bounds the gap between a purchase and its duplicate
	MaxResubmitDelay time.Duration
}

// Generated is a synthetic stream and the invoice IDs expected to be flagged
type Generated struct {
	Submissions []*models.InvoiceSubmission
	Duplicates  []string
}

type vendorTemplate struct {
	subsidiaries map[string]string
	products     []string
	unitPrice    int64
}

var vendorTemplates = []vendorTemplate{
	{
		subsidiaries: map[string]string{
			"Germany": "Microsoft Deutschland GmbH", "USA": "Microsoft Corporation USA",
			"UK": "Microsoft UK Ltd", "India": "Microsoft India Pvt Ltd",
			"France": "Microsoft France SAS", "Canada": "Microsoft Canada Inc",
		},
		products:  []string{"Office 365 Enterprise E5", "Azure Reserved Instances", "Dynamics 365 Sales"},
		unitPrice: 100,
	},
	{
		subsidiaries: map[string]string{
			"Germany": "SAP SE", "USA": "SAP America Inc",
			"UK": "SAP UK Ltd", "India": "SAP Labs India",
			"France": "SAP France SA", "Canada": "SAP Canada Inc",
		},
		products:  []string{"S/4HANA Cloud subscription", "SuccessFactors Employee Central", "Ariba Procurement"},
		unitPrice: 240,
	},
	{
		subsidiaries: map[string]string{
			"Germany": "Siemens AG", "USA": "Siemens USA Corp",
			"UK": "Siemens plc", "India": "Siemens Ltd India",
			"France": "Siemens SAS", "Canada": "Siemens Canada Ltd",
		},
		products:  []string{"SIMATIC controller maintenance", "Industrial edge installation", "MindSphere support plan"},
		unitPrice: 75,
	},
}

var offices = []string{
	"Munich Office, Germany",
	"Austin Campus, USA",
	"Reading Office, UK",
	"Hyderabad Development Centre, India",
	"Lyon Office, France",
	"Toronto Office, Canada",
}

// NewGenerator returns a generator for count purchases starting at start
func NewGenerator(count int, start time.Time, seed int64) *Generator {
	return &Generator{
		Count:            count,
		Start:            start,
		Span:             30 * 24 * time.Hour,
		DuplicateRate:    0.1,
		Seed:             seed,
		MaxResubmitDelay: 48 * time.Hour,
	}
}

// Generate builds the stream ordered by submission time
func (g *Generator) Generate() *Generated {
	rng := rand.New(rand.NewSource(g.Seed))
	span := max(g.Span, time.Hour)
	maxDelay := max(g.MaxResubmitDelay, 2*time.Hour)
	rates := matcher.DefaultRates()
	centers := models.RegionalCenters()

	out := &Generated{}
	for i := 0; i < g.Count; i++ {
		vendor := vendorTemplates[rng.Intn(len(vendorTemplates))]
		product := vendor.products[rng.Intn(len(vendor.products))]
		center := centers[rng.Intn(len(centers))]
		quantity := int64(10 + rng.Intn(490))
		usd := decimal.NewFromInt(quantity * vendor.unitPrice)

		purchase := purchase{
			po:       randomPO(rng),
			vendor:   vendor,
			product:  product,
			quantity: quantity,
			usd:      usd,
			office:   offices[rng.Intn(len(offices))],
		}

		submittedAt := g.Start.Add(time.Duration(rng.Int63n(int64(span))))
		out.Submissions = append(out.Submissions, purchase.submission(i+1, center, submittedAt, rates))

		if rng.Float64() >= g.DuplicateRate {
			continue
		}

		other := centers[rng.Intn(len(centers))]
		for other.Region == center.Region {
			other = centers[rng.Intn(len(centers))]
		}
		delay := time.Hour + time.Duration(rng.Int63n(int64(maxDelay-time.Hour)))
		dup := purchase.submission(g.Count+len(out.Duplicates)+1, other, submittedAt.Add(delay), rates)

		out.Submissions = append(out.Submissions, dup)
		out.Duplicates = append(out.Duplicates, dup.InvoiceID)
	}

	sortBySubmission(out.Submissions)
	return out
}

type purchase struct {
	po       string
	vendor   vendorTemplate
	product  string
	quantity int64
	usd      decimal.Decimal
	office   string
}

func (p purchase) submission(seq int, center models.RegionalCenter, at time.Time, rates matcher.RateTable) *models.InvoiceSubmission {
	local := p.usd.Div(decimal.NewFromFloat(rates.Rate(center.Currency))).Round(2)
	unit := local.Div(decimal.NewFromInt(p.quantity)).Round(2)
	id := fmt.Sprintf("%s-GEN-%06d", regionCode(center.Region), seq)

	text := fmt.Sprintf(`INVOICE
From: %s
Invoice No: %s

Description: %s - %d units
Quantity: %d
Unit Price: %s %s
Total: %s %s

Delivery: Aptean %s
PO Reference: %s

Payment Terms: Net 30`,
		p.vendor.subsidiaries[center.Region], id,
		p.product, p.quantity,
		p.quantity,
		unit.StringFixed(2), center.Currency,
		local.StringFixed(2), center.Currency,
		p.office,
		p.po)

	return &models.InvoiceSubmission{
		InvoiceID:   id,
		Region:      center.Region,
		Currency:    center.Currency,
		TotalAmount: local,
		SubmittedAt: at,
		Text:        text,
	}
}

func randomPO(rng *rand.Rand) string {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	code := make([]byte, 4)
	for i := range code {
		code[i] = letters[rng.Intn(len(letters))]
	}
	return fmt.Sprintf("PO-%s-%06d", code, rng.Intn(1000000))
}

func regionCode(region string) string {
	switch region {
	case "Germany":
		return "DE"
	case "USA":
		return "US"
	case "UK":
		return "UK"
	case "India":
		return "IN"
	case "France":
		return "FR"
	case "Canada":
		return "CA"
	default:
		return "XX"
	}
}

func sortBySubmission(subs []*models.InvoiceSubmission) {
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
	})
}

var generatedHeaders = []string{"invoice_id", "region", "currency", "total_amount", "submitted_at", "invoice_text"}

// WriteCSV writes submissions in the standard invoice layout
func WriteCSV(w io.Writer, subs []*models.InvoiceSubmission) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(generatedHeaders); err != nil {
		return err
	}

	for _, sub := range subs {
		record := []string{
			sub.InvoiceID,
			sub.Region,
			sub.Currency,
			sub.TotalAmount.StringFixed(2),
			sub.SubmittedAt.UTC().Format(time.RFC3339),
			sub.Text,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
