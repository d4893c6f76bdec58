// Package export renders the reconciled summary as downloadable CSV
// documents.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"

	"farmdash/internal/reconcile"
	"farmdash/internal/report"
)

// Default download filenames.
const (
	PerformanceFilename = "farmer_performance.csv"
	NonDeliveryFilename = "non_delivering_farmers.csv"
)

// Document is a rendered CSV ready to serve: UTF-8 body plus a strong ETag
// derived from the content, so unchanged snapshots revalidate instead of
// re-downloading.
type Document struct {
	Filename string
	Body     []byte
	ETag     string
}

// PerformanceCSV renders the full summary, sorted by delivery percentage
// descending.
func PerformanceCSV(summary []reconcile.FarmerSummary) (Document, error) {
	body, err := render(
		[]string{"cooperative", "farmer_id", "max_quota_kg", "net_weight_kg", "delivery_percentage"},
		report.SortByDelivery(summary),
		func(row reconcile.FarmerSummary) []string {
			return []string{
				row.Cooperative,
				row.FarmerID,
				formatKG(row.MaxQuotaKG),
				formatKG(row.NetWeightKG),
				formatKG(row.DeliveryPercentage),
			}
		},
	)
	if err != nil {
		return Document{}, fmt.Errorf("export: performance csv: %w", err)
	}
	return document(PerformanceFilename, body), nil
}

// NonDeliveryCSV renders only the farmers with no delivered weight. The
// delivery percentage column is omitted: it is 0 for every row by
// construction.
func NonDeliveryCSV(summary []reconcile.FarmerSummary) (Document, error) {
	body, err := render(
		[]string{"cooperative", "farmer_id", "max_quota_kg", "net_weight_kg"},
		report.NonDelivering(summary),
		func(row reconcile.FarmerSummary) []string {
			return []string{
				row.Cooperative,
				row.FarmerID,
				formatKG(row.MaxQuotaKG),
				formatKG(row.NetWeightKG),
			}
		},
	)
	if err != nil {
		return Document{}, fmt.Errorf("export: non-delivery csv: %w", err)
	}
	return document(NonDeliveryFilename, body), nil
}

func render(header []string, rows []reconcile.FarmerSummary, fields func(reconcile.FarmerSummary) []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(fields(row)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func document(filename string, body []byte) Document {
	return Document{
		Filename: filename,
		Body:     body,
		ETag:     fmt.Sprintf("%q", strconv.FormatUint(xxh3.Hash(body), 16)),
	}
}

// formatKG prints weights and percentages with the shortest exact decimal
// representation, so 60 stays "60" and 33.33 stays "33.33".
func formatKG(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
