// Package report derives the dashboard's read-only projections from the
// reconciled summary: the filter stage, headline metrics, distribution and
// status views, grouped sums, and the two detail tables.
//
// Everything here is a pure function over its inputs; no view mutates the
// summary it is given.
package report

import (
	"math"
	"sort"
	"strings"

	"farmdash/internal/reconcile"
	"farmdash/internal/records"
)

// All is the sentinel filter choice that applies no predicate.
const All = "All"

// HistogramBins is the fixed bin count for the delivery distribution.
const HistogramBins = 20

// Headline are the four top-of-page metrics.
type Headline struct {
	Farmers           int     `json:"farmers"`
	TotalQuotaKG      float64 `json:"total_quota_kg"`
	TotalDeliveredKG  float64 `json:"total_delivered_kg"`
	OverallPercentage float64 `json:"overall_percentage"`
}

// HistogramBin is one bucket of the delivery-percentage distribution.
type HistogramBin struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

// StatusSplit counts farmers by whether they delivered anything.
type StatusSplit struct {
	Delivered    int `json:"delivered"`
	NonDelivered int `json:"non_delivered"`
}

// GroupTotal is a per-dimension sum of delivered weight and quota.
type GroupTotal struct {
	Key         string  `json:"key"`
	NetWeightKG float64 `json:"net_weight_kg"`
	MaxQuotaKG  float64 `json:"max_quota_kg"`
}

// CertTotal is an event-level sum of delivered weight per (group,
// certification) pair.
type CertTotal struct {
	Group         string  `json:"group"`
	Certification string  `json:"certification"`
	NetWeightKG   float64 `json:"net_weight_kg"`
}

// Filter narrows the summary by cooperative and exporter. The All sentinel
// passes a dimension through untouched; two restrictive choices combine as a
// logical AND. Filtering by All on both dimensions returns the rows
// unchanged, row for row.
func Filter(summary []reconcile.FarmerSummary, cooperative, exporter string) []reconcile.FarmerSummary {
	if cooperative == All && exporter == All {
		return summary
	}
	out := make([]reconcile.FarmerSummary, 0, len(summary))
	for _, row := range summary {
		if cooperative != All && row.Cooperative != cooperative {
			continue
		}
		if exporter != All && row.Exporter != exporter {
			continue
		}
		out = append(out, row)
	}
	return out
}

// FilterOptions returns the legal choices for the two filter dimensions:
// the distinct, sorted values present in the summary, each preceded by the
// All sentinel.
func FilterOptions(summary []reconcile.FarmerSummary) (cooperatives, exporters []string) {
	cooperatives = append([]string{All}, distinct(summary, func(r reconcile.FarmerSummary) string { return r.Cooperative })...)
	exporters = append([]string{All}, distinct(summary, func(r reconcile.FarmerSummary) string { return r.Exporter })...)
	return cooperatives, exporters
}

func distinct(summary []reconcile.FarmerSummary, key func(reconcile.FarmerSummary) string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range summary {
		v := key(row)
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ComputeHeadline derives the headline metrics. The farmer count is the
// number of distinct farmer ids (ids are already normalized by the
// reconciliation pipeline). The overall percentage is total delivered over
// total quota, 0 when the total quota is 0.
func ComputeHeadline(summary []reconcile.FarmerSummary) Headline {
	ids := map[string]struct{}{}
	var h Headline
	for _, row := range summary {
		ids[row.FarmerID] = struct{}{}
		h.TotalQuotaKG += row.MaxQuotaKG
		h.TotalDeliveredKG += row.NetWeightKG
	}
	h.Farmers = len(ids)
	if h.TotalQuotaKG > 0 {
		h.OverallPercentage = round2(h.TotalDeliveredKG / h.TotalQuotaKG * 100)
	}
	return h
}

// Histogram buckets delivery percentages into equal-width bins spanning
// [min, max]. A summary where every percentage is identical collapses into a
// single occupied bin; an empty summary yields no bins.
func Histogram(summary []reconcile.FarmerSummary, bins int) []HistogramBin {
	if len(summary) == 0 || bins <= 0 {
		return nil
	}

	lo, hi := summary[0].DeliveryPercentage, summary[0].DeliveryPercentage
	for _, row := range summary[1:] {
		if row.DeliveryPercentage < lo {
			lo = row.DeliveryPercentage
		}
		if row.DeliveryPercentage > hi {
			hi = row.DeliveryPercentage
		}
	}

	width := (hi - lo) / float64(bins)
	out := make([]HistogramBin, bins)
	for i := range out {
		out[i] = HistogramBin{
			From: lo + float64(i)*width,
			To:   lo + float64(i+1)*width,
		}
	}

	for _, row := range summary {
		idx := bins - 1
		if width > 0 {
			idx = int((row.DeliveryPercentage - lo) / width)
			if idx >= bins { // the max value lands in the last bin
				idx = bins - 1
			}
		}
		out[idx].Count++
	}
	return out
}

// SplitStatus counts delivering (net > 0) vs non-delivering (net == 0)
// farmers.
func SplitStatus(summary []reconcile.FarmerSummary) StatusSplit {
	var s StatusSplit
	for _, row := range summary {
		if row.NetWeightKG > 0 {
			s.Delivered++
		} else {
			s.NonDelivered++
		}
	}
	return s
}

// TotalsByExporter sums delivered weight and quota per exporter, sorted by
// exporter name.
func TotalsByExporter(summary []reconcile.FarmerSummary) []GroupTotal {
	return totalsBy(summary, func(r reconcile.FarmerSummary) string { return r.Exporter })
}

// TotalsByCooperative sums delivered weight and quota per cooperative,
// sorted by cooperative name.
func TotalsByCooperative(summary []reconcile.FarmerSummary) []GroupTotal {
	return totalsBy(summary, func(r reconcile.FarmerSummary) string { return r.Cooperative })
}

func totalsBy(summary []reconcile.FarmerSummary, key func(reconcile.FarmerSummary) string) []GroupTotal {
	acc := map[string]*GroupTotal{}
	for _, row := range summary {
		k := key(row)
		g := acc[k]
		if g == nil {
			g = &GroupTotal{Key: k}
			acc[k] = g
		}
		g.NetWeightKG += row.NetWeightKG
		g.MaxQuotaKG += row.MaxQuotaKG
	}

	out := make([]GroupTotal, 0, len(acc))
	for _, g := range acc {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CertTotalsByCooperative groups the raw event-level traceability table by
// (cooperative, certification), restricted to farmers present in the
// filtered summary. Grouping at event level means a farmer with several
// certifications contributes weight to several buckets, unlike the
// farmer-level summary, where certifications are comma-joined.
//
// The cooperative comes from the summary (events do not carry it); missing
// certifications and exporters bucket under Unknown so every event's weight
// is attributed somewhere and the grouped sums stay conserved.
func CertTotalsByCooperative(trace records.Table, summary []reconcile.FarmerSummary) []CertTotal {
	coopByID := make(map[string]string, len(summary))
	for _, row := range summary {
		coopByID[row.FarmerID] = row.Cooperative
	}
	return certTotals(trace, func(ev records.Record, id string) (string, bool) {
		coop, ok := coopByID[id]
		return coop, ok
	})
}

// CertTotalsByExporter groups the raw traceability table by (exporter,
// certification), restricted to farmers present in the filtered summary.
func CertTotalsByExporter(trace records.Table, summary []reconcile.FarmerSummary) []CertTotal {
	inSummary := make(map[string]struct{}, len(summary))
	for _, row := range summary {
		inSummary[row.FarmerID] = struct{}{}
	}
	return certTotals(trace, func(ev records.Record, id string) (string, bool) {
		if _, ok := inSummary[id]; !ok {
			return "", false
		}
		exp := strings.TrimSpace(ev.Str("exporter"))
		if exp == "" {
			exp = reconcile.Unknown
		}
		return exp, true
	})
}

func certTotals(trace records.Table, groupOf func(ev records.Record, id string) (string, bool)) []CertTotal {
	type bucket struct{ group, cert string }
	acc := map[bucket]float64{}
	for _, ev := range trace.Rows {
		id := reconcile.NormalizeID(ev, "farmer_id")
		group, ok := groupOf(ev, id)
		if !ok {
			continue
		}
		cert := strings.TrimSpace(ev.Str("certification"))
		if cert == "" {
			cert = reconcile.Unknown
		}
		acc[bucket{group, cert}] += ev.Float("net_weight_kg")
	}

	out := make([]CertTotal, 0, len(acc))
	for b, net := range acc {
		out = append(out, CertTotal{Group: b.group, Certification: b.cert, NetWeightKG: net})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Certification < out[j].Certification
	})
	return out
}

// SortByDelivery returns a copy of the summary sorted by delivery percentage
// descending; ties keep their input order.
func SortByDelivery(summary []reconcile.FarmerSummary) []reconcile.FarmerSummary {
	out := make([]reconcile.FarmerSummary, len(summary))
	copy(out, summary)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeliveryPercentage > out[j].DeliveryPercentage
	})
	return out
}

// NonDelivering returns the farmers with no delivered weight, in input order.
func NonDelivering(summary []reconcile.FarmerSummary) []reconcile.FarmerSummary {
	out := []reconcile.FarmerSummary{}
	for _, row := range summary {
		if row.NetWeightKG == 0 {
			out = append(out, row)
		}
	}
	return out
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
