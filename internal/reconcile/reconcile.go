// Package reconcile turns the raw farmers and traceability tables into the
// per-farmer delivery summary the dashboard is built on.
//
// The pipeline is a single-pass batch transform: normalize join keys, group
// traceability events per farmer, left-outer merge against farmer quotas,
// fill gaps, and derive the delivery percentage. Every step is total over
// normal data variance: missing fields, nulls, and textual numbers degrade
// to zero values instead of failing, so a summary is always produced for a
// successfully fetched pair of tables.
package reconcile

import (
	"math"
	"strings"

	"farmdash/internal/records"
)

// Unknown fills certification and exporter gaps so grouped views always have
// a bucket to land in.
const Unknown = "Unknown"

// CertPolicy controls how empty certification strings are treated when
// aggregating a farmer's events.
type CertPolicy string

const (
	// CertDropEmpty drops empty certification values before joining and falls
	// back to Unknown when nothing remains. This is the default.
	CertDropEmpty CertPolicy = "drop-empty"

	// CertKeepRaw joins the distinct raw values, empty strings included.
	CertKeepRaw CertPolicy = "keep-raw"
)

// FarmerSummary is one reconciled row per registered farmer.
type FarmerSummary struct {
	Cooperative        string  `json:"cooperative"`
	FarmerID           string  `json:"farmer_id"`
	MaxQuotaKG         float64 `json:"max_quota_kg"`
	NetWeightKG        float64 `json:"net_weight_kg"`
	Certification      string  `json:"certification"`
	Exporter           string  `json:"exporter"`
	DeliveryPercentage float64 `json:"delivery_percentage"`
}

// Pipeline holds the reconciliation options.
type Pipeline struct {
	// CertPolicy selects empty-certification handling; zero value means
	// CertDropEmpty.
	CertPolicy CertPolicy
}

// NormalizeID canonicalizes a farmer_id for joining and grouping: stringify,
// trim surrounding whitespace, lower-case. IDs differing only in case or
// whitespace merge into the same farmer.
func NormalizeID(r records.Record, key string) string {
	return strings.ToLower(strings.TrimSpace(r.Str(key)))
}

// group accumulates one farmer's traceability events.
type group struct {
	net       float64
	certs     []string // distinct, insertion-ordered
	certSeen  map[string]struct{}
	exporter  string
	hasExport bool
}

// Reconcile merges the farmers table with per-farmer aggregates of the
// traceability table.
//
// Left-outer semantics: every farmers row yields exactly one summary row, in
// input order, whether or not any events match; traceability events without
// a registered farmer do not create rows. Farmers without events get a net
// weight of 0 and Unknown certification/exporter.
func (p Pipeline) Reconcile(farmers, trace records.Table) []FarmerSummary {
	policy := p.CertPolicy
	if policy == "" {
		policy = CertDropEmpty
	}

	groups := make(map[string]*group)
	for _, ev := range trace.Rows {
		id := NormalizeID(ev, "farmer_id")
		g := groups[id]
		if g == nil {
			g = &group{certSeen: map[string]struct{}{}}
			groups[id] = g
		}

		g.net += ev.Float("net_weight_kg")

		// Null certifications are skipped under either policy; empty strings
		// survive only under CertKeepRaw.
		if ev.Has("certification") {
			cert := ev.Str("certification")
			if policy == CertDropEmpty && strings.TrimSpace(cert) == "" {
				// dropped
			} else if _, dup := g.certSeen[cert]; !dup {
				g.certSeen[cert] = struct{}{}
				g.certs = append(g.certs, cert)
			}
		}

		if !g.hasExport && ev.Has("exporter") {
			g.exporter = ev.Str("exporter")
			g.hasExport = true
		}
	}

	out := make([]FarmerSummary, 0, farmers.Len())
	for _, f := range farmers.Rows {
		id := NormalizeID(f, "farmer_id")
		row := FarmerSummary{
			Cooperative:   f.Str("cooperative"),
			FarmerID:      id,
			MaxQuotaKG:    f.Float("max_quota_kg"),
			Certification: Unknown,
			Exporter:      Unknown,
		}

		if g, ok := groups[id]; ok {
			row.NetWeightKG = g.net
			if len(g.certs) > 0 {
				// Under CertKeepRaw this can legitimately be the empty
				// string; only a farmer with no surviving certification
				// values at all falls back to Unknown.
				row.Certification = strings.Join(g.certs, ", ")
			}
			if g.hasExport {
				row.Exporter = g.exporter
			}
		}

		if row.MaxQuotaKG > 0 {
			row.DeliveryPercentage = round2(row.NetWeightKG / row.MaxQuotaKG * 100)
		}

		out = append(out, row)
	}
	return out
}

// round2 rounds to two decimal places, matching the percentage precision the
// dashboard displays and exports.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
