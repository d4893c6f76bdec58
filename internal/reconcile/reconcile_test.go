package reconcile

import (
	"reflect"
	"testing"

	"farmdash/internal/records"
)

func farmersTable(rows ...records.Record) records.Table { return records.NewTable(rows) }

// TestReconcile_EndToEnd covers the canonical scenario: two farmers, one with
// two matching events, one with a zero-weight event and no certification.
func TestReconcile_EndToEnd(t *testing.T) {
	t.Parallel()

	farmers := farmersTable(
		records.Record{"farmer_id": "f1", "cooperative": "coopA", "max_quota_kg": 100.0},
		records.Record{"farmer_id": "f2", "cooperative": "coopA", "max_quota_kg": 50.0},
	)
	trace := records.NewTable([]records.Record{
		{"farmer_id": "f1", "net_weight_kg": 40.0, "certification": "Organic", "exporter": "ExpX"},
		{"farmer_id": "f1", "net_weight_kg": 20.0, "certification": "Organic", "exporter": "ExpX"},
		{"farmer_id": "f2", "net_weight_kg": 0.0, "certification": "", "exporter": "ExpY"},
	})

	got := Pipeline{}.Reconcile(farmers, trace)
	want := []FarmerSummary{
		{
			Cooperative:        "coopA",
			FarmerID:           "f1",
			MaxQuotaKG:         100,
			NetWeightKG:        60,
			Certification:      "Organic",
			Exporter:           "ExpX",
			DeliveryPercentage: 60,
		},
		{
			Cooperative:        "coopA",
			FarmerID:           "f2",
			MaxQuotaKG:         50,
			NetWeightKG:        0,
			Certification:      Unknown,
			Exporter:           "ExpY",
			DeliveryPercentage: 0,
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Reconcile =\n%+v\nwant\n%+v", got, want)
	}
}

// TestReconcile_LeftOuterCompleteness: every farmers row survives exactly
// once, with or without events, and event-only farmers create no rows.
func TestReconcile_LeftOuterCompleteness(t *testing.T) {
	t.Parallel()

	farmers := farmersTable(
		records.Record{"farmer_id": "f1", "cooperative": "coopA", "max_quota_kg": 100.0},
		records.Record{"farmer_id": "f2", "cooperative": "coopB", "max_quota_kg": 80.0},
		records.Record{"farmer_id": "f3", "cooperative": "coopB", "max_quota_kg": 60.0},
	)
	trace := records.NewTable([]records.Record{
		{"farmer_id": "f2", "net_weight_kg": 10.0, "exporter": "ExpX"},
		{"farmer_id": "ghost", "net_weight_kg": 999.0, "exporter": "ExpZ"},
	})

	got := Pipeline{}.Reconcile(farmers, trace)
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3 (one per farmer)", len(got))
	}
	ids := []string{got[0].FarmerID, got[1].FarmerID, got[2].FarmerID}
	if !reflect.DeepEqual(ids, []string{"f1", "f2", "f3"}) {
		t.Fatalf("ids = %v", ids)
	}

	// Farmers without events are filled, not dropped.
	if got[0].NetWeightKG != 0 || got[0].Certification != Unknown || got[0].Exporter != Unknown {
		t.Fatalf("unmatched farmer not filled: %+v", got[0])
	}
	// The ghost event must not leak into any row.
	for _, row := range got {
		if row.NetWeightKG == 999 {
			t.Fatalf("event-only farmer leaked into summary: %+v", row)
		}
	}
}

// TestReconcile_KeyNormalization: ids differing only in case/whitespace merge
// into a single farmer.
func TestReconcile_KeyNormalization(t *testing.T) {
	t.Parallel()

	farmers := farmersTable(
		records.Record{"farmer_id": "F001", "cooperative": "coopA", "max_quota_kg": 100.0},
	)
	trace := records.NewTable([]records.Record{
		{"farmer_id": " f001 ", "net_weight_kg": 30.0},
		{"farmer_id": "f001", "net_weight_kg": 20.0},
		{"farmer_id": "F001", "net_weight_kg": 10.0},
	})

	got := Pipeline{}.Reconcile(farmers, trace)
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	if got[0].FarmerID != "f001" {
		t.Fatalf("FarmerID = %q, want normalized f001", got[0].FarmerID)
	}
	if got[0].NetWeightKG != 60 {
		t.Fatalf("NetWeightKG = %v, want 60 (all variants merged)", got[0].NetWeightKG)
	}
}

// TestReconcile_ZeroQuotaSafe: quota 0 or missing yields percentage 0, never
// a division fault, including for over-delivering farmers.
func TestReconcile_ZeroQuotaSafe(t *testing.T) {
	t.Parallel()

	farmers := farmersTable(
		records.Record{"farmer_id": "f1", "cooperative": "c", "max_quota_kg": 0.0},
		records.Record{"farmer_id": "f2", "cooperative": "c"}, // quota absent
	)
	trace := records.NewTable([]records.Record{
		{"farmer_id": "f1", "net_weight_kg": 500.0},
	})

	got := Pipeline{}.Reconcile(farmers, trace)
	if got[0].DeliveryPercentage != 0 {
		t.Fatalf("zero quota percentage = %v, want 0", got[0].DeliveryPercentage)
	}
	if got[1].DeliveryPercentage != 0 {
		t.Fatalf("missing quota percentage = %v, want 0", got[1].DeliveryPercentage)
	}
}

// TestReconcile_OverDelivery: the percentage is not clamped at 100.
func TestReconcile_OverDelivery(t *testing.T) {
	t.Parallel()

	farmers := farmersTable(
		records.Record{"farmer_id": "f1", "cooperative": "c", "max_quota_kg": 100.0},
	)
	trace := records.NewTable([]records.Record{
		{"farmer_id": "f1", "net_weight_kg": 150.0},
	})

	got := Pipeline{}.Reconcile(farmers, trace)
	if got[0].DeliveryPercentage != 150 {
		t.Fatalf("DeliveryPercentage = %v, want 150 (no clamping)", got[0].DeliveryPercentage)
	}
}

// TestReconcile_PercentageRounding: percentages round to two decimals.
func TestReconcile_PercentageRounding(t *testing.T) {
	t.Parallel()

	farmers := farmersTable(
		records.Record{"farmer_id": "f1", "cooperative": "c", "max_quota_kg": 3.0},
	)
	trace := records.NewTable([]records.Record{
		{"farmer_id": "f1", "net_weight_kg": 1.0},
	})

	got := Pipeline{}.Reconcile(farmers, trace)
	if got[0].DeliveryPercentage != 33.33 {
		t.Fatalf("DeliveryPercentage = %v, want 33.33", got[0].DeliveryPercentage)
	}
}

// TestReconcile_CertificationPolicies: the two observed aggregation variants
// are explicit options: drop-empty (default) vs keep-raw.
func TestReconcile_CertificationPolicies(t *testing.T) {
	t.Parallel()

	farmers := farmersTable(
		records.Record{"farmer_id": "f1", "cooperative": "c", "max_quota_kg": 100.0},
	)
	trace := records.NewTable([]records.Record{
		{"farmer_id": "f1", "net_weight_kg": 10.0, "certification": "Organic"},
		{"farmer_id": "f1", "net_weight_kg": 10.0, "certification": ""},
		{"farmer_id": "f1", "net_weight_kg": 10.0, "certification": "FairTrade"},
		{"farmer_id": "f1", "net_weight_kg": 10.0, "certification": "Organic"}, // duplicate
		{"farmer_id": "f1", "net_weight_kg": 10.0},                             // null
	})

	strict := Pipeline{CertPolicy: CertDropEmpty}.Reconcile(farmers, trace)
	if strict[0].Certification != "Organic, FairTrade" {
		t.Fatalf("drop-empty certification = %q, want %q", strict[0].Certification, "Organic, FairTrade")
	}

	raw := Pipeline{CertPolicy: CertKeepRaw}.Reconcile(farmers, trace)
	if raw[0].Certification != "Organic, , FairTrade" {
		t.Fatalf("keep-raw certification = %q, want %q", raw[0].Certification, "Organic, , FairTrade")
	}
}

// TestReconcile_AllCertsEmpty: a farmer whose events carry only empty
// certifications falls back to Unknown under drop-empty; under keep-raw the
// empty string is preserved as a real value.
func TestReconcile_AllCertsEmpty(t *testing.T) {
	t.Parallel()

	farmers := farmersTable(
		records.Record{"farmer_id": "f1", "cooperative": "c", "max_quota_kg": 100.0},
	)
	trace := records.NewTable([]records.Record{
		{"farmer_id": "f1", "net_weight_kg": 5.0, "certification": ""},
	})

	strict := Pipeline{CertPolicy: CertDropEmpty}.Reconcile(farmers, trace)
	if strict[0].Certification != Unknown {
		t.Fatalf("drop-empty = %q, want Unknown", strict[0].Certification)
	}

	raw := Pipeline{CertPolicy: CertKeepRaw}.Reconcile(farmers, trace)
	if raw[0].Certification != "" {
		t.Fatalf("keep-raw = %q, want empty string preserved", raw[0].Certification)
	}
}

// TestReconcile_ExporterFirstNonNull: the exporter is the first non-null
// value among the farmer's events, Unknown when entirely absent.
func TestReconcile_ExporterFirstNonNull(t *testing.T) {
	t.Parallel()

	farmers := farmersTable(
		records.Record{"farmer_id": "f1", "cooperative": "c", "max_quota_kg": 100.0},
		records.Record{"farmer_id": "f2", "cooperative": "c", "max_quota_kg": 100.0},
	)
	trace := records.NewTable([]records.Record{
		{"farmer_id": "f1", "net_weight_kg": 1.0},
		{"farmer_id": "f1", "net_weight_kg": 1.0, "exporter": "ExpA"},
		{"farmer_id": "f1", "net_weight_kg": 1.0, "exporter": "ExpB"},
		{"farmer_id": "f2", "net_weight_kg": 1.0},
	})

	got := Pipeline{}.Reconcile(farmers, trace)
	if got[0].Exporter != "ExpA" {
		t.Fatalf("Exporter = %q, want first non-null ExpA", got[0].Exporter)
	}
	if got[1].Exporter != Unknown {
		t.Fatalf("Exporter = %q, want Unknown when absent", got[1].Exporter)
	}
}

// TestReconcile_EmptyInputs: both tables empty is a valid input producing an
// empty summary.
func TestReconcile_EmptyInputs(t *testing.T) {
	t.Parallel()

	got := Pipeline{}.Reconcile(records.NewTable(nil), records.NewTable(nil))
	if len(got) != 0 {
		t.Fatalf("expected empty summary, got %d rows", len(got))
	}
}

// TestReconcile_TextualNumbers: quotas and weights delivered as strings are
// coerced, garbage degrades to zero rather than failing the pipeline.
func TestReconcile_TextualNumbers(t *testing.T) {
	t.Parallel()

	farmers := farmersTable(
		records.Record{"farmer_id": "f1", "cooperative": "c", "max_quota_kg": "120.5"},
		records.Record{"farmer_id": "f2", "cooperative": "c", "max_quota_kg": "oops"},
	)
	trace := records.NewTable([]records.Record{
		{"farmer_id": "f1", "net_weight_kg": "60.25"},
	})

	got := Pipeline{}.Reconcile(farmers, trace)
	if got[0].MaxQuotaKG != 120.5 || got[0].NetWeightKG != 60.25 {
		t.Fatalf("coercion failed: %+v", got[0])
	}
	if got[0].DeliveryPercentage != 50 {
		t.Fatalf("DeliveryPercentage = %v, want 50", got[0].DeliveryPercentage)
	}
	if got[1].MaxQuotaKG != 0 || got[1].DeliveryPercentage != 0 {
		t.Fatalf("garbage quota should degrade to 0: %+v", got[1])
	}
}
