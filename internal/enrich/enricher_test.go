package enrich

import (
	"testing"

	"github.com/pitabwire/mercura/model"
)

func TestEnrich_attachesDerivedFields(t *testing.T) {
	e := NewEnricher(NewSeededProvider(42))
	records := []model.Record{
		{"id": "1", "productName": "Desk"},
		{"id": "2", "productName": "Chair"},
	}

	out := e.Enrich("products", records)
	if len(out) != 2 {
		t.Fatalf("records = %d, want 2", len(out))
	}

	for i, rec := range out {
		csat, ok := rec[model.FieldCSAT].(float64)
		if !ok {
			t.Fatalf("record %d csat missing or wrong type: %v", i, rec[model.FieldCSAT])
		}
		if csat < 1 || csat > 5 {
			t.Errorf("record %d csat = %v, want within [1, 5]", i, csat)
		}

		progress, ok := rec[model.FieldProgress].(int)
		if !ok {
			t.Fatalf("record %d progress missing or wrong type: %v", i, rec[model.FieldProgress])
		}
		if progress < 0 || progress > 100 {
			t.Errorf("record %d progress = %d, want within [0, 100]", i, progress)
		}

		trend, ok := rec[model.FieldTrend].([]float64)
		if !ok {
			t.Fatalf("record %d trend missing or wrong type: %v", i, rec[model.FieldTrend])
		}
		if len(trend) != 7 {
			t.Errorf("record %d trend = %d points, want 7", i, len(trend))
		}
	}
}

func TestEnrich_deterministicPerRecord(t *testing.T) {
	e := NewEnricher(NewSeededProvider(42))
	records := []model.Record{{"id": "1"}}

	first := e.Enrich("products", records)
	second := e.Enrich("products", records)

	if first[0][model.FieldCSAT] != second[0][model.FieldCSAT] {
		t.Error("csat differs between runs for the same record")
	}
	if first[0][model.FieldProgress] != second[0][model.FieldProgress] {
		t.Error("progress differs between runs for the same record")
	}
}

func TestEnrich_distinctRecordsDiffer(t *testing.T) {
	// Not guaranteed in principle, but with 50 records at least one pair
	// must differ unless the stream is broken.
	e := NewEnricher(NewSeededProvider(42))
	records := make([]model.Record, 50)
	for i := range records {
		records[i] = model.Record{"id": string(rune('a' + i))}
	}

	out := e.Enrich("products", records)
	allSame := true
	for _, rec := range out[1:] {
		if rec[model.FieldCSAT] != out[0][model.FieldCSAT] {
			allSame = false
			break
		}
	}
	if allSame {
		t.Error("all 50 records got identical csat")
	}
}

func TestEnrich_doesNotMutateInput(t *testing.T) {
	e := NewEnricher(NewSeededProvider(1))
	records := []model.Record{{"id": "1"}}

	e.Enrich("products", records)
	if _, present := records[0][model.FieldCSAT]; present {
		t.Error("input record was mutated")
	}
}

func TestEnrich_fixedProvider(t *testing.T) {
	e := NewEnricher(&FixedProvider{Metrics: Metrics{CSAT: 4.2, Progress: 80, Trend: []float64{1, 2, 3, 4, 5, 6, 7}}})
	out := e.Enrich("orders", []model.Record{{"id": "x"}})

	if out[0][model.FieldCSAT] != 4.2 {
		t.Errorf("csat = %v, want 4.2", out[0][model.FieldCSAT])
	}
	if out[0][model.FieldProgress] != 80 {
		t.Errorf("progress = %v, want 80", out[0][model.FieldProgress])
	}
}

func TestStripDerived_removesEnrichment(t *testing.T) {
	e := NewEnricher(NewSeededProvider(7))
	out := e.Enrich("products", []model.Record{{"id": "1", "productName": "Desk"}})

	stripped := out[0].StripDerived()
	for _, f := range model.DerivedFields {
		if _, present := stripped[f]; present {
			t.Errorf("derived field %q survived StripDerived", f)
		}
	}
	if stripped["productName"] != "Desk" {
		t.Error("StripDerived dropped an upstream field")
	}
}
