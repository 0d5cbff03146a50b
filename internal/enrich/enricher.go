// Package enrich attaches derived presentation metrics to records after
// fetch and before filtering, so the computed fields are filterable and
// sortable like any upstream field.
package enrich

import (
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/pitabwire/mercura/model"
)

// Metrics is one set of derived values for a record.
type Metrics struct {
	CSAT     float64
	Progress int
	Trend    []float64
}

// Provider produces derived metrics for a record.
type Provider interface {
	MetricsFor(resource string, rec model.Record) Metrics
}

// Enricher attaches derived metric fields to records.
type Enricher struct {
	provider Provider
}

// NewEnricher creates an Enricher backed by the given provider.
func NewEnricher(provider Provider) *Enricher {
	return &Enricher{provider: provider}
}

// Enrich returns copies of the records with csat, progress, and trend
// attached. Input records are not mutated.
func (e *Enricher) Enrich(resource string, records []model.Record) []model.Record {
	out := make([]model.Record, len(records))
	for i, rec := range records {
		m := e.provider.MetricsFor(resource, rec)
		enriched := rec.Clone()
		enriched[model.FieldCSAT] = m.CSAT
		enriched[model.FieldProgress] = m.Progress
		enriched[model.FieldTrend] = m.Trend
		out[i] = enriched
	}
	return out
}

// trendPoints is the length of the sparkline series attached to each record.
const trendPoints = 7

// SeededProvider derives metrics from a deterministic per-record stream
// seeded by the record identity and a configured base seed. The same record
// gets the same metrics across requests and restarts.
type SeededProvider struct {
	seed int64
}

// NewSeededProvider creates a SeededProvider with the given base seed.
func NewSeededProvider(seed int64) *SeededProvider {
	return &SeededProvider{seed: seed}
}

// MetricsFor derives csat in [1, 5], progress in [0, 100], and a
// seven-point trend series in [0, 100).
func (p *SeededProvider) MetricsFor(resource string, rec model.Record) Metrics {
	rng := rand.New(rand.NewSource(p.recordSeed(resource, rec)))

	csat := 1 + rng.Float64()*4
	csat = math.Round(csat*10) / 10

	progress := rng.Intn(101)

	trend := make([]float64, trendPoints)
	for i := range trend {
		trend[i] = math.Round(rng.Float64()*100*100) / 100
	}

	return Metrics{CSAT: csat, Progress: progress, Trend: trend}
}

func (p *SeededProvider) recordSeed(resource string, rec model.Record) int64 {
	h := fnv.New64a()
	h.Write([]byte(resource))
	h.Write([]byte{0})
	h.Write([]byte(rec.String("id")))
	return p.seed ^ int64(h.Sum64())
}

// FixedProvider returns the same metrics for every record. For testing.
type FixedProvider struct {
	Metrics Metrics
}

// MetricsFor returns the fixed metrics.
func (p *FixedProvider) MetricsFor(resource string, rec model.Record) Metrics {
	return p.Metrics
}
