package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/cubetime/internal/model"
)

// Format is an export encoding.
type Format string

// Export formats.
const (
	FormatJSON       Format = "json"
	FormatYAML       Format = "yaml"
	FormatPrometheus Format = "prom"
)

// ParseFormat resolves an export format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "prom", "prometheus":
		return FormatPrometheus, nil
	}
	return "", fmt.Errorf("unknown format %q (expected json, yaml or prom)", s)
}

type exportSummary struct {
	Count    int      `json:"count" yaml:"count"`
	DNFCount int      `json:"dnfCount" yaml:"dnf_count"`
	BestMs   *float64 `json:"bestMs" yaml:"best_ms"`
	WorstMs  *float64 `json:"worstMs" yaml:"worst_ms"`
	MeanMs   *float64 `json:"meanMs" yaml:"mean_ms"`
	StdDevMs *float64 `json:"stdDevMs" yaml:"std_dev_ms"`
	Ao5Ms    *float64 `json:"ao5Ms" yaml:"ao5_ms"`
	Ao12Ms   *float64 `json:"ao12Ms" yaml:"ao12_ms"`
}

type exportDoc struct {
	GeneratedAt time.Time     `json:"generatedAt" yaml:"generated_at"`
	Session     string        `json:"session" yaml:"session"`
	Summary     exportSummary `json:"summary" yaml:"summary"`
	Solves      []model.Solve `json:"solves" yaml:"solves"`
}

func optional(v Value) *float64 {
	if !v.OK {
		return nil
	}
	ms := v.Ms
	return &ms
}

func newExportDoc(r Report, now time.Time) exportDoc {
	sum := r.Summary
	solves := r.Solves
	if solves == nil {
		solves = []model.Solve{}
	}
	return exportDoc{
		GeneratedAt: now.UTC(),
		Session:     r.SessionName,
		Summary: exportSummary{
			Count:    sum.Count,
			DNFCount: sum.DNFCount,
			BestMs:   optional(sum.Best),
			WorstMs:  optional(sum.Worst),
			MeanMs:   optional(sum.Mean),
			StdDevMs: optional(sum.StdDev),
			Ao5Ms:    optional(sum.Ao5),
			Ao12Ms:   optional(sum.Ao12),
		},
		Solves: solves,
	}
}

// Export writes the report in the given format.
func Export(w io.Writer, r Report, format Format, now time.Time) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newExportDoc(r, now))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newExportDoc(r, now)); err != nil {
			return err
		}
		return enc.Close()
	case FormatPrometheus:
		return writePrometheus(w, r)
	}
	return fmt.Errorf("unsupported format %q", format)
}

// writePrometheus emits the report in the text exposition format, suitable for
// a node_exporter textfile collector. Metrics without a value are omitted.
func writePrometheus(w io.Writer, r Report) error {
	session := r.SessionName
	counts := map[model.Penalty]int{}
	for _, s := range r.Solves {
		counts[s.Penalty]++
	}

	solvesFamily := gaugeFamily("cubetime_solves", "Number of solves by penalty.")
	for _, p := range []model.Penalty{model.PenaltyOK, model.PenaltyPlusTwo, model.PenaltyDNF} {
		solvesFamily.Metric = append(solvesFamily.Metric,
			gauge(float64(counts[p]), "session", session, "penalty", string(p)))
	}

	timeFamily := gaugeFamily("cubetime_solve_time_seconds", "Solve time statistics in seconds.")
	sum := r.Summary
	for _, stat := range []struct {
		name string
		v    Value
	}{
		{"best", sum.Best},
		{"worst", sum.Worst},
		{"mean", sum.Mean},
		{"stddev", sum.StdDev},
		{"ao5", sum.Ao5},
		{"ao12", sum.Ao12},
	} {
		if !stat.v.OK {
			continue
		}
		timeFamily.Metric = append(timeFamily.Metric,
			gauge(stat.v.Ms/1000, "session", session, "stat", stat.name))
	}

	for _, mf := range []*dto.MetricFamily{solvesFamily, timeFamily} {
		if len(mf.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: &name,
		Help: &help,
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

// gauge builds a gauge sample from alternating label names and values.
func gauge(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: &v}}
	for i := 0; i+1 < len(labels); i += 2 {
		name, value := labels[i], labels[i+1]
		m.Label = append(m.Label, &dto.LabelPair{Name: &name, Value: &value})
	}
	return m
}
