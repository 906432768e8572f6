// Package eval scores lawcite answers against a dataset of questions with
// expected facts and cited sections.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/birucan/lawcite"
)

// Evaluator runs a dataset against a Service.
type Evaluator struct {
	svc  lawcite.Service
	opts []lawcite.Option
}

// NewEvaluator returns an evaluator that passes opts to every query.
func NewEvaluator(svc lawcite.Service, opts ...lawcite.Option) *Evaluator {
	return &Evaluator{svc: svc, opts: opts}
}

// Report summarises one dataset run.
type Report struct {
	Dataset         string                      `json:"dataset"`
	Document        string                      `json:"document"`
	TotalTests      int                         `json:"total_tests"`
	Passed          int                         `json:"passed"`
	Failed          int                         `json:"failed"`
	Metrics         AggregateMetrics            `json:"metrics"`
	CategoryMetrics map[string]AggregateMetrics `json:"category_metrics,omitempty"`
	Results         []TestResult                `json:"results"`
	RunTime         time.Duration               `json:"run_time"`
}

// AggregateMetrics holds averages over the tests that produced an answer.
type AggregateMetrics struct {
	AvgAccuracy         float64 `json:"avg_accuracy"`
	AvgContextRecall    float64 `json:"avg_context_recall"`
	AvgSourceRecall     float64 `json:"avg_source_recall"`
	AvgCitationValidity float64 `json:"avg_citation_validity"`
	AvgClaimGrounding   float64 `json:"avg_claim_grounding"`
}

// TestResult is the outcome of one question.
type TestResult struct {
	Question         string             `json:"question"`
	Category         string             `json:"category,omitempty"`
	Response         string             `json:"response"`
	Citations        []lawcite.Citation `json:"citations"`
	Accuracy         float64            `json:"accuracy"`
	ContextRecall    float64            `json:"context_recall"`
	SourceRecall     float64            `json:"source_recall"`
	CitationValidity float64            `json:"citation_validity"`
	ClaimGrounding   float64            `json:"claim_grounding"`
	Passed           bool               `json:"passed"`
	Degraded         bool               `json:"degraded,omitempty"`
	Error            string             `json:"error,omitempty"`
	ElapsedMs        int64              `json:"elapsed_ms"`
}

// Run asks every question in dataset against location. A per-test failure
// is recorded in its result; only a cancelled context aborts the run.
func (e *Evaluator) Run(ctx context.Context, dataset Dataset, location string) (*Report, error) {
	if location == "" {
		location = dataset.Document
	}
	if location == "" {
		return nil, errors.New("eval: no document to evaluate against")
	}

	start := time.Now()
	report := &Report{
		Dataset:         dataset.Name,
		Document:        location,
		TotalTests:      len(dataset.Tests),
		CategoryMetrics: make(map[string]AggregateMetrics),
	}

	var sums AggregateMetrics
	scored := 0
	catSums := make(map[string]AggregateMetrics)
	catCounts := make(map[string]int)

	for i, test := range dataset.Tests {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := e.runTest(ctx, test, location)
		report.Results = append(report.Results, result)

		status := "PASS"
		switch {
		case result.Error != "":
			status = "ERROR"
		case !result.Passed:
			status = "FAIL"
		}
		slog.Info("eval: test complete",
			"progress", fmt.Sprintf("%d/%d", i+1, len(dataset.Tests)),
			"status", status,
			"accuracy", fmt.Sprintf("%.2f", result.Accuracy),
			"context_recall", fmt.Sprintf("%.2f", result.ContextRecall),
			"elapsed_ms", result.ElapsedMs,
			"question", truncate(test.Question, 80))

		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		if result.Error != "" && !result.Degraded {
			continue
		}
		scored++
		addMetrics(&sums, result)
		if test.Category != "" {
			m := catSums[test.Category]
			addMetrics(&m, result)
			catSums[test.Category] = m
			catCounts[test.Category]++
		}
	}

	report.Metrics = averageMetrics(sums, scored)
	for cat, m := range catSums {
		report.CategoryMetrics[cat] = averageMetrics(m, catCounts[cat])
	}
	report.RunTime = time.Since(start)

	slog.Info("eval: run complete",
		"dataset", dataset.Name,
		"passed", report.Passed,
		"total", report.TotalTests,
		"elapsed", report.RunTime.Round(time.Millisecond))
	return report, nil
}

func (e *Evaluator) runTest(ctx context.Context, test TestCase, location string) TestResult {
	start := time.Now()
	result := TestResult{Question: test.Question, Category: test.Category}

	res, err := e.svc.Query(ctx, test.Question, location, e.opts...)
	var de *lawcite.DegradedError
	switch {
	case errors.As(err, &de):
		// Retrieval still ran; score it with an empty answer.
		result.Error = err.Error()
		result.Degraded = true
		res = &lawcite.QueryResult{Query: de.Query, Citations: de.Citations}
	case err != nil:
		result.Error = err.Error()
		result.ElapsedMs = time.Since(start).Milliseconds()
		return result
	}

	result.Response = res.Response
	result.Citations = res.Citations
	result.Accuracy = computeAccuracy(res, test.ExpectedFacts)
	result.ContextRecall = computeContextRecall(res, test.ExpectedFacts)
	result.SourceRecall = computeSourceRecall(res, test.ExpectedSources)
	result.CitationValidity = computeCitationValidity(res)
	result.ClaimGrounding = computeClaimGrounding(res)

	// A pass needs the evidence retrieved, the facts extracted from it and
	// the expected sections cited.
	result.Passed = !result.Degraded &&
		result.Accuracy >= 0.5 &&
		result.ContextRecall >= 0.5 &&
		result.SourceRecall >= 0.5
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result
}

func addMetrics(m *AggregateMetrics, r TestResult) {
	m.AvgAccuracy += r.Accuracy
	m.AvgContextRecall += r.ContextRecall
	m.AvgSourceRecall += r.SourceRecall
	m.AvgCitationValidity += r.CitationValidity
	m.AvgClaimGrounding += r.ClaimGrounding
}

func averageMetrics(m AggregateMetrics, n int) AggregateMetrics {
	if n == 0 {
		return AggregateMetrics{}
	}
	d := float64(n)
	return AggregateMetrics{
		AvgAccuracy:         m.AvgAccuracy / d,
		AvgContextRecall:    m.AvgContextRecall / d,
		AvgSourceRecall:     m.AvgSourceRecall / d,
		AvgCitationValidity: m.AvgCitationValidity / d,
		AvgClaimGrounding:   m.AvgClaimGrounding / d,
	}
}

// FormatReport renders r as plain text.
func FormatReport(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Evaluation Report: %s ===\n", r.Dataset)
	if r.Document != "" {
		fmt.Fprintf(&b, "Document: %s\n", r.Document)
	}
	fmt.Fprintf(&b, "Total: %d | Passed: %d (%.1f%%) | Failed: %d\n",
		r.TotalTests, r.Passed, passRate(r.Passed, r.TotalTests), r.Failed)
	fmt.Fprintf(&b, "Run time: %s\n\n", r.RunTime.Round(time.Millisecond))

	fmt.Fprintf(&b, "Aggregate Metrics:\n")
	fmt.Fprintf(&b, "  Accuracy:           %.2f\n", r.Metrics.AvgAccuracy)
	fmt.Fprintf(&b, "  Context Recall:     %.2f\n", r.Metrics.AvgContextRecall)
	fmt.Fprintf(&b, "  Source Recall:      %.2f\n", r.Metrics.AvgSourceRecall)
	fmt.Fprintf(&b, "  Citation Validity:  %.2f\n", r.Metrics.AvgCitationValidity)
	fmt.Fprintf(&b, "  Claim Grounding:    %.2f\n\n", r.Metrics.AvgClaimGrounding)

	if len(r.CategoryMetrics) > 0 {
		cats := make([]string, 0, len(r.CategoryMetrics))
		for cat := range r.CategoryMetrics {
			cats = append(cats, cat)
		}
		sort.Strings(cats)

		fmt.Fprintf(&b, "Per-Category Metrics:\n")
		for _, cat := range cats {
			m := r.CategoryMetrics[cat]
			fmt.Fprintf(&b, "  [%s] Acc=%.2f CtxR=%.2f SrcR=%.2f Cite=%.2f Grnd=%.2f\n",
				cat, m.AvgAccuracy, m.AvgContextRecall, m.AvgSourceRecall,
				m.AvgCitationValidity, m.AvgClaimGrounding)
		}
		fmt.Fprintln(&b)
	}

	for i, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %d. %s\n", status, i+1, res.Question)
		if res.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", res.Error)
		}
		if res.Error == "" || res.Degraded {
			fmt.Fprintf(&b, "  Acc=%.2f CtxR=%.2f SrcR=%.2f Cite=%.2f Grnd=%.2f  (%dms)\n",
				res.Accuracy, res.ContextRecall, res.SourceRecall,
				res.CitationValidity, res.ClaimGrounding, res.ElapsedMs)
		}
	}
	return b.String()
}

func passRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
