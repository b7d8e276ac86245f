package eval

import (
	"strings"
	"testing"

	"lossreview/internal/promptstore"
	"lossreview/internal/review"
)

func reportWith(score float64, failed ...string) review.QualityReport {
	r := review.QualityReport{Summary: review.QualitySummary{Score: score}}
	for _, name := range failed {
		r.Metrics = append(r.Metrics, review.Metric{Name: name, Passed: false})
	}
	return r
}

func TestObserveBaselineKeep(t *testing.T) {
	prompts := promptstore.NewMemory()
	hist := NewMemoryHistory()
	o := NewOptimizer(prompts, hist, nil)

	action, err := o.Observe("technical", reportWith(6.0, "clarity"))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if action != ActionKeep {
		t.Fatalf("first observation = %s, want keep", action)
	}
	entries := hist.Entries()
	if len(entries) != 1 || entries[0].Action != ActionKeep {
		t.Fatalf("entries = %+v", entries)
	}
	// Baseline never edits the prompt.
	text, _, _ := prompts.Get("technical")
	if strings.Contains(text, rulesByMetric["clarity"]) {
		t.Fatal("baseline run must not append rules")
	}
}

func TestObserveUpdateAppendsRulesOnce(t *testing.T) {
	prompts := promptstore.NewMemory()
	hist := NewMemoryHistory()
	o := NewOptimizer(prompts, hist, nil)

	// Establish a baseline first.
	if _, err := o.Observe("technical", reportWith(8.5)); err != nil {
		t.Fatalf("baseline: %v", err)
	}
	before, _, _ := prompts.Get("technical")

	action, err := o.Observe("technical", reportWith(6.0, "indicator_coverage", "clarity"))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if action != ActionUpdate {
		t.Fatalf("action = %s, want update", action)
	}
	after, _, _ := prompts.Get("technical")
	if !strings.Contains(after, rulesByMetric["indicator_coverage"]) || !strings.Contains(after, rulesByMetric["clarity"]) {
		t.Fatal("both remediation rules must be appended")
	}
	// Appended text is the two rules plus three newlines (one separating the
	// body, one between the rules, one trailing).
	if got, want := len(after), len(before)+len(rulesByMetric["indicator_coverage"])+len(rulesByMetric["clarity"])+3; got != want {
		t.Fatalf("appended more than the two rules: len %d want %d", got, want)
	}

	// Second run with the same failing set appends nothing further.
	action, err = o.Observe("technical", reportWith(6.0, "indicator_coverage", "clarity"))
	if err != nil {
		t.Fatalf("Observe again: %v", err)
	}
	if action != ActionKeep {
		t.Fatalf("repeat action = %s, want keep", action)
	}
	again, _, _ := prompts.Get("technical")
	if again != after {
		t.Fatal("idempotent insertion violated")
	}
}

func TestObserveRollbackRestoresByteForByte(t *testing.T) {
	prompts := promptstore.NewMemory()
	hist := NewMemoryHistory()
	o := NewOptimizer(prompts, hist, nil)

	good, _, _ := prompts.Get("news")
	if _, err := o.Observe("news", reportWith(8.5)); err != nil {
		t.Fatalf("baseline: %v", err)
	}

	// Out-of-band prompt edit followed by a regressed score.
	if err := prompts.Set("news", good+"\n- experimental rewrite"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	action, err := o.Observe("news", reportWith(7.0, "relevance"))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if action != ActionRollback {
		t.Fatalf("action = %s, want rollback", action)
	}
	restored, hash, _ := prompts.Get("news")
	if restored != good {
		t.Fatal("rollback must restore the prior prompt byte-for-byte")
	}
	last, ok, _ := hist.Last("news")
	if !ok || last.Action != ActionRollback || last.Hash != hash {
		t.Fatalf("last entry = %+v", last)
	}
}

func TestObserveKeepAtTarget(t *testing.T) {
	prompts := promptstore.NewMemory()
	o := NewOptimizer(prompts, NewMemoryHistory(), nil)
	if _, err := o.Observe("report", reportWith(8.0)); err != nil {
		t.Fatalf("baseline: %v", err)
	}
	// At target even with failing metrics: keep.
	action, err := o.Observe("report", reportWith(8.0, "clarity"))
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if action != ActionKeep {
		t.Fatalf("action = %s, want keep", action)
	}
}

func TestFileHistoryRoundTrip(t *testing.T) {
	h := NewFileHistory(t.TempDir() + "/history.jsonl")
	if _, ok, err := h.Last("technical"); err != nil || ok {
		t.Fatalf("empty log: ok=%v err=%v", ok, err)
	}
	if err := h.Append(newEntry("technical", "h1", "p1", 7.5, nil, ActionKeep)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := h.Append(newEntry("news", "h2", "p2", 6.5, []string{"relevance"}, ActionUpdate)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := h.Append(newEntry("technical", "h3", "p3", 8.0, nil, ActionUpdate)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	last, ok, err := h.Last("technical")
	if err != nil || !ok {
		t.Fatalf("Last: ok=%v err=%v", ok, err)
	}
	if last.Hash != "h3" || last.Action != ActionUpdate {
		t.Fatalf("last = %+v", last)
	}
}
