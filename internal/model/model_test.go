package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewHeadingEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     int
		text      string
		wantLevel int
		wantText  string
	}{
		{name: "plain", level: 2, text: "Intro", wantLevel: 2, wantText: "Intro"},
		{name: "whitespace collapsed", level: 1, text: "  Hello\n\t  World ", wantLevel: 1, wantText: "Hello World"},
		{name: "level too low", level: 0, text: "x", wantLevel: 1, wantText: "x"},
		{name: "level too high", level: 7, text: "x", wantLevel: 6, wantText: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewHeadingEvent(tt.level, tt.text)
			if e.Level != tt.wantLevel {
				t.Errorf("expected level %d, got %d", tt.wantLevel, e.Level)
			}
			if e.Text != tt.wantText {
				t.Errorf("expected text %q, got %q", tt.wantText, e.Text)
			}
		})
	}
}

func TestHeadingNode(t *testing.T) {
	t.Parallel()

	root := NewRoot()
	h1 := &HeadingNode{Level: 1, Text: "a", Position: 0}
	h2 := &HeadingNode{Level: 2, Text: "b", Position: 1}
	h1.AddChild(h2)
	root.AddChild(h1)

	if !root.IsRoot() || h1.IsRoot() {
		t.Error("unexpected IsRoot result")
	}
	if root.Tag() != "" || h2.Tag() != "h2" {
		t.Errorf("unexpected tags %q, %q", root.Tag(), h2.Tag())
	}
	if root.Count() != 2 {
		t.Errorf("expected count 2, got %d", root.Count())
	}

	var depths []int
	root.Walk(func(_ *HeadingNode, depth int) {
		depths = append(depths, depth)
	})
	if len(depths) != 2 || depths[0] != 0 || depths[1] != 1 {
		t.Errorf("unexpected walk depths %v", depths)
	}
}

func TestVerdict(t *testing.T) {
	t.Parallel()

	t.Run("empty is sound", func(t *testing.T) {
		t.Parallel()

		v := NewVerdict(nil)
		if !v.Sound {
			t.Error("expected sound verdict")
		}
		if v.Violations == nil {
			t.Error("expected non-nil violations slice")
		}
	})

	t.Run("counts and positions", func(t *testing.T) {
		t.Parallel()

		v := NewVerdict([]Violation{
			{Kind: ViolationSkippedLevel, Position: 3},
			{Kind: ViolationMultipleH1, Position: 5, Occurrences: []int{5, 8}},
		})
		if v.Sound {
			t.Error("expected unsound verdict")
		}
		if v.Count(ViolationSkippedLevel) != 1 {
			t.Error("expected one skipped_level")
		}
		if !v.HasViolationAt(8) || v.HasViolationAt(4) {
			t.Error("unexpected HasViolationAt result")
		}
	})
}

func TestCrawlResult(t *testing.T) {
	t.Parallel()

	result := NewCrawlResult("https://example.com/")
	result.AddPage(&PageResult{
		Target:  CrawlTarget{URL: "https://example.com/", Depth: 0},
		Verdict: NewVerdict(nil),
	})
	result.AddPage(&PageResult{
		Target: CrawlTarget{URL: "https://example.com/about", Depth: 1},
		Verdict: NewVerdict([]Violation{
			{Kind: ViolationSkippedLevel},
			{Kind: ViolationSkippedLevel},
			{Kind: ViolationMultipleH1},
		}),
	})
	result.AddSkipped(CrawlTarget{URL: "https://example.com/private", Depth: 1})
	result.AddFailure(FetchFailure{Target: CrawlTarget{URL: "https://example.com/gone", Depth: 1}, Kind: "http_status", StatusCode: 404})
	result.Termination = TerminationMaxPages
	result.Finish()

	if _, ok := result.Page("https://example.com/about"); !ok {
		t.Error("expected page lookup to succeed")
	}
	if _, ok := result.Page("https://example.com/missing"); ok {
		t.Error("expected page lookup to fail")
	}
	if got := len(result.PagesWithViolations()); got != 1 {
		t.Errorf("expected 1 page with violations, got %d", got)
	}

	s := result.Summary
	if s == nil {
		t.Fatal("expected summary after Finish")
	}
	if s.PagesVisited != 2 || s.PagesSkippedByPolicy != 1 || s.PagesFailed != 1 || s.PagesWithViolations != 1 {
		t.Errorf("unexpected summary counts: %+v", s)
	}
	if s.ViolationCounts[ViolationSkippedLevel] != 2 || s.ViolationCounts[ViolationNoHeadings] != 0 {
		t.Errorf("unexpected violation counts: %v", s.ViolationCounts)
	}
	if s.TotalViolations() != 3 {
		t.Errorf("expected 3 violations, got %d", s.TotalViolations())
	}
	if s.Sound() {
		t.Error("expected unsound summary")
	}
	if len(s.ViolatingPages) != 1 || s.ViolatingPages[0] != "https://example.com/about" {
		t.Errorf("unexpected violating pages: %v", s.ViolatingPages)
	}
	if s.Termination != TerminationMaxPages {
		t.Errorf("expected max_pages termination, got %s", s.Termination)
	}
}

func TestCrawlResultJSON(t *testing.T) {
	t.Parallel()

	result := NewCrawlResult("https://example.com/")
	root := NewRoot()
	node := &HeadingNode{Level: 2, Text: "x", Position: 0}
	root.AddChild(node)
	result.AddPage(&PageResult{
		Target:  CrawlTarget{URL: "https://example.com/"},
		Tree:    root,
		Verdict: NewVerdict([]Violation{{Kind: ViolationMissingTopLevel, Node: node, Position: 0}}),
	})

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"missing_top_level"`) {
		t.Errorf("expected violation kind in output: %s", data)
	}
	if strings.Contains(string(data), `"Node"`) {
		t.Errorf("node reference must not be serialized: %s", data)
	}
}

func TestPageResultDisplayTitle(t *testing.T) {
	t.Parallel()

	p := &PageResult{Target: CrawlTarget{URL: "https://example.com/a"}}
	if got := p.DisplayTitle(); got != "Heading Structure for https://example.com/a" {
		t.Errorf("unexpected fallback title %q", got)
	}
	p.Title = "About"
	if p.DisplayTitle() != "About" {
		t.Errorf("expected page title")
	}
}
