package model

// ViolationKind identifies a class of heading structure defect.
//
// String constants are used rather than iota values so that reports and
// JSON output carry a stable, readable identifier.
type ViolationKind string

const (
	// ViolationSkippedLevel is a heading nested more than one level below
	// its parent, e.g. an h3 directly under an h1.
	ViolationSkippedLevel ViolationKind = "skipped_level"

	// ViolationMultipleH1 is a page with more than one top-level h1.
	ViolationMultipleH1 ViolationKind = "multiple_h1"

	// ViolationMissingTopLevel is a page whose first heading is not an h1.
	ViolationMissingTopLevel ViolationKind = "missing_top_level"

	// ViolationNoHeadings is a page without any heading.
	ViolationNoHeadings ViolationKind = "no_headings"
)

// ViolationKinds lists every kind in a fixed order for reports.
var ViolationKinds = []ViolationKind{
	ViolationMissingTopLevel,
	ViolationMultipleH1,
	ViolationSkippedLevel,
	ViolationNoHeadings,
}

// String returns the kind identifier.
func (k ViolationKind) String() string {
	return string(k)
}

// Violation records one structural defect on a page.
type Violation struct {
	// Kind is the defect class.
	Kind ViolationKind `json:"kind"`

	// Node is the offending heading. For ViolationNoHeadings it is the root.
	// It is a non-owning reference into the page's tree.
	Node *HeadingNode `json:"-"`

	// Position is the document-order index of Node (-1 for the root).
	Position int `json:"position"`

	// Level is the level of Node.
	Level int `json:"level"`

	// Text is the text of Node.
	Text string `json:"text,omitempty"`

	// Description is a human-readable explanation.
	Description string `json:"description"`

	// Occurrences lists the positions of every heading involved beyond the
	// first one. Only set for ViolationMultipleH1.
	Occurrences []int `json:"occurrences,omitempty"`
}

// Verdict is the validation outcome for one page.
type Verdict struct {
	// Sound is true iff Violations is empty.
	Sound bool `json:"sound"`

	// Violations are collected in document order.
	Violations []Violation `json:"violations"`
}

// NewVerdict creates a Verdict from the collected violations.
func NewVerdict(violations []Violation) Verdict {
	if violations == nil {
		violations = make([]Violation, 0)
	}
	return Verdict{
		Sound:      len(violations) == 0,
		Violations: violations,
	}
}

// Count returns the number of violations of the given kind.
func (v Verdict) Count(kind ViolationKind) int {
	n := 0
	for _, violation := range v.Violations {
		if violation.Kind == kind {
			n++
		}
	}
	return n
}

// HasViolationAt reports whether any violation references the heading at
// the given document position.
func (v Verdict) HasViolationAt(position int) bool {
	for _, violation := range v.Violations {
		if violation.Position == position {
			return true
		}
		for _, p := range violation.Occurrences {
			if p == position {
				return true
			}
		}
	}
	return false
}
