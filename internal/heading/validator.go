package heading

import (
	"fmt"

	"github.com/nao1215/headingscan/internal/model"
)

// Validate walks the tree once, depth first, and collects every structural
// violation in document order. It does not stop at the first violation.
//
// Rules:
//   - no_headings: the root has no children
//   - missing_top_level: the first top-level heading is not an h1
//   - skipped_level: any other heading more than one level below its parent
//     (top-level headings are measured against level 0)
//   - multiple_h1: more than one top-level h1, reported once at the second
//     occurrence with every further occurrence appended
func Validate(root *model.HeadingNode) model.Verdict {
	if len(root.Children) == 0 {
		return model.NewVerdict([]model.Violation{{
			Kind:        model.ViolationNoHeadings,
			Node:        root,
			Position:    root.Position,
			Level:       root.Level,
			Description: "page has no headings",
		}})
	}

	v := &validator{multipleH1: -1}
	for i, child := range root.Children {
		v.visitTopLevel(child, i == 0)
	}
	return model.NewVerdict(v.violations)
}

type validator struct {
	violations []model.Violation
	h1Count    int
	// multipleH1 is the index of the multiple_h1 violation, -1 if none yet.
	multipleH1 int
}

func (v *validator) visitTopLevel(node *model.HeadingNode, first bool) {
	switch {
	case first && node.Level != model.MinLevel:
		v.add(model.ViolationMissingTopLevel, node,
			fmt.Sprintf("first heading is <%s> %q, expected <h1>", node.Tag(), node.Text))
	case node.Level > model.RootLevel+1:
		v.add(model.ViolationSkippedLevel, node,
			fmt.Sprintf("<%s> %q appears at the top level without an enclosing <h%d>", node.Tag(), node.Text, node.Level-1))
	}

	if node.Level == model.MinLevel {
		v.h1Count++
		switch {
		case v.h1Count == 2:
			v.multipleH1 = len(v.violations)
			v.add(model.ViolationMultipleH1, node,
				fmt.Sprintf("page has more than one <h1>, second is %q", node.Text))
			v.violations[v.multipleH1].Occurrences = []int{node.Position}
		case v.h1Count > 2:
			occ := v.violations[v.multipleH1].Occurrences
			v.violations[v.multipleH1].Occurrences = append(occ, node.Position)
		}
	}

	for _, child := range node.Children {
		v.visit(node, child)
	}
}

func (v *validator) visit(parent, node *model.HeadingNode) {
	if node.Level > parent.Level+1 {
		v.add(model.ViolationSkippedLevel, node,
			fmt.Sprintf("<%s> %q follows <%s> %q, skipping <h%d>",
				node.Tag(), node.Text, parent.Tag(), parent.Text, parent.Level+1))
	}
	for _, child := range node.Children {
		v.visit(node, child)
	}
}

func (v *validator) add(kind model.ViolationKind, node *model.HeadingNode, description string) {
	v.violations = append(v.violations, model.Violation{
		Kind:        kind,
		Node:        node,
		Position:    node.Position,
		Level:       node.Level,
		Text:        node.Text,
		Description: description,
	})
}

// Analyze builds the heading tree for a page and validates it.
func Analyze(events []model.HeadingEvent) (*model.HeadingNode, model.Verdict) {
	root := Build(events)
	return root, Validate(root)
}
