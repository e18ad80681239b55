package model

import "strings"

// Heading level bounds. Level 0 is reserved for the synthetic root node.
const (
	RootLevel = 0
	MinLevel  = 1
	MaxLevel  = 6
)

// HeadingEvent is one heading tag (<h1> to <h6>) as it appears in
// document order on a page.
type HeadingEvent struct {
	// Level is the heading rank, 1 (most significant) to 6.
	Level int `json:"level"`

	// Text is the heading's text content with whitespace collapsed.
	Text string `json:"text"`
}

// NewHeadingEvent creates a HeadingEvent, clamping the level into 1..6
// and collapsing runs of whitespace in the text.
func NewHeadingEvent(level int, text string) HeadingEvent {
	return HeadingEvent{
		Level: ClampLevel(level),
		Text:  strings.Join(strings.Fields(text), " "),
	}
}

// ClampLevel forces a heading level into the valid range 1..6.
func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// HeadingNode is a node in a page's heading tree.
//
// Children are owned exclusively by their parent and there is no pointer
// back to the parent, so a tree is a strict single-owner hierarchy.
// The synthetic root has Level 0 and Position -1 and never represents a
// parsed heading.
type HeadingNode struct {
	// Level is the heading rank (0 for the root).
	Level int `json:"level"`

	// Text is the heading text (empty for the root).
	Text string `json:"text,omitempty"`

	// Position is the 0-based index of the heading in document order.
	Position int `json:"position"`

	// Children are the nested headings in document order.
	Children []*HeadingNode `json:"children,omitempty"`
}

// NewRoot creates the synthetic root of a heading tree.
func NewRoot() *HeadingNode {
	return &HeadingNode{Level: RootLevel, Position: -1}
}

// IsRoot reports whether the node is the synthetic root.
func (n *HeadingNode) IsRoot() bool {
	return n.Level == RootLevel
}

// Tag returns the HTML tag name of the node, e.g. "h2".
// The root returns an empty string.
func (n *HeadingNode) Tag() string {
	if n.IsRoot() {
		return ""
	}
	return "h" + string(rune('0'+n.Level))
}

// AddChild appends child as the last child of n.
func (n *HeadingNode) AddChild(child *HeadingNode) {
	n.Children = append(n.Children, child)
}

// Count returns the number of parsed headings in the subtree rooted at n,
// excluding the synthetic root.
func (n *HeadingNode) Count() int {
	count := 0
	if !n.IsRoot() {
		count = 1
	}
	for _, c := range n.Children {
		count += c.Count()
	}
	return count
}

// Walk visits every node of the tree in pre-order. depth is 0 for the
// root's children. The root itself is not visited.
func (n *HeadingNode) Walk(fn func(node *HeadingNode, depth int)) {
	var walk func(node *HeadingNode, depth int)
	walk = func(node *HeadingNode, depth int) {
		for _, c := range node.Children {
			fn(c, depth)
			walk(c, depth+1)
		}
	}
	walk(n, 0)
}
