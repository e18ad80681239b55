package heading

import "github.com/nao1215/headingscan/internal/model"

// Build converts a page's headings, in document order, into a tree rooted
// at a synthetic level-0 node.
//
// The tree is built with an ancestor stack; nodes own their children and
// hold no parent pointers. Each event is handled once:
//  1. Pop the stack while the top is at the same or a deeper level
//  2. The new top is the parent; attach the node as its last child
//  3. Push the node
//
// The root is never popped because no event has level 0 after clamping.
// Build never rejects input. Level jumps are left for Validate to report.
func Build(events []model.HeadingEvent) *model.HeadingNode {
	root := model.NewRoot()
	stack := make([]*model.HeadingNode, 1, model.MaxLevel+1)
	stack[0] = root

	for i, event := range events {
		level := model.ClampLevel(event.Level)
		for len(stack) > 1 && stack[len(stack)-1].Level >= level {
			stack = stack[:len(stack)-1]
		}

		node := &model.HeadingNode{
			Level:    level,
			Text:     event.Text,
			Position: i,
		}
		stack[len(stack)-1].AddChild(node)
		stack = append(stack, node)
	}

	return root
}

// Flatten returns the headings of a tree in pre-order, which is the
// document order the tree was built from.
func Flatten(root *model.HeadingNode) []model.HeadingEvent {
	events := make([]model.HeadingEvent, 0, root.Count())
	root.Walk(func(node *model.HeadingNode, _ int) {
		events = append(events, model.HeadingEvent{Level: node.Level, Text: node.Text})
	})
	return events
}
