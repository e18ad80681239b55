// Package heading turns a page's flat list of heading tags into a tree and
// checks the tree for structural defects.
//
// Build is a single pass over the events with an ancestor stack. It accepts
// any sequence, including ones that jump from <h1> straight to <h4>; the
// resulting shape is what Validate inspects. Flatten is the inverse of Build.
//
// Usage:
//
//	root, verdict := heading.Analyze(page.Headings)
//	if !verdict.Sound {
//		for _, v := range verdict.Violations {
//			fmt.Println(v.Kind, v.Description)
//		}
//	}
package heading
