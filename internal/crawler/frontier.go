package crawler

import (
	"sync"

	"github.com/nao1215/headingscan/internal/model"
)

// Frontier is the FIFO queue of discovered targets together with the set of
// URLs that have ever been enqueued.
//
// Membership is recorded when a URL is pushed, not when it is fetched.
// Push is a single test-and-set under the mutex, so a URL rediscovered
// while its fetch is pending, or by two workers at once, is never queued a
// second time.
type Frontier struct {
	mu      sync.Mutex
	queue   []model.CrawlTarget
	visited map[string]struct{}
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queue:   make([]model.CrawlTarget, 0),
		visited: make(map[string]struct{}),
	}
}

// Push enqueues target unless its URL has been seen before.
// It returns false if the URL was already known.
func (f *Frontier) Push(target model.CrawlTarget) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[target.URL]; ok {
		return false
	}
	f.visited[target.URL] = struct{}{}
	f.queue = append(f.queue, target)
	return true
}

// MarkSeen records url as known without queueing it. It returns false if
// url was already known. The spider uses it for the final URL of a
// redirect, so a page reached that way is analyzed once.
func (f *Frontier) MarkSeen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[url]; ok {
		return false
	}
	f.visited[url] = struct{}{}
	return true
}

// Pop dequeues the oldest target.
func (f *Frontier) Pop() (model.CrawlTarget, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return model.CrawlTarget{}, false
	}
	target := f.queue[0]
	f.queue[0] = model.CrawlTarget{}
	f.queue = f.queue[1:]
	return target, true
}

// Peek returns the oldest target without removing it.
func (f *Frontier) Peek() (model.CrawlTarget, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return model.CrawlTarget{}, false
	}
	return f.queue[0], true
}

// Seen reports whether url has ever been pushed.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[url]
	return ok
}

// Len returns the number of queued targets.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// SeenCount returns the number of distinct URLs ever pushed.
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}
