// Package crawler walks one website from a seed URL and analyzes the
// heading structure of every page it fetches.
//
// Spider runs the crawl breadth first, a whole depth level ("wave") at a
// time, stopping at the depth limit or the page budget. Only URLs on the
// seed's origin are followed, and only those robots.txt allows. Each
// request waits on a rate limiter shared by all workers, so the configured
// delay (or a longer Crawl-delay) holds between any two requests.
//
// The other pieces:
//   - Frontier queues targets and remembers every URL it has accepted
//   - HTTPFetcher downloads a page and classifies why a fetch failed
//   - Parser pulls the title, headings and links out of HTML
//   - Normalize gives the canonical URL form used for de-duplication
//
// Typical use:
//
//	spider := crawler.NewSpider(crawler.NewHTTPFetcher(client), crawler.WithMaxDepth(3))
//	result, err := spider.Crawl(ctx, "https://example.com")
package crawler
