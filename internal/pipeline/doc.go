// Package pipeline runs the stages of a heading scan for each seed.
//
// A seed passes through a crawl step, which walks the site and analyzes the
// heading structure of every page, and a summary step, which aggregates the
// per-page verdicts. Each stage is a Step that receives the seed's
// model.CrawlResult and can modify it.
//
// DefaultPipeline assembles those two steps from crawl options, and
// BatchProcessor runs one pipeline per seed on an errgroup.
package pipeline
