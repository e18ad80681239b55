// Package robots evaluates robots.txt rules for a crawl.
//
// A Policy is built once per crawl run, either from the network with Fetch
// or from text with Parse, and is never refreshed. Parsing and rule matching
// are delegated to github.com/temoto/robotstxt.
//
// Fetch is fail-open. A missing robots.txt restricts nothing, and one that
// cannot be read leaves the crawl running as allow-all with a note.
package robots
