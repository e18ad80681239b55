// Package main provides the entry point for the headingscan CLI.
//
// headingscan crawls a website from one or more seed URLs, stays on the
// seed's origin, honors robots.txt, and checks the h1-h6 outline of every
// page it fetches. Pages that skip a heading level, lack an h1 or carry
// more than one are reported.
//
// Usage:
//
//	headingscan scan <seed-url>...
//	headingscan init
//
// See --help for all available options.
package main

// main is the entry point for headingscan.
func main() {
	Execute()
}
