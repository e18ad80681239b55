// Package config provides configuration structures and utilities for headingscan.
// It defines the crawl bounds, politeness settings, report preferences and
// the optional per-site YAML configuration file.
package config
