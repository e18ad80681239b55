package config

import (
	"cmp"
	"maps"
	"slices"
)

// SiteConfig is the configuration of one host, or the defaults for all
// hosts. Zero values mean "not set".
type SiteConfig struct {
	// Cookie is sent as the Cookie header, e.g. "a=1; b=2".
	Cookie string `yaml:"cookie,omitempty"`

	Headers map[string]string `yaml:"headers,omitempty"`

	Depth     int    `yaml:"depth,omitempty"`
	MaxPages  int    `yaml:"maxPages,omitempty"`
	UserAgent string `yaml:"userAgent,omitempty"`

	// IgnorePatterns are path globs never fetched. When FollowPatterns is
	// set, only paths matching one of them are fetched.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the content of a .headingscan file.
type File struct {
	// Sites is keyed by host[:port], e.g. "example.com" or "localhost:8080".
	Sites    map[string]SiteConfig `yaml:"sites,omitempty"`
	Defaults SiteConfig            `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the settings for host: the defaults, with every
// non-zero field of sites[host] taking precedence. Headers are merged key
// by key; pattern lists replace the default lists. The result never shares
// a header map with cf.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	merged := cf.Defaults
	merged.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.Sites[host]
	if !ok {
		return merged
	}

	merged.Cookie = cmp.Or(site.Cookie, merged.Cookie)
	merged.Depth = cmp.Or(site.Depth, merged.Depth)
	merged.MaxPages = cmp.Or(site.MaxPages, merged.MaxPages)
	merged.UserAgent = cmp.Or(site.UserAgent, merged.UserAgent)

	if len(site.Headers) > 0 {
		if merged.Headers == nil {
			merged.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(merged.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		merged.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		merged.FollowPatterns = site.FollowPatterns
	}
	return merged
}

// HeaderNames returns the custom header names set anywhere in the file,
// defaults and sites alike, sorted and without duplicates.
func (cf *File) HeaderNames() []string {
	if cf == nil {
		return nil
	}
	seen := make(map[string]bool)
	for name := range cf.Defaults.Headers {
		seen[name] = true
	}
	for _, site := range cf.Sites {
		for name := range site.Headers {
			seen[name] = true
		}
	}
	return slices.Sorted(maps.Keys(seen))
}
