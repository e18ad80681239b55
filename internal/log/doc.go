// Package log builds the slog loggers used by headingscan. Records pass
// through SecureHandler, which masks credentials before charmbracelet/log
// renders them as console text or as JSON lines.
//
// # What is masked
//
// A crawl behind a login carries cookies and custom headers from the site
// config, and those values must never reach the log, even with --verbose.
// SecureHandler masks:
//   - attributes named like credentials (cookie, authorization, anything
//     containing "token", "secret", "password" and similar)
//   - values that look like secrets under any key (JWTs, bearer and basic
//     credentials, AWS access key ids, PEM private key markers)
//   - the user info and sensitive query parameters of http(s) URLs, leaving
//     the host and path readable
//
// Header names a site config adds are unknown to these rules, so the scan
// command registers them with WithSensitiveKeys.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose,
//	    log.WithSensitiveKeys(cfg.SiteConfigs.HeaderNames()...))
//	slog.SetDefault(logger)
package log
