package migrator

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var urlCredentialPattern = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)

// sanitizeConnectionError rewrites an error from golang-migrate so that it can
// be logged safely. migrate echoes the full database URL, password included, in
// its connection errors.
func sanitizeConnectionError(err error, dbURL string) error {
	if err == nil {
		return nil
	}

	msg := err.Error()

	if u, parseErr := url.Parse(dbURL); parseErr == nil && u.User != nil {
		if pass, ok := u.User.Password(); ok && pass != "" {
			msg = strings.ReplaceAll(msg, pass, "[REDACTED]")
			if escaped := url.QueryEscape(pass); escaped != pass {
				msg = strings.ReplaceAll(msg, escaped, "[REDACTED]")
			}
		}
	}

	// Catch user:pass@ shapes that survived, including ones from URLs that
	// url.Parse rejects.
	msg = urlCredentialPattern.ReplaceAllString(msg, "://$1:[REDACTED]@")

	return fmt.Errorf("migrate.New: %s", msg)
}
