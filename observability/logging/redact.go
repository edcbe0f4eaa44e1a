package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// secretParams are query parameters that commonly carry RPC provider keys or
// database passwords.
var secretParams = map[string]struct{}{
	"apikey":   {},
	"api_key":  {},
	"key":      {},
	"token":    {},
	"password": {},
	"secret":   {},
}

// RedactURL masks the password component and secret query parameters of an
// endpoint or DSN. Values that do not parse as URLs, such as sqlite paths, are
// returned unchanged.
func RedactURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !strings.Contains(trimmed, "://") {
		return raw
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return RedactedValue
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), RedactedValue)
		}
	}
	if u.RawQuery != "" {
		query := u.Query()
		for param := range query {
			if _, secret := secretParams[strings.ToLower(param)]; secret {
				query.Set(param, RedactedValue)
			}
		}
		u.RawQuery = query.Encode()
	}
	// Providers such as Infura embed the key as the last path segment.
	if segments := strings.Split(u.Path, "/"); len(segments) > 2 && looksLikeKey(segments[len(segments)-1]) {
		segments[len(segments)-1] = RedactedValue
		u.Path = strings.Join(segments, "/")
	}
	out, err := url.PathUnescape(u.String())
	if err != nil {
		return u.String()
	}
	return out
}

// Endpoint returns a slog attribute carrying a redacted endpoint.
func Endpoint(key, raw string) slog.Attr {
	return slog.String(key, RedactURL(raw))
}

func looksLikeKey(segment string) bool {
	if len(segment) < 24 {
		return false
	}
	for _, ch := range segment {
		if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F' || ch == '-' || ch == '_') {
			return false
		}
	}
	return true
}
