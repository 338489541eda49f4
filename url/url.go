// Package url wraps url.URL with the helpers the relay needs to normalize WEBHOOK_URL
package url

import (
	nativeurl "net/url"
	"strings"
)

// URL is native url.URL struct
type URL nativeurl.URL

// Parse parses rawurl into a URL structure.
// The rawurl may be relative or absolute.
func Parse(rawurl string) (*URL, error) {
	un, err := nativeurl.Parse(rawurl)
	if err != nil {
		return nil, err
	}
	u := URL(*un)
	return &u, nil
}

// ParseBase parses rawurl and drops everything after the path.
// Scheme defaults to https, trailing slashes are removed
func ParseBase(rawurl string) (*URL, error) {
	rawurl = strings.TrimSpace(rawurl)
	if !strings.Contains(rawurl, "://") {
		rawurl = "https://" + rawurl
	}

	u, err := Parse(rawurl)
	if err != nil {
		return nil, err
	}

	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u, nil
}

// JoinPath appends p to the URL path
func (u *URL) JoinPath(p string) string {
	if u == nil {
		return ""
	}
	return strings.TrimRight(u.String(), "/") + "/" + strings.TrimLeft(p, "/")
}

// GetHost url.Host without the port suffix
func (u *URL) GetHost() string {
	if u == nil {
		return ""
	}
	return (*nativeurl.URL)(u).Hostname()
}

// String returns the string representation
func (u *URL) String() string {
	return (*nativeurl.URL)(u).String()
}
