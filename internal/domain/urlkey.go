package domain

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

var ErrInvalidWebsiteURL = errors.New("invalid website url")

// URLKey reduces a website URL to the comparison key used for duplicate
// detection. http and https collapse, the host is lowercased without a
// leading "www.", default ports, fragments and trailing slashes are dropped,
// and query parameters are ordered by name.
func URLKey(raw string) (string, error) {
	u, err := ParseWebsiteURL(raw)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host = net.JoinHostPort(host, port)
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	key := host + path
	if u.RawQuery != "" {
		key += "?" + sortedQuery(u.RawQuery)
	}
	return key, nil
}

// ParseWebsiteURL accepts absolute http(s) URLs; a missing scheme defaults
// to https.
func ParseWebsiteURL(raw string) (*url.URL, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, ErrInvalidWebsiteURL
	}
	if !strings.Contains(v, "://") {
		v = "https://" + v
	}
	u, err := url.Parse(v)
	if err != nil {
		return nil, ErrInvalidWebsiteURL
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, ErrInvalidWebsiteURL
	}
	if u.User != nil || u.Hostname() == "" || strings.ContainsAny(u.Hostname(), " \t") {
		return nil, ErrInvalidWebsiteURL
	}
	u.Scheme = scheme
	u.Fragment = ""
	u.RawFragment = ""
	return u, nil
}

// sortedQuery orders parameters by key so reordered queries compare equal.
// Queries that do not parse are kept verbatim.
func sortedQuery(raw string) string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	return values.Encode()
}
