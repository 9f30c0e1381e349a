package service

import (
	"net/url"
	"strings"
	"unicode"
)

const httpsPrefix = "https://"

// ValidateURL checks raw against the endpoint rules and returns the parsed URL.
//
// The rules, in order: raw parses as an https URL with a host; it has the
// shape https://host[.tld][:port][/path] with no whitespace or backslash in
// the path; it contains no ".." anywhere; every '%' starts a well-formed
// two-digit escape. The ".." rule also rejects legitimate paths containing
// "..".
//
// On failure the returned error is InvalidURL carrying raw unmodified.
func ValidateURL(raw string) (*url.URL, error) {
	u, ok := parseHTTPS(raw)
	if !ok || !hasEndpointShape(raw) || hasTraversal(raw) || !hasValidEscapes(raw) {
		return nil, InvalidURL(raw)
	}
	return u, nil
}

// parseHTTPS requires a parseable URL with scheme https and a non-empty host
func parseHTTPS(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "https" || u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

// hasEndpointShape checks the literal form of raw: the https:// prefix, a
// host of letters, digits, '.' and '-' ending in a TLD of two or more
// letters, an optional numeric port and an optional path free of
// whitespace and backslashes
func hasEndpointShape(raw string) bool {
	if !strings.HasPrefix(raw, httpsPrefix) {
		return false
	}
	rest := raw[len(httpsPrefix):]

	end := strings.IndexAny(rest, ":/")
	if end < 0 {
		end = len(rest)
	}
	if !isValidHost(rest[:end]) {
		return false
	}
	rest = rest[end:]

	if strings.HasPrefix(rest, ":") {
		port := rest[1:]
		if i := strings.IndexByte(port, '/'); i >= 0 {
			port = port[:i]
		}
		if !isDigits(port) {
			return false
		}
		rest = rest[1+len(port):]
	}

	if rest == "" {
		return true
	}
	if rest[0] != '/' {
		return false
	}
	return isCleanPath(rest)
}

func isValidHost(host string) bool {
	dot := strings.LastIndexByte(host, '.')
	if dot <= 0 {
		return false
	}
	for _, r := range host {
		if !isASCIILetter(r) && !isASCIIDigit(r) && r != '.' && r != '-' {
			return false
		}
	}
	tld := host[dot+1:]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if !isASCIILetter(r) {
			return false
		}
	}
	return true
}

func isCleanPath(path string) bool {
	for _, r := range path {
		if unicode.IsSpace(r) || r == '\\' {
			return false
		}
	}
	return true
}

// hasTraversal reports whether raw contains ".." anywhere
func hasTraversal(raw string) bool {
	return strings.Contains(raw, "..")
}

// hasValidEscapes requires every '%' to be followed by exactly two hex
// digits. A third hex digit directly after the pair also fails, so
// "%badpercent" is rejected even though "%ba" alone would decode.
func hasValidEscapes(raw string) bool {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '%' {
			continue
		}
		if i+2 >= len(raw) || !isHex(raw[i+1]) || !isHex(raw[i+2]) {
			return false
		}
		if i+3 < len(raw) && isHex(raw[i+3]) {
			return false
		}
		i += 2
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isASCIIDigit(r) {
			return false
		}
	}
	return true
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
