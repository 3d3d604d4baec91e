package studio

import (
	"net/url"
	"strings"
)

type Mode string

const (
	ModeURL  Mode = "url"
	ModeText Mode = "text"
)

// schemes that only make sense with an authority component
var hostSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ws":    true,
	"wss":   true,
	"ftp":   true,
}

func ContentFromInputs(primary, secondary string) string {
	if p := strings.TrimSpace(primary); p != "" {
		return p
	}
	if s := strings.TrimSpace(secondary); s != "" {
		return s
	}
	return Example
}

// Classify reports whether content parses as an absolute URL. The result
// only drives status labels; encoding is the same either way.
func Classify(content string) Mode {
	u, err := url.Parse(content)
	if err != nil || !u.IsAbs() {
		return ModeText
	}

	if hostSchemes[strings.ToLower(u.Scheme)] && !validHost(authority(u)) {
		return ModeText
	}

	return ModeURL
}

// authority is the host of u, or for "http:example.com" and "https:/x"
// the first segment after the scheme.
func authority(u *url.URL) string {
	if u.Host != "" {
		return u.Host
	}
	rest := u.Opaque
	if rest == "" {
		rest = u.Path
	}
	rest = strings.TrimLeft(rest, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func validHost(host string) bool {
	return host != "" && !strings.ContainsAny(host, " \t\r\n")
}
