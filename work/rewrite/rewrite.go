package rewrite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/grafana/regexp"
)

// uriAttrPattern matches the URI="..." attribute carried by tags such as
// #EXT-X-KEY and #EXT-X-MEDIA. Every occurrence on a line is rewritten
// independently.
var uriAttrPattern = regexp.MustCompile(`URI="([^"]*)"`)

// Rewriter rewrites one fetched manifest so every resource it references
// routes back through the proxy. It is a pure string transform: the base
// URL context is computed once from the manifest's own URL and no HTTP
// state is involved, which keeps the rewrite logic testable on its own.
type Rewriter struct {
	origin  string // scheme://host[:port] of the manifest URL
	baseDir string // origin + directory portion of the manifest path, ends in "/"
	route   string // self-referencing proxy path, e.g. "/api/proxy-manifest"
}

// New builds a Rewriter for a manifest fetched from targetURL. Rewritten
// references point at route with the resolved URL query-escaped into the
// url parameter.
func New(targetURL, route string) (*Rewriter, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("manifest url must be absolute: %s", targetURL)
	}

	origin := u.Scheme + "://" + u.Host

	// base directory is everything up to and including the last slash of
	// the path; a manifest at the root resolves relatives against "/"
	baseDir := origin + "/"
	if idx := strings.LastIndex(u.EscapedPath(), "/"); idx >= 0 {
		baseDir = origin + u.EscapedPath()[:idx+1]
	}

	return &Rewriter{
		origin:  origin,
		baseDir: baseDir,
		route:   route,
	}, nil
}

// Resolve turns a manifest reference into an absolute URL. Absolute
// references pass through verbatim, root-relative ones resolve against the
// origin, and everything else resolves against the manifest's directory.
func (rw *Rewriter) Resolve(ref string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		return rw.origin + ref
	}
	return rw.baseDir + ref
}

// wrap produces the proxy-wrapped form of an already-resolved URL
func (rw *Rewriter) wrap(absolute string) string {
	return rw.route + "?url=" + url.QueryEscape(absolute)
}

// RewriteLine rewrites a single manifest line. Classification happens on
// the trimmed line: blanks and tags without a URI attribute pass through
// unchanged, tags with URI="..." get only the quoted value replaced, and
// every remaining line is a media reference whose whole content is
// replaced by the proxy-wrapped resolved URL.
func (rw *Rewriter) RewriteLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return line
	}

	if strings.HasPrefix(trimmed, "#") {
		return uriAttrPattern.ReplaceAllStringFunc(line, func(match string) string {
			value := match[len(`URI="`) : len(match)-1]
			return `URI="` + rw.wrap(rw.Resolve(value)) + `"`
		})
	}

	return rw.wrap(rw.Resolve(trimmed))
}

// Rewrite rewrites a complete manifest body. Carriage returns are stripped
// first so CRLF playlists classify the same as LF ones, and the result is
// rejoined with plain newlines.
func (rw *Rewriter) Rewrite(body string) string {
	body = strings.ReplaceAll(body, "\r", "")
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = rw.RewriteLine(line)
	}
	return strings.Join(lines, "\n")
}
