package rewrite

import (
	"bufio"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"
)

// IsManifestResponse reports whether an upstream response should be treated
// as rewritable manifest text. A response qualifies when its Content-Type
// carries an HLS MIME marker or the target URL's path ends in .m3u8;
// everything else is opaque binary (segments, keys, thumbnails).
func IsManifestResponse(contentType, targetURL string) bool {
	if strings.Contains(strings.ToLower(contentType), "mpegurl") {
		return true
	}

	path := targetURL
	if u, err := url.Parse(targetURL); err == nil {
		path = u.Path
	}
	return strings.HasSuffix(strings.ToLower(path), ".m3u8")
}

// PlaylistKind labels a manifest body as "master", "media" or "unknown".
// The label only feeds metrics, so a body the decoder rejects is simply
// unknown rather than an error.
func PlaylistKind(body string) string {
	_, listType, err := m3u8.DecodeFrom(bufio.NewReader(strings.NewReader(body)), true)
	if err != nil {
		return "unknown"
	}

	switch listType {
	case m3u8.MASTER:
		return "master"
	case m3u8.MEDIA:
		return "media"
	default:
		return "unknown"
	}
}
