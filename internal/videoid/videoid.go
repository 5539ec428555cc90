package videoid

import (
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Hosts accepted as YouTube. Key: input host. Value: canonical domain.
//
// Keep this intentionally conservative: anything not listed here is rejected
// before we spend a subprocess on it.
var canonicalDomainByHost = map[string]string{
	"youtube.com":              "youtube.com",
	"www.youtube.com":          "youtube.com",
	"m.youtube.com":            "youtube.com",
	"music.youtube.com":        "youtube.com",
	"www.youtube-nocookie.com": "youtube.com",
	"youtu.be":                 "youtube.com",
}

// ResolveCanonicalDomain returns the canonical domain for host.
//
// host should be a hostname without port.
func ResolveCanonicalDomain(host string) string {
	h := normalizeHost(host)
	if h == "" {
		return ""
	}
	if c, ok := canonicalDomainByHost[h]; ok {
		return c
	}
	return h
}

// NamespaceUUIDForDomain returns a deterministic UUIDv5 namespace for a domain.
// Example: uuid.NewSHA1(uuid.NameSpaceDNS, []byte("youtube.com")).
func NamespaceUUIDForDomain(domain string) uuid.UUID {
	d := strings.TrimSpace(strings.ToLower(domain))
	d = strings.TrimSuffix(d, ".")
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(d))
}

// VideoUUID returns a deterministic UUIDv5 for a (domain, videoID) pair.
//
// The name string is exactly "{videoID}"; the domain is already scoped by the namespace.
func VideoUUID(domain string, videoID string) uuid.UUID {
	d := strings.TrimSpace(strings.ToLower(domain))
	d = strings.TrimSuffix(d, ".")
	v := strings.TrimSpace(videoID)

	ns := NamespaceUUIDForDomain(d)
	return uuid.NewSHA1(ns, []byte(v))
}

// IsValidYouTubeURL reports whether raw is an absolute http(s) URL on a known
// YouTube host from which a well-formed video ID can be extracted.
// It never touches the network.
func IsValidYouTubeURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if _, ok := canonicalDomainByHost[normalizeHost(u.Host)]; !ok {
		return false
	}
	id, err := ExtractYouTubeVideoID(raw)
	if err != nil {
		return false
	}
	return isValidID(id)
}

// NormalizeSourceURL normalizes a YouTube URL to https://youtube.com/watch?v={id}.
//
// Fragments, userinfo, playlist and tracking parameters are dropped. The
// canonical domain is returned alongside the URL.
func NormalizeSourceURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.New("missing url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return "", "", err
		}
	}

	canon := ResolveCanonicalDomain(u.Host)
	if canon != "youtube.com" {
		return "", "", errors.New("not a youtube url")
	}

	// The ID has to come out before the host is rewritten (youtu.be keeps it in the path).
	id, err := ExtractYouTubeVideoID(u.String())
	if err != nil {
		return "", "", err
	}

	n := url.URL{
		Scheme:   "https",
		Host:     canon,
		Path:     "/watch",
		RawQuery: "v=" + url.QueryEscape(id),
	}
	return n.String(), canon, nil
}

func normalizeHost(hostport string) string {
	h := strings.TrimSpace(strings.ToLower(hostport))
	if h == "" {
		return ""
	}
	// url.URL.Host may include port.
	if strings.Contains(h, ":") {
		if parsed, err := url.Parse("//" + h); err == nil {
			if parsed.Hostname() != "" {
				h = parsed.Hostname()
			}
		}
	}
	h = strings.TrimSuffix(h, ".")
	return h
}

// ExtractYouTubeVideoID extracts the YouTube video ID from a URL.
// Returns empty string and error if not a valid YouTube URL or ID cannot be extracted.
func ExtractYouTubeVideoID(urlStr string) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return "", errors.New("empty url")
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	host := normalizeHost(u.Host)

	// Handle youtu.be shortlinks
	if host == "youtu.be" {
		id := firstPathSegment(u.Path)
		if id == "" {
			return "", errors.New("not a youtube url or video id not found")
		}
		return id, nil
	}

	if ResolveCanonicalDomain(host) == "youtube.com" {
		// Check for /watch?v= format
		if q := strings.TrimSpace(u.Query().Get("v")); q != "" {
			return q, nil
		}
		for _, prefix := range []string{"/embed/", "/v/", "/shorts/", "/live/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := firstPathSegment(strings.TrimPrefix(u.Path, prefix)); id != "" {
					return id, nil
				}
			}
		}
	}

	return "", errors.New("not a youtube url or video id not found")
}

// ThumbnailURL returns the static hqdefault thumbnail for a video ID.
func ThumbnailURL(videoID string) string {
	if !isValidID(videoID) {
		return ""
	}
	return "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg"
}

func isValidID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func firstPathSegment(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ""
	}
	seg, _, _ := strings.Cut(p, "/")
	return strings.TrimSpace(seg)
}
