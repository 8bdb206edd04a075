package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// layerETag is a strong validator over a rendered layer document
func layerETag(body []byte) string {
	hash := sha256.Sum256(body)
	return `"` + hex.EncodeToString(hash[:16]) + `"`
}

// parseIfNoneMatch splits an If-None-Match header into its entity tags
func parseIfNoneMatch(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if header == "*" {
		return []string{"*"}
	}

	var tags []string
	for _, part := range strings.Split(header, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// notModified reports whether the client already holds etag. Comparison
// is weak, so a W/ prefix on either side is ignored.
func notModified(r *http.Request, etag string) bool {
	tags := parseIfNoneMatch(r.Header.Get("If-None-Match"))
	if len(tags) == 1 && tags[0] == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range tags {
		if strings.TrimPrefix(tag, "W/") == want {
			return true
		}
	}
	return false
}
