package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/citysdk/layercatalog/internal/serialize"
)

// negotiateFormat picks the output format from ?format= (an alias or a
// MIME type), else the first supported Accept entry. No preference means
// JSON.
func negotiateFormat(r *http.Request) (serialize.Format, error) {
	if value := strings.TrimSpace(r.URL.Query().Get("format")); value != "" {
		return serialize.ParseFormatName(value)
	}

	accept := r.Header.Get("Accept")
	if strings.TrimSpace(accept) == "" {
		return serialize.FormatJSON, nil
	}

	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(part)
		if i := strings.Index(mediaType, ";"); i >= 0 {
			mediaType = strings.TrimSpace(mediaType[:i])
		}
		switch mediaType {
		case "*/*", "application/*":
			return serialize.FormatJSON, nil
		case "text/*":
			return serialize.FormatTurtle, nil
		}
		if f, err := serialize.ParseFormat(mediaType); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", serialize.ErrUnsupportedFormat, accept)
}

// layerTokens splits the comma-separated name parameter
func layerTokens(value string) []string {
	var tokens []string
	for _, token := range strings.Split(value, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// requestURL rebuilds the absolute URL of r for the response envelope
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
