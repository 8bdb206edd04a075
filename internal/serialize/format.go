package serialize

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

// Format is an output format the serializer can produce
type Format int

const (
	// FormatJSON renders the JSON envelope (application/json)
	FormatJSON Format = iota
	// FormatTurtle renders RDF Turtle (text/turtle)
	FormatTurtle
)

const (
	mimeJSON   = "application/json"
	mimeTurtle = "text/turtle"
)

// ErrUnsupportedFormat is returned for MIME types without an encoder
var ErrUnsupportedFormat = errors.New("unsupported output format")

// String returns the MIME type of the format
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return mimeJSON
	case FormatTurtle:
		return mimeTurtle
	default:
		return "unknown"
	}
}

// ContentType returns the Content-Type header value for the format
func (f Format) ContentType() string {
	return f.String() + "; charset=utf-8"
}

// ParseFormat maps a MIME type (parameters are ignored) to a Format
func ParseFormat(value string) (Format, error) {
	mediaType := strings.TrimSpace(value)
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}

	switch strings.ToLower(mediaType) {
	case mimeJSON:
		return FormatJSON, nil
	case mimeTurtle:
		return FormatTurtle, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}

var formatNames = map[string]Format{
	"json":   FormatJSON,
	"turtle": FormatTurtle,
	"ttl":    FormatTurtle,
}

// ParseFormatName accepts a short name (json, turtle, ttl) or a MIME type
func ParseFormatName(value string) (Format, error) {
	if f, ok := formatNames[strings.ToLower(strings.TrimSpace(value))]; ok {
		return f, nil
	}
	return ParseFormat(value)
}
