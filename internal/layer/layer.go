// Package layer defines the catalog's data model: layers, their property
// schema and the RDF prefix mappings used when rendering them.
package layer

import (
	"regexp"
	"strings"
	"time"
)

// NamePattern matches valid layer names: dot-separated word segments.
var NamePattern = regexp.MustCompile(`^\w+(\.\w+)*$`)

// Layer is a named, owned geospatial dataset
type Layer struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	Organization string    `json:"organization"`
	OwnerEmail   string    `json:"owner_email"`
	DataSources  []string  `json:"data_sources,omitempty"`
	SampleURL    string    `json:"sample_url,omitempty"`
	Realtime     bool      `json:"realtime"`
	UpdateRate   *int64    `json:"update_rate,omitempty"`
	Validity     string    `json:"validity,omitempty"`
	Webservice   string    `json:"webservice,omitempty"`
	BBox         []byte    `json:"bbox,omitempty"`
	ImportedAt   time.Time `json:"imported_at"`
}

// Property describes one typed field of a layer's schema
type Property struct {
	ID      int64  `json:"id"`
	LayerID int64  `json:"layer_id"`
	Key     string `json:"key"`
	Type    string `json:"type"`
	Unit    string `json:"unit,omitempty"`
	Lang    string `json:"lang,omitempty"`
	EqProp  string `json:"eqprop,omitempty"`
	Descr   string `json:"descr,omitempty"`
}

// PrefixMapping maps an RDF prefix token such as "rdf:" to its namespace URL
type PrefixMapping struct {
	Prefix string `json:"prefix"`
	URL    string `json:"url"`
}

// DataSourceValue returns the externally visible part of a data source.
// Sources of the form key=value expose only the value; the split happens
// on the first '='.
func DataSourceValue(source string) string {
	if _, value, ok := strings.Cut(source, "="); ok {
		return value
	}
	return source
}

// DataSourceValues returns the de-prefixed data sources, never nil
func (l *Layer) DataSourceValues() []string {
	values := make([]string, 0, len(l.DataSources))
	for _, s := range l.DataSources {
		values = append(values, DataSourceValue(s))
	}
	return values
}

// HasGeometry reports whether a bounding box is stored for the layer
func (l *Layer) HasGeometry() bool {
	return len(l.BBox) > 0
}
