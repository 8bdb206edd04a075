// Package vocabulary names the RDF prefixes the catalog emits and the
// standard namespaces they stand for.
//
// References:
// - RDF / RDFS: https://www.w3.org/TR/rdf-schema/
// - OWL: https://www.w3.org/TR/owl2-overview/
// - FOAF: http://xmlns.com/foaf/spec/
// - GeoSPARQL: https://www.ogc.org/standards/geosparql
package vocabulary

import (
	"regexp"
	"strings"
)

// Prefix tokens as they appear in Turtle output
const (
	RDF  = "rdf:"
	RDFS = "rdfs:"
	FOAF = "foaf:"
	GEOS = "geos:"
	OWL  = "owl:"
	XSD  = "xsd:"
)

// Standard namespace IRIs
const (
	RDFNamespace  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNamespace = "http://www.w3.org/2000/01/rdf-schema#"
	FOAFNamespace = "http://xmlns.com/foaf/0.1/"
	GEOSNamespace = "http://www.opengis.net/ont/geosparql#"
	OWLNamespace  = "http://www.w3.org/2002/07/owl#"
	XSDNamespace  = "http://www.w3.org/2001/XMLSchema#"
)

var standard = map[string]string{
	RDF:  RDFNamespace,
	RDFS: RDFSNamespace,
	FOAF: FOAFNamespace,
	GEOS: GEOSNamespace,
	OWL:  OWLNamespace,
	XSD:  XSDNamespace,
}

// StandardNamespace returns the well-known namespace of a prefix token
func StandardNamespace(prefix string) (string, bool) {
	ns, ok := standard[prefix]
	return ns, ok
}

// Standard returns a copy of the well-known prefix to namespace mappings
func Standard() map[string]string {
	out := make(map[string]string, len(standard))
	for prefix, ns := range standard {
		out[prefix] = ns
	}
	return out
}

var curie = regexp.MustCompile(`^([A-Za-z][\w-]*:)[^/]`)

// PrefixOf extracts the prefix token of a compact IRI such as
// "xsd:integer". Absolute IRIs ("http://...") and plain words have none.
func PrefixOf(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if strings.Contains(token, "://") {
		return "", false
	}
	m := curie.FindStringSubmatch(token)
	if m == nil {
		return "", false
	}
	return m[1], true
}
