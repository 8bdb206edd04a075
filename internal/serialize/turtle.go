package serialize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/citysdk/layercatalog/internal/layer"
	"github.com/citysdk/layercatalog/internal/vocabulary"
)

func (s *Serializer) encodeTurtle(ctx context.Context, docs []LayerDocument, params Params, _ Request) ([]byte, error) {
	tc := NewTurtleContext()

	var body []string
	for _, doc := range docs {
		triples, err := s.LayerTriples(doc, params, tc)
		if err != nil {
			return nil, err
		}
		body = append(body, triples...)
	}

	lines := s.preamble(ctx, tc)
	lines = append(lines, "")
	lines = append(lines, body...)
	return []byte(strings.Join(lines, "\n")), nil
}

// preamble emits @base, the default prefix and one @prefix line per
// prefix referenced in tc
func (s *Serializer) preamble(ctx context.Context, tc *TurtleContext) []string {
	lines := []string{
		fmt.Sprintf("@base <%s%s/> .", s.config.BaseURI, s.config.EndpointCode),
		fmt.Sprintf("@prefix : <%s> .", s.config.BaseURI),
	}

	for _, prefix := range tc.Prefixes() {
		url, ok := s.namespace(ctx, prefix)
		if !ok {
			s.logger.Warn("no namespace registered for prefix", zap.String("prefix", prefix))
			continue
		}
		lines = append(lines, fmt.Sprintf("@prefix %s <%s> .", prefix, url))
	}
	return lines
}

// namespace prefers the prefixes table and falls back to the standard
// vocabularies
func (s *Serializer) namespace(ctx context.Context, prefix string) (string, bool) {
	if s.prefixes != nil {
		m, err := s.prefixes.Prefix(ctx, prefix)
		if err == nil && m != nil && m.URL != "" {
			return m.URL, true
		}
		if err != nil {
			s.logger.Debug("prefix lookup failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
	return vocabulary.StandardNamespace(prefix)
}

// LayerTriples renders one layer as a Turtle statement block ending in
// " ." followed by an empty separator line. Referenced prefixes are
// recorded in tc.
func (s *Serializer) LayerTriples(doc LayerDocument, params Params, tc *TurtleContext) ([]string, error) {
	l := doc.Layer

	tc.Use(vocabulary.RDF)
	tc.Use(vocabulary.RDFS)
	tc.Use(vocabulary.FOAF)

	triples := []string{
		fmt.Sprintf("<layer/%s>", l.Name),
		"  a :Layer ;",
		"  rdfs:description " + Literal(strings.TrimSpace(l.Description)) + " ;",
		"  :createdBy [",
		"    foaf:name " + Literal(strings.TrimSpace(l.Organization)) + " ;",
		"    foaf:mbox " + Literal(strings.TrimSpace(l.OwnerEmail)),
		"  ] ;",
	}

	for _, source := range l.DataSources {
		triples = append(triples, "  :dataSource "+Literal(layer.DataSourceValue(source))+" ;")
	}

	for _, p := range doc.Properties {
		triples = append(triples, "  :hasDataField [")
		for _, line := range PropertyTurtle(p, tc) {
			triples = append(triples, "    "+line)
		}
		triples = append(triples, "  ] ;")
	}

	wkt, ok, err := s.geometry.WKT(l.BBox, params.IncludeGeometry)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", l.Name, err)
	}
	if ok {
		tc.Use(vocabulary.GEOS)
		triples = append(triples, "  geos:hasGeometry "+Literal(wkt)+" ;")
	}

	last := len(triples) - 1
	triples[last] = strings.TrimSuffix(triples[last], ";") + "."
	triples = append(triples, "")

	return triples, nil
}
