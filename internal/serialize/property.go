package serialize

import (
	"regexp"

	"github.com/citysdk/layercatalog/internal/layer"
	"github.com/citysdk/layercatalog/internal/vocabulary"
)

var numericType = regexp.MustCompile(`(integer|float|double)`)

const stringType = "xsd:string"

// Field is the JSON rendering of a layer property
type Field struct {
	Key                string `json:"key"`
	Type               string `json:"type"`
	ValueUnit          string `json:"valueUnit,omitempty"`
	ValueLanguange     string `json:"valueLanguange,omitempty"`
	EquivalentProperty string `json:"equivalentProperty,omitempty"`
	Description        string `json:"description,omitempty"`
}

func hasUnit(p *layer.Property) bool {
	return numericType.MatchString(p.Type) && p.Unit != ""
}

func hasLanguage(p *layer.Property) bool {
	return p.Lang != "" && p.Type == stringType
}

// PropertyJSON renders a property as a JSON field
func PropertyJSON(p *layer.Property) Field {
	f := Field{
		Key:  p.Key,
		Type: p.Type,
	}
	if hasUnit(p) {
		f.ValueUnit = p.Unit
	}
	if hasLanguage(p) {
		f.ValueLanguange = p.Lang
	}
	if p.EqProp != "" {
		f.EquivalentProperty = p.EqProp
	}
	if p.Descr != "" {
		f.Description = p.Descr
	}
	return f
}

// PropertyTurtle renders the predicate lines of a property node. Every
// line but the last ends in " ;". Key, type and unit are emitted as-is.
func PropertyTurtle(p *layer.Property, tc *TurtleContext) []string {
	tc.Use(vocabulary.RDFS)
	tc.UseToken(p.Key)
	tc.UseToken(p.Type)

	lines := []string{
		"rdfs:label " + p.Key,
		":valueType " + p.Type,
	}
	if hasUnit(p) {
		tc.UseToken(p.Unit)
		lines = append(lines, ":valueUnit "+p.Unit)
	}
	if hasLanguage(p) {
		lines = append(lines, ":valueLanguange "+Literal(p.Lang))
	}
	if p.EqProp != "" {
		tc.Use(vocabulary.OWL)
		lines = append(lines, "owl:equivalentProperty "+Literal(p.EqProp))
	}
	if p.Descr != "" {
		lines = append(lines, "rdfs:description "+Literal(p.Descr))
	}

	for i := 0; i < len(lines)-1; i++ {
		lines[i] += " ;"
	}
	return lines
}
