package serialize

import "github.com/citysdk/layercatalog/internal/vocabulary"

// TurtleContext collects what one Turtle rendering referenced. Each call
// gets its own context, so concurrent renderings share nothing.
type TurtleContext struct {
	prefixes []string
	seen     map[string]struct{}
}

// NewTurtleContext returns an empty context
func NewTurtleContext() *TurtleContext {
	return &TurtleContext{seen: make(map[string]struct{})}
}

// Use records a prefix token such as "foaf:"
func (c *TurtleContext) Use(prefix string) {
	if _, ok := c.seen[prefix]; ok {
		return
	}
	c.seen[prefix] = struct{}{}
	c.prefixes = append(c.prefixes, prefix)
}

// UseToken records the prefix of a compact IRI, if it has one
func (c *TurtleContext) UseToken(token string) {
	if prefix, ok := vocabulary.PrefixOf(token); ok {
		c.Use(prefix)
	}
}

// Prefixes returns the referenced prefixes in first-use order
func (c *TurtleContext) Prefixes() []string {
	out := make([]string, len(c.prefixes))
	copy(out, c.prefixes)
	return out
}
