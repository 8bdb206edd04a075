package serialize

import "strings"

var (
	shortEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", `\r`)
	longEscaper  = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// Literal quotes s as a Turtle string literal. Multi-line text uses the
// triple-quoted long form; everything else the single-quoted short form.
// Backslashes and double quotes are escaped in both.
func Literal(s string) string {
	if strings.Contains(s, "\n") {
		return `"""` + longEscaper.Replace(s) + `"""`
	}
	return `"` + shortEscaper.Replace(s) + `"`
}
