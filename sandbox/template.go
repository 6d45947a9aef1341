package sandbox

import "strings"

// ResolveTemplate replaces every {{ expression }} placeholder in tmpl
// with the stringified result of evaluating expression against env
// (§4.4 result/output node handling, §8 scenario 6). A placeholder
// whose expression fails to parse or evaluate is left untouched — the
// original "{{ ... }}" substring is preserved — rather than dropping it
// to an empty string or aborting the whole template.
func ResolveTemplate(tmpl string, env map[string]any) string {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:start])
		rest = rest[start+2:]

		end := strings.Index(rest, "}}")
		if end == -1 {
			// Unterminated placeholder: emit the rest verbatim.
			b.WriteString("{{")
			b.WriteString(rest)
			return b.String()
		}

		raw := rest[:end]
		v, err := Evaluate(strings.TrimSpace(raw), env)
		if err == nil {
			b.WriteString(stringify(v))
		} else {
			b.WriteString("{{")
			b.WriteString(raw)
			b.WriteString("}}")
		}
		rest = rest[end+2:]
	}
}
