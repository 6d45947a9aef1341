package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTemplateSubstitutesExpressions(t *testing.T) {
	env := map[string]any{"start.city": "Lisbon", "start.temp": float64(24)}

	out := ResolveTemplate("Weather for {{start.city}}: {{start.temp}}C", env)
	assert.Equal(t, "Weather for Lisbon: 24C", out)
}

func TestResolveTemplateNoPlaceholders(t *testing.T) {
	out := ResolveTemplate("plain text", nil)
	assert.Equal(t, "plain text", out)
}

func TestResolveTemplatePreservesPlaceholderOnFailure(t *testing.T) {
	out := ResolveTemplate("value: {{unbound.ident}}", nil)
	assert.Equal(t, "value: {{unbound.ident}}", out)
}

func TestResolveTemplatePreservesOnlyFailingPlaceholder(t *testing.T) {
	env := map[string]any{"start.city": "Lisbon"}
	out := ResolveTemplate("{{start.city}} / {{unbound.ident}}", env)
	assert.Equal(t, "Lisbon / {{unbound.ident}}", out)
}

func TestResolveTemplateUnterminatedPlaceholder(t *testing.T) {
	out := ResolveTemplate("prefix {{unterminated", nil)
	assert.Equal(t, "prefix {{unterminated", out)
}
