package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderString(t *testing.T) {
	context := map[string]any{
		"name":  "Maria",
		"score": 8.5,
		"candidate": map[string]any{
			"cpf": "123.456.789-00",
		},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "sem placeholders", "sem placeholders"},
		{"single placeholder", "Olá {context.name}", "Olá Maria"},
		{"numeric value", "nota: {context.score}", "nota: 8.5"},
		{"nested path", "CPF {context.candidate.cpf}", "CPF 123.456.789-00"},
		{"unknown key renders empty", "x{context.missing}y", "xy"},
		{"multiple placeholders", "{context.name}: {context.score}", "Maria: 8.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderString(tt.input, context))
		})
	}
}

func TestRenderValue_PreservesTypes(t *testing.T) {
	payload := map[string]any{"cpf_valid": true}
	context := map[string]any{"payload": payload, "flag": true}

	assert.Equal(t, payload, RenderValue("{context.payload}", context))
	assert.Equal(t, true, RenderValue("{context.flag}", context))
	assert.Equal(t, "flag=true", RenderValue("flag={context.flag}", context))
	assert.Nil(t, RenderValue("{context.absent}", context))
}

func TestRenderMap_WalksNestedConfig(t *testing.T) {
	context := map[string]any{"email": "maria@example.com", "name": "Maria"}

	config := map[string]any{
		"to":      "{context.email}",
		"subject": "Credenciamento de {context.name}",
		"retries": 3,
		"headers": map[string]any{"X-Candidate": "{context.name}"},
		"tags":    []any{"{context.name}", "edital"},
	}

	rendered := RenderMap(config, context)

	assert.Equal(t, "maria@example.com", rendered["to"])
	assert.Equal(t, "Credenciamento de Maria", rendered["subject"])
	assert.Equal(t, 3, rendered["retries"])
	assert.Equal(t, "Maria", rendered["headers"].(map[string]any)["X-Candidate"])
	assert.Equal(t, "Maria", rendered["tags"].([]any)[0])

	// Source config is not mutated.
	assert.Equal(t, "{context.email}", config["to"])
}
