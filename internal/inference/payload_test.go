package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "json fence",
			raw:  "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "bare fence",
			raw:  "```\n[1, 2]\n```",
			want: `[1, 2]`,
		},
		{
			name: "leading prose",
			raw:  "Here is the result:\n{\"a\": 1}",
			want: `{"a": 1}`,
		},
		{
			name: "array before object text",
			raw:  "noise [\n{\"a\": 1}\n] trailing",
			want: "[\n{\"a\": 1}\n]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.raw))
		})
	}
}

func TestParsePayloadFieldAccess(t *testing.T) {
	p, err := ParsePayload(`{
		"vendor": "Acme Corp",
		"amount": 42.99,
		"memo": null,
		"confidence": 0.9,
		"items": [{"description": "thing"}]
	}`)
	require.NoError(t, err)

	vendor, err := p.String("vendor")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", vendor)

	amount, err := p.Number("amount")
	require.NoError(t, err)
	assert.Equal(t, 42.99, amount)

	memo, err := p.OptionalString("memo")
	require.NoError(t, err)
	assert.Empty(t, memo)

	items, err := p.Array("items")
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, 0.9, p.Confidence("confidence"))
}

func TestParsePayloadTypeErrors(t *testing.T) {
	p, err := ParsePayload(`{"amount": "not a number", "vendor": 7}`)
	require.NoError(t, err)

	_, err = p.Number("amount")
	assert.Error(t, err)

	_, err = p.String("vendor")
	assert.Error(t, err)

	_, err = p.String("missing")
	assert.Error(t, err)
}

func TestConfidenceClamping(t *testing.T) {
	p := Payload{"hi": 1.7, "lo": -0.2, "bad": "x"}

	assert.Equal(t, 1.0, p.Confidence("hi"))
	assert.Equal(t, 0.0, p.Confidence("lo"))
	assert.Equal(t, 0.0, p.Confidence("bad"))
	assert.Equal(t, 0.0, p.Confidence("absent"))
}

func TestParseArrayPayload(t *testing.T) {
	items, err := ParseArrayPayload("```json\n[{\"a\": 1}, {\"b\": 2}]\n```")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = ParseArrayPayload(`[1, 2]`)
	assert.Error(t, err)
}
