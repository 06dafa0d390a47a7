package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want Action
	}{
		{
			name: "navigate",
			yaml: `
kind: navigate
url: https://example.com
wait_for_selector: "#main"
session: shop
`,
			want: Navigate{URL: "https://example.com", WaitForSelector: "#main", Session: "shop"},
		},
		{
			name: "type",
			yaml: `
kind: type
selector: textarea[name="q"]
text: playwright github
description: enter query
`,
			want: Type{Selector: `textarea[name="q"]`, Text: "playwright github", Description: "enter query"},
		},
		{
			name: "wait with duration",
			yaml: `
kind: wait
selector: .results
state: attached
timeout: 2s
`,
			want: Wait{Selector: ".results", State: "attached", Timeout: 2 * time.Second},
		},
		{
			name: "kind is case insensitive",
			yaml: `
kind: Extract
selector: h3
max_length: 200
`,
			want: Extract{Selector: "h3", MaxLength: 200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing kind", "url: https://example.com", "kind is required"},
		{"unknown kind", "kind: scroll", `unknown kind "scroll"`},
		{"invalid fields", "kind: click", "selector is required"},
		{"malformed yaml", "kind: [navigate", "invalid action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidAction)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	actions := []Action{
		Navigate{URL: "https://example.com", WaitUntil: "load", Session: "s"},
		Click{Selector: "#go", Description: "submit"},
		Type{Selector: "#q", Text: "hello"},
		Extract{Selector: "p", MaxLength: 50},
		Wait{Selector: "#x", State: "hidden", Timeout: time.Second},
	}

	for _, a := range actions {
		t.Run(string(a.Kind()), func(t *testing.T) {
			spec := Encode(a)
			assert.Equal(t, a.Kind(), spec.Kind)

			back, err := Decode(spec)
			require.NoError(t, err)
			assert.Equal(t, a, back)
		})
	}
}
