package llm

import (
	"testing"
)

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	type verdict struct {
		Status     string  `json:"status"`
		Confidence float64 `json:"confidence,omitempty"`
	}

	tests := []struct {
		name  string
		input string
		want  verdict
	}{
		{
			name:  "valid json",
			input: `{"status":"sufficient"}`,
			want:  verdict{Status: "sufficient"},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{status: 'sufficient'}`,
			want:  verdict{Status: "sufficient"},
		},
		{
			name:  "trailing comma",
			input: `{"status":"sufficient",}`,
			want:  verdict{Status: "sufficient"},
		},
		{
			name:  "missing closing brace",
			input: `{"status":"sufficient"`,
			want:  verdict{Status: "sufficient"},
		},
		{
			name:  "double encoded",
			input: `"{\"status\": \"sufficient\"}"`,
			want:  verdict{Status: "sufficient"},
		},
		{
			name:  "code fence",
			input: "```json\n{\"status\":\"sufficient\"}\n```",
			want:  verdict{Status: "sufficient"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"status\": \"sufficient\"\n}\n",
			want:  verdict{Status: "sufficient"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got verdict
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	type verdict struct {
		Status string `json:"status"`
	}
	var got verdict
	if err := UnmarshalFlexible("I cannot answer that.", &got); err == nil {
		t.Fatal("expected error for unrecoverable input")
	}
}

func TestGenerateSchema(t *testing.T) {
	type plan struct {
		Thought string   `json:"thought"`
		Tools   []string `json:"tools"`
	}

	schema := GenerateSchema(&plan{})
	if schema == nil {
		t.Fatal("expected a schema")
	}
}
