package config

import (
	"testing"
	"time"
)

func TestParseSourceWeights(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]float64
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "single pair",
			input: "faers=0.6",
			want:  map[string]float64{"faers": 0.6},
		},
		{
			name:  "multiple pairs with spaces",
			input: "faers=0.6, SIDER=0.9",
			want:  map[string]float64{"faers": 0.6, "sider": 0.9},
		},
		{
			name:  "malformed entries skipped",
			input: "faers=0.6,broken,ctd=high,string=1.5",
			want:  map[string]float64{"faers": 0.6},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseSourceWeights(tc.input)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Fatalf("weight %s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestClampIterations(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 1},
		{-3, 1},
		{1, 1},
		{5, 5},
		{10, 10},
		{42, 10},
	}
	for _, tc := range tests {
		if got := clampIterations(tc.in); got != tc.want {
			t.Fatalf("clampIterations(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.MaxIterations != defaultMaxIterations {
		t.Fatalf("MaxIterations = %d", cfg.MaxIterations)
	}
	if cfg.TruncationCap != defaultTruncationCap {
		t.Fatalf("TruncationCap = %d", cfg.TruncationCap)
	}
	if cfg.LLMTimeout != 60*time.Second || cfg.ToolTimeout != 30*time.Second {
		t.Fatalf("timeouts = %v / %v", cfg.LLMTimeout, cfg.ToolTimeout)
	}
	if cfg.UseSourceWeights {
		t.Fatal("source weights must default off")
	}
	if cfg.Planner.Temperature != 0.1 {
		t.Fatalf("planner temperature = %v", cfg.Planner.Temperature)
	}
	if cfg.Planner.MaxTokens != 4096 || cfg.Narrator.MaxTokens != 8192 {
		t.Fatalf("token budgets = %d / %d", cfg.Planner.MaxTokens, cfg.Narrator.MaxTokens)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://localhost/kg", LLMProvider: "openai"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.DatabaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database url")
	}

	cfg.DatabaseURL = "postgres://localhost/kg"
	cfg.LLMProvider = "claudette"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
