package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/modfin/vetter/internal/generate"
	"github.com/modfin/vetter/internal/scoring"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{name: "Weights not summing to one", mutate: func(c *Config) { c.Weights = scoring.Weights{Relevance: 0.5, Accuracy: 0.5, Completeness: 0.5} }, want: ErrInvalidWeights},
		{name: "Negative weight", mutate: func(c *Config) { c.Weights = scoring.Weights{Relevance: 1.2, Accuracy: -0.2} }, want: ErrInvalidWeights},
		{name: "Temperature too high", mutate: func(c *Config) { c.Generation.Temperature = generate.Float(1.5) }, want: ErrInvalidTemperature},
		{name: "Max below min", mutate: func(c *Config) { c.Criteria.MaxLength = 10 }, want: ErrInvalidCriteria},
		{name: "Ideal length zero", mutate: func(c *Config) { c.IdealLength = 0 }, want: ErrInvalidCriteria},
		{name: "Custom weights", mutate: func(c *Config) { c.Weights = scoring.Weights{Relevance: 0.5, Accuracy: 0.3, Completeness: 0.2} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vetter.yaml")
	data := `
generation:
  temperature: 0.3
criteria:
  min_length: 10
  prohibited_elements: ["guaranteed"]
weights:
  relevance: 0.5
  accuracy: 0.3
  completeness: 0.2
rules:
  brand_safety: false
  blocked_terms: ["scam"]
seed: 42
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if *cfg.Generation.Temperature != 0.3 {
		t.Errorf("temperature = %v", *cfg.Generation.Temperature)
	}
	if cfg.Generation.MaxTokens != 1024 {
		t.Errorf("unset keys must keep defaults, max tokens = %d", cfg.Generation.MaxTokens)
	}
	if cfg.Criteria.MinLength != 10 || cfg.Criteria.MaxLength != 4000 {
		t.Errorf("criteria not overlaid: %+v", cfg.Criteria)
	}
	if cfg.Weights.Relevance != 0.5 || cfg.Rules.BrandSafety || cfg.Seed != 42 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}

	if err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("VETTER_TEST_VALUE=from-env-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VETTER_TEST_VALUE", "")
	os.Unsetenv("VETTER_TEST_VALUE")

	if err := LoadEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv error: %v", err)
	}
	if got := os.Getenv("VETTER_TEST_VALUE"); got != "from-env-file" {
		t.Errorf("VETTER_TEST_VALUE = %q", got)
	}
}
