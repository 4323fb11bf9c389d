package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"github.com/joho/godotenv"
	"github.com/modfin/vetter/internal/generate"
	"github.com/modfin/vetter/internal/scoring"
	"github.com/modfin/vetter/internal/validate"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidWeights     = errors.New("scoring weights must sum to 1.0")
	ErrInvalidTemperature = errors.New("temperature must be within [0, 1]")
	ErrInvalidCriteria    = errors.New("invalid validation criteria")
)

const weightTolerance = 1e-6

type Config struct {
	Generation  generate.Options  `yaml:"generation"`
	Criteria    validate.Criteria `yaml:"criteria"`
	Weights     scoring.Weights   `yaml:"weights"`
	IdealLength int               `yaml:"ideal_length"`
	Rules       Rules             `yaml:"rules"`

	Parallel int `yaml:"parallel"`
	// Seed makes scoring noise and temperature jitter reproducible; 0 seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

// Rules selects which validation rules beyond relevance are registered.
type Rules struct {
	Completeness bool `yaml:"completeness"`
	Citation     bool `yaml:"citation"`
	BrandSafety  bool `yaml:"brand_safety"`
	Semantic     bool `yaml:"semantic"`

	BlockedTerms      []string `yaml:"blocked_terms"`
	CautionTerms      []string `yaml:"caution_terms"`
	SemanticThreshold float64  `yaml:"semantic_threshold"`
	EmbedModel        string   `yaml:"embed_model"`
}

func Default() Config {
	return Config{
		Generation:  generate.DefaultOptions(),
		Criteria:    validate.DefaultCriteria(),
		Weights:     scoring.DefaultWeights(),
		IdealLength: scoring.DefaultIdealLength,
		Rules: Rules{
			Completeness: true,
			Citation:     true,
			BrandSafety:  true,
			EmbedModel:   "OpenAI/text-embedding-3-small",
		},
		Parallel: 1,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current value.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// LoadEnv loads .env style files into the process environment. Missing
// files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

func (c Config) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > weightTolerance {
		return fmt.Errorf("%w, got %.4f (relevance %.2f, accuracy %.2f, completeness %.2f)", ErrInvalidWeights,
			c.Weights.Sum(), c.Weights.Relevance, c.Weights.Accuracy, c.Weights.Completeness)
	}
	for name, w := range map[string]float64{"relevance": c.Weights.Relevance, "accuracy": c.Weights.Accuracy, "completeness": c.Weights.Completeness} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%w, %s weight %.2f outside [0, 1]", ErrInvalidWeights, name, w)
		}
	}

	if t := c.Generation.Temperature; t != nil && (math.IsNaN(*t) || *t < 0 || *t > 1) {
		return fmt.Errorf("%w, got %v", ErrInvalidTemperature, *t)
	}

	if c.Criteria.MinLength < 0 || c.Criteria.MinCitations < 0 {
		return fmt.Errorf("%w: negative minimum", ErrInvalidCriteria)
	}
	if c.Criteria.MaxLength > 0 && c.Criteria.MaxLength < c.Criteria.MinLength {
		return fmt.Errorf("%w: max length %d below min length %d", ErrInvalidCriteria, c.Criteria.MaxLength, c.Criteria.MinLength)
	}
	if c.IdealLength <= 0 {
		return fmt.Errorf("%w: ideal length must be positive", ErrInvalidCriteria)
	}
	if c.Rules.Semantic && c.Rules.EmbedModel == "" {
		return fmt.Errorf("semantic rule enabled without an embed model")
	}
	return nil
}
