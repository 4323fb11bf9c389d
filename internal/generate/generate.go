package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/goccy/go-json"
	"github.com/modfin/henry/slicez"
	"github.com/modfin/vetter/internal/answer"
	"github.com/modfin/vetter/internal/scoring"
	"github.com/modfin/vetter/internal/validate"
)

var (
	ErrEmptyQuery     = errors.New("query is empty")
	ErrMissingQueryID = errors.New("query id is missing")
)

// Citation is a source the provider claims the answer is based on.
type Citation struct {
	Title  string `json:"title,omitempty"`
	Source string `json:"source,omitempty"`
	Quote  string `json:"quote,omitempty"`
}

type Completion struct {
	Text      string
	Provider  string
	Metadata  map[string]string
	Citations []Citation
}

type CompleteOptions struct {
	// Model is given as "Provider/name", empty means the client default.
	Model       string
	MaxTokens   int
	Temperature float64
	Citations   bool
}

// ProviderClient produces text for a prompt. Timeouts belong to the client.
type ProviderClient interface {
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (Completion, error)
}

// Options are per request generation options; nil and zero fields fall back
// to the generator defaults.
type Options struct {
	Provider        string   `yaml:"provider"`
	MaxTokens       int      `yaml:"max_tokens"`
	Temperature     *float64 `yaml:"temperature"`
	IncludeMetadata *bool    `yaml:"include_metadata"`
	ValidateAnswer  *bool    `yaml:"validate_answer"`
}

func DefaultOptions() Options {
	return Options{
		Provider:        "OpenAI/gpt-4o-mini",
		MaxTokens:       1024,
		Temperature:     Float(0.7),
		IncludeMetadata: Bool(true),
		ValidateAnswer:  Bool(false),
	}
}

func Bool(b bool) *bool        { return &b }
func Float(f float64) *float64 { return &f }

func deref[T any](p *T) T {
	var t T
	if p != nil {
		t = *p
	}
	return t
}

// WithDefaults fills unset fields from def.
func (o Options) WithDefaults(def Options) Options {
	if o.Provider == "" {
		o.Provider = def.Provider
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = def.MaxTokens
	}
	if o.Temperature == nil {
		o.Temperature = def.Temperature
	}
	if o.IncludeMetadata == nil {
		o.IncludeMetadata = def.IncludeMetadata
	}
	if o.ValidateAnswer == nil {
		o.ValidateAnswer = def.ValidateAnswer
	}
	return o
}

type Request struct {
	QueryID string
	Query   string
	Options Options
}

// CriteriaChecker is the simple criteria check used by the inline pass.
type CriteriaChecker interface {
	CheckCriteria(content, query string) validate.CriteriaResult
}

type Scorer interface {
	Score(content, query string) scoring.Scores
}

type Generator struct {
	Client   ProviderClient
	Answers  answer.AnswerStore
	Metadata answer.MetadataStore
	Defaults Options

	// Checker and Scorer are only needed for the inline validation pass.
	Checker CriteriaChecker
	Scorer  Scorer

	Logger *slog.Logger
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// Generate asks the provider for an answer and stores it as a pending shell.
// Citation metadata and the inline validation pass are best effort.
func (g *Generator) Generate(ctx context.Context, req Request) (*answer.Answer, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	if req.QueryID == "" {
		return nil, ErrMissingQueryID
	}

	opts := req.Options.WithDefaults(g.Defaults)
	logger := g.logger().With("query_id", req.QueryID, "provider", opts.Provider)

	completion, err := g.Client.Complete(ctx, req.Query, CompleteOptions{
		Model:       opts.Provider,
		MaxTokens:   opts.MaxTokens,
		Temperature: NormalizeTemperature(deref(opts.Temperature)),
		Citations:   deref(opts.IncludeMetadata),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	provider := completion.Provider
	if provider == "" {
		provider = opts.Provider
	}
	a := &answer.Answer{
		QueryID:          req.QueryID,
		Content:          completion.Text,
		Provider:         provider,
		ProviderMetadata: completion.Metadata,
		Status:           answer.StatusPending,
	}
	id, err := g.Answers.CreateShell(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}
	a.ID = id
	logger = logger.With("answer_id", a.ID)
	logger.Debug("answer generated", "len", len(a.Content), "citations", len(completion.Citations))

	if deref(opts.IncludeMetadata) && len(completion.Citations) > 0 {
		entries := slicez.Map(completion.Citations, citationEntry)
		if err := g.Metadata.AppendMany(ctx, a.ID, entries); err != nil {
			logger.Warn("failed to store citation metadata", "err", err)
		}
	}

	if deref(opts.ValidateAnswer) {
		g.validateInline(ctx, logger, a, req.Query)
	}

	return a, nil
}

// validateInline runs the criteria check and pure scoring to give the answer
// a preliminary status. Failures leave the answer pending.
func (g *Generator) validateInline(ctx context.Context, logger *slog.Logger, a *answer.Answer, query string) {
	if g.Checker == nil || g.Scorer == nil {
		logger.Warn("inline validation requested without checker or scorer")
		return
	}

	res := g.Checker.CheckCriteria(a.Content, query)
	s := g.Scorer.Score(a.Content, query)

	if len(res.Reasons) > 0 {
		entries := slicez.Map(res.Reasons, func(reason string) answer.MetadataEntry {
			return answer.MetadataEntry{Key: "validation_reason", Value: reason}
		})
		if err := g.Metadata.AppendMany(ctx, a.ID, entries); err != nil {
			logger.Warn("failed to store validation reasons", "err", err)
		}
	}

	status := answer.StatusValidated
	if !res.IsValid {
		status = answer.StatusRejected
	}
	updated, err := g.Answers.UpdateFinal(ctx, a.ID, answer.Final{
		RelevanceScore:    s.Relevance,
		AccuracyScore:     s.Accuracy,
		CompletenessScore: s.Completeness,
		OverallScore:      s.Overall,
		IsValidated:       true,
		Status:            status,
	})
	if err != nil {
		logger.Warn("inline validation failed", "err", err)
		return
	}
	*a = *updated
	logger.Debug("inline validation", "valid", res.IsValid, "overall", s.Overall)
}

// NormalizeTemperature clamps t into [0, 1]. NaN becomes 0.
func NormalizeTemperature(t float64) float64 {
	if math.IsNaN(t) {
		return 0
	}
	return math.Max(0, math.Min(1, t))
}

func citationEntry(c Citation) answer.MetadataEntry {
	data, err := json.Marshal(c)
	if err != nil {
		data = []byte(c.Source)
	}
	return answer.MetadataEntry{Key: "citation", Value: string(data)}
}
