package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/modfin/vetter/internal/answer"
	"github.com/modfin/vetter/internal/textutil"
)

// Weights of the overall score. They are expected to sum to 1.0; the config
// layer enforces that, the engine does not.
type Weights struct {
	Relevance    float64 `yaml:"relevance"`
	Accuracy     float64 `yaml:"accuracy"`
	Completeness float64 `yaml:"completeness"`
}

func DefaultWeights() Weights {
	return Weights{Relevance: 0.4, Accuracy: 0.4, Completeness: 0.2}
}

func (w Weights) Sum() float64 {
	return w.Relevance + w.Accuracy + w.Completeness
}

// Combine is the weighted overall score, rounded to two decimals.
func (w Weights) Combine(relevance, accuracy, completeness float64) float64 {
	return round2(relevance*w.Relevance + accuracy*w.Accuracy + completeness*w.Completeness)
}

type Scores struct {
	Relevance    float64 `json:"relevance"`
	Accuracy     float64 `json:"accuracy"`
	Completeness float64 `json:"completeness"`
	Overall      float64 `json:"overall"`
}

// AccuracyFunc scores factual accuracy in [0, 1].
type AccuracyFunc func(content, query string) (float64, error)

// RandomAccuracy is the placeholder accuracy scorer, uniform in [0.6, 1.0).
func RandomAccuracy(rnd Rand) AccuracyFunc {
	return func(string, string) (float64, error) {
		return 0.6 + rnd.Float64()*0.4, nil
	}
}

const (
	DefaultIdealLength = 500
	DefaultNoise       = 0.3

	lengthWeight    = 0.6
	structureWeight = 0.4
	idealParagraphs = 3
	neutralCoverage = 0.5
)

type Engine struct {
	weights     Weights
	idealLength int
	noise       float64
	rnd         Rand
	accuracy    AccuracyFunc
	store       answer.ScoreStore
	logger      *slog.Logger
}

type Option func(*Engine)

func WithRand(rnd Rand) Option {
	return func(e *Engine) { e.rnd = rnd }
}

// WithAccuracy swaps the accuracy scorer.
func WithAccuracy(fn AccuracyFunc) Option {
	return func(e *Engine) { e.accuracy = fn }
}

func WithIdealLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.idealLength = n
		}
	}
}

// WithNoise sets the share of the random component blended into relevance
// and completeness. Zero makes both deterministic.
func WithNoise(noise float64) Option {
	return func(e *Engine) { e.noise = noise }
}

func NewEngine(store answer.ScoreStore, weights Weights, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		weights:     weights,
		idealLength: DefaultIdealLength,
		noise:       DefaultNoise,
		store:       store,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		e.rnd = NewTimeRand()
	}
	return e
}

// ScoreOption adjusts a single ScoreAndPersist call.
type ScoreOption func(*scoreCall)

type scoreCall struct {
	rnd Rand
}

// UsingRand draws the noise and the default accuracy of one call from rnd
// instead of the engine source.
func UsingRand(rnd Rand) ScoreOption {
	return func(c *scoreCall) {
		if rnd != nil {
			c.rnd = rnd
		}
	}
}

// Score computes the four metrics. It never fails; any error or panic
// yields all-zero scores.
func (e *Engine) Score(content, query string) Scores {
	return e.scoreSafe(content, query, e.rnd)
}

func (e *Engine) scoreSafe(content, query string, rnd Rand) (s Scores) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("scoring panicked", "err", r)
			s = Scores{}
		}
	}()

	s, err := e.score(content, query, rnd)
	if err != nil {
		e.logger.Warn("scoring failed", "err", err)
		return Scores{}
	}
	return s
}

func (e *Engine) score(content, query string, rnd Rand) (Scores, error) {
	relevance := e.blend(rnd, Relevance(content, query))

	accuracyFn := e.accuracy
	if accuracyFn == nil {
		accuracyFn = RandomAccuracy(rnd)
	}
	accuracy, err := accuracyFn(content, query)
	if err != nil {
		return Scores{}, fmt.Errorf("accuracy: %w", err)
	}
	if math.IsNaN(accuracy) {
		return Scores{}, fmt.Errorf("accuracy scorer returned NaN")
	}

	completeness := e.blend(rnd, Completeness(content, e.idealLength))

	s := Scores{
		Relevance:    round2(clamp01(relevance)),
		Accuracy:     round2(clamp01(accuracy)),
		Completeness: round2(clamp01(completeness)),
	}
	s.Overall = e.weights.Combine(s.Relevance, s.Accuracy, s.Completeness)
	return s, nil
}

func (e *Engine) blend(rnd Rand, score float64) float64 {
	if e.noise == 0 {
		return score
	}
	return score*(1-e.noise) + rnd.Float64()*e.noise
}

// Relevance is the query term coverage of content, 0.5 when the query has no
// terms longer than three characters.
func Relevance(content, query string) float64 {
	coverage, _, ok := textutil.Coverage(content, query)
	if !ok {
		return neutralCoverage
	}
	return coverage
}

// Completeness mixes a length factor against idealLength with a paragraph
// structure factor.
func Completeness(content string, idealLength int) float64 {
	lengthFactor := math.Min(1, float64(textutil.Length(content))/float64(idealLength))
	structureFactor := math.Min(1, float64(textutil.Paragraphs(content))/idealParagraphs)
	return lengthFactor*lengthWeight + structureFactor*structureWeight
}

// ScoreAndPersist scores the answer, writes one record per metric and updates
// the answer's score fields. Persistence errors are returned as is.
func (e *Engine) ScoreAndPersist(ctx context.Context, a *answer.Answer, query string, opts ...ScoreOption) (*answer.Answer, error) {
	call := scoreCall{rnd: e.rnd}
	for _, opt := range opts {
		opt(&call)
	}
	s := e.scoreSafe(a.Content, query, call.rnd)

	records := []answer.ScoreRecord{
		{
			MetricType:  answer.MetricRelevance,
			Score:       s.Relevance,
			Weight:      e.weights.Relevance,
			Explanation: "Share of query terms present in the answer",
		},
		{
			MetricType:  answer.MetricAccuracy,
			Score:       s.Accuracy,
			Weight:      e.weights.Accuracy,
			Explanation: "Estimated factual accuracy",
		},
		{
			MetricType:  answer.MetricCompleteness,
			Score:       s.Completeness,
			Weight:      e.weights.Completeness,
			Explanation: fmt.Sprintf("Length against %d characters and paragraph structure", e.idealLength),
		},
		{
			MetricType: answer.MetricOverall,
			Score:      s.Overall,
			Weight:     1.0,
			Explanation: fmt.Sprintf("%.2f*relevance + %.2f*accuracy + %.2f*completeness",
				e.weights.Relevance, e.weights.Accuracy, e.weights.Completeness),
		},
	}
	for _, rec := range records {
		rec.AnswerID = a.ID
		if _, err := e.store.InsertScore(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to persist %s score: %w", rec.MetricType, err)
		}
	}

	a.RelevanceScore = s.Relevance
	a.AccuracyScore = s.Accuracy
	a.CompletenessScore = s.Completeness
	a.OverallScore = s.Overall

	e.logger.Debug("scored", "answer_id", a.ID, "relevance", s.Relevance, "accuracy", s.Accuracy,
		"completeness", s.Completeness, "overall", s.Overall)
	return a, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
