package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modfin/vetter/internal/answer"
	"github.com/modfin/vetter/internal/generate"
	"github.com/modfin/vetter/internal/scoring"
	"github.com/modfin/vetter/internal/validate"
	"golang.org/x/sync/errgroup"
)

var ErrNoAnswers = errors.New("no answers to select from")

const (
	DefaultBestOf   = 3
	baseTemperature = 0.7
	jitterSpan      = 0.1
)

type Generator interface {
	Generate(ctx context.Context, req generate.Request) (*answer.Answer, error)
}

type Validator interface {
	RunRules(ctx context.Context, a *answer.Answer, queryText string) ([]answer.ValidationResult, error)
}

type Scorer interface {
	ScoreAndPersist(ctx context.Context, a *answer.Answer, query string, opts ...scoring.ScoreOption) (*answer.Answer, error)
}

// Runner sequences generation, rule validation and scoring, and resolves the
// final status of each answer.
type Runner struct {
	generator Generator
	validator Validator
	scorer    Scorer
	answers   answer.AnswerStore
	rnd       scoring.Rand
	parallel  int
	logger    *slog.Logger
}

type Option func(*Runner)

func WithRand(rnd scoring.Rand) Option {
	return func(r *Runner) { r.rnd = rnd }
}

// WithParallel runs batch iterations on up to n workers. n <= 1 is sequential.
func WithParallel(n int) Option {
	return func(r *Runner) { r.parallel = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

func New(generator Generator, validator Validator, scorer Scorer, answers answer.AnswerStore, opts ...Option) *Runner {
	r := &Runner{
		generator: generator,
		validator: validator,
		scorer:    scorer,
		answers:   answers,
		parallel:  1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rnd == nil {
		r.rnd = scoring.NewTimeRand()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run generates one answer, validates it with the rule engine, scores it and
// stores the terminal status. Any failure before status resolution leaves the
// answer pending in the store.
func (r *Runner) Run(ctx context.Context, req generate.Request) (*answer.Answer, error) {
	return r.run(ctx, req)
}

func (r *Runner) run(ctx context.Context, req generate.Request, opts ...scoring.ScoreOption) (*answer.Answer, error) {
	start := time.Now()

	// The full rule engine supersedes the generator's inline criteria pass.
	req.Options.ValidateAnswer = generate.Bool(false)

	a, err := r.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	results, err := r.validator.RunRules(ctx, a, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to validate answer %s: %w", a.ID, err)
	}

	a, err = r.scorer.ScoreAndPersist(ctx, a, req.Query, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to score answer: %w", err)
	}

	a.IsValidated = true
	a.Status = Resolve(results)

	final, err := r.answers.UpdateFinal(ctx, a.ID, a.Final())
	if err != nil {
		return nil, fmt.Errorf("failed to store final answer %s: %w", a.ID, err)
	}

	r.logger.Info("answer resolved",
		"answer_id", final.ID,
		"query_id", final.QueryID,
		"status", final.Status,
		"overall", final.OverallScore,
		"validations", len(results),
		"took", time.Since(start),
	)
	return final, nil
}

// Resolve maps validation results to a terminal status: any failure rejects.
func Resolve(results []answer.ValidationResult) answer.Status {
	if validate.HasFailures(results) {
		return answer.StatusRejected
	}
	return answer.StatusValidated
}

// RunMultiple runs count independent pipelines with a jittered temperature
// each. The first failure aborts the batch.
func (r *Runner) RunMultiple(ctx context.Context, req generate.Request, count int) ([]*answer.Answer, error) {
	if count <= 0 {
		return nil, nil
	}

	// Temperatures and per iteration scoring sources are drawn up front so a
	// seeded source gives the same batch regardless of worker scheduling.
	base := baseTemperature
	if req.Options.Temperature != nil {
		base = *req.Options.Temperature
	}
	requests := make([]generate.Request, count)
	sources := make([]scoring.Rand, count)
	for i := range requests {
		requests[i] = req
		requests[i].Options.Temperature = generate.Float(Jitter(base, r.rnd))
		sources[i] = scoring.NewRand(r.rnd.Uint64())
	}

	answers := make([]*answer.Answer, count)
	if r.parallel <= 1 {
		for i, rq := range requests {
			a, err := r.run(ctx, rq, scoring.UsingRand(sources[i]))
			if err != nil {
				return nil, fmt.Errorf("iteration %d: %w", i, err)
			}
			answers[i] = a
		}
		return answers, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, rq := range requests {
		g.Go(func() error {
			a, err := r.run(gctx, rq, scoring.UsingRand(sources[i]))
			if err != nil {
				return fmt.Errorf("iteration %d: %w", i, err)
			}
			answers[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}

// RunBest runs count pipelines and returns the answer with the highest
// overall score. count <= 0 uses DefaultBestOf.
func (r *Runner) RunBest(ctx context.Context, req generate.Request, count int) (*answer.Answer, error) {
	if count <= 0 {
		count = DefaultBestOf
	}
	answers, err := r.RunMultiple(ctx, req, count)
	if err != nil {
		return nil, err
	}
	best, err := SelectBest(answers)
	if err != nil {
		return nil, err
	}
	r.logger.Info("best answer selected", "answer_id", best.ID, "overall", best.OverallScore, "candidates", len(answers))
	return best, nil
}

// SelectBest returns the answer with the strictly greatest overall score;
// on ties the earliest wins.
func SelectBest(answers []*answer.Answer) (*answer.Answer, error) {
	if len(answers) == 0 {
		return nil, ErrNoAnswers
	}
	best := answers[0]
	for _, a := range answers[1:] {
		if a.OverallScore > best.OverallScore {
			best = a
		}
	}
	return best, nil
}

// Jitter offsets base uniformly within ±0.1 and clamps the result to [0, 1].
func Jitter(base float64, rnd scoring.Rand) float64 {
	offset := (rnd.Float64()*2 - 1) * jitterSpan
	return generate.NormalizeTemperature(base + offset)
}
