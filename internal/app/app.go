package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/modfin/vetter/internal/ai"
	"github.com/modfin/vetter/internal/answer"
	"github.com/modfin/vetter/internal/config"
	"github.com/modfin/vetter/internal/db"
	"github.com/modfin/vetter/internal/generate"
	"github.com/modfin/vetter/internal/runner"
	"github.com/modfin/vetter/internal/scoring"
	"github.com/modfin/vetter/internal/validate"
)

const answerCacheSize = 1024

type App struct {
	Config    config.Config
	Conn      *sql.DB
	Queries   *db.Queries
	Answers   answer.AnswerStore
	Validator *validate.Engine
	Scorer    *scoring.Engine
	Generator *generate.Generator
	Runner    *runner.Runner
}

// New wires the pipeline against the sqlite database at dbPath. client may be
// nil for commands that never generate.
func New(ctx context.Context, cfg config.Config, dbPath string, client generate.ProviderClient, proxy *ai.Proxy, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := db.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	queries := db.New(conn)
	answers, err := db.NewCachedAnswers(queries, answerCacheSize)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create answer cache: %w", err)
	}

	rnd := scoring.NewTimeRand()
	if cfg.Seed != 0 {
		rnd = scoring.NewRand(cfg.Seed)
	}

	scorer := scoring.NewEngine(queries, cfg.Weights, logger,
		scoring.WithRand(rnd),
		scoring.WithIdealLength(cfg.IdealLength),
	)
	validator := validate.NewEngine(queries, cfg.Criteria, logger, Rules(cfg, proxy, queries, logger)...)

	generator := &generate.Generator{
		Client:   client,
		Answers:  answers,
		Metadata: queries,
		Defaults: cfg.Generation,
		Checker:  validator,
		Scorer:   scorer,
		Logger:   logger,
	}

	return &App{
		Config:    cfg,
		Conn:      conn,
		Queries:   queries,
		Answers:   answers,
		Validator: validator,
		Scorer:    scorer,
		Generator: generator,
		Runner: runner.New(generator, validator, scorer, answers,
			runner.WithRand(rnd),
			runner.WithParallel(cfg.Parallel),
			runner.WithLogger(logger),
		),
	}, nil
}

// Rules builds the rule list from configuration. Relevance is always first.
func Rules(cfg config.Config, proxy *ai.Proxy, cache ai.EmbeddingCache, logger *slog.Logger) []validate.Rule {
	if logger == nil {
		logger = slog.Default()
	}
	rules := []validate.Rule{validate.RelevanceRule{}}
	if cfg.Rules.Completeness {
		rules = append(rules, validate.CompletenessRule{MinLength: cfg.Criteria.MinLength})
	}
	if cfg.Rules.Citation {
		rules = append(rules, validate.CitationRule{
			MinCitations: cfg.Criteria.MinCitations,
			Patterns:     cfg.Criteria.CitationPatterns,
		})
	}
	if cfg.Rules.BrandSafety {
		rules = append(rules, validate.BrandSafetyRule{
			Blocked: append(append([]string{}, cfg.Rules.BlockedTerms...), cfg.Criteria.ProhibitedElements...),
			Caution: cfg.Rules.CautionTerms,
		})
	}
	if cfg.Rules.Semantic {
		provider, _, _ := strings.Cut(cfg.Rules.EmbedModel, "/")
		if proxy == nil || !slices.Contains(proxy.EmbedProviders(), provider) {
			logger.Warn("semantic rule enabled but no embedding provider configured, skipping", "embed_model", cfg.Rules.EmbedModel)
		} else {
			rules = append(rules, validate.SemanticRelevanceRule{
				Embedder:  &ai.Embedder{Proxy: proxy, Model: cfg.Rules.EmbedModel, Cache: cache, Logger: logger},
				Threshold: cfg.Rules.SemanticThreshold,
			})
		}
	}
	return rules
}

func (a *App) Close() error {
	return a.Conn.Close()
}
