package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MatusOllah/slogcolor"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/modfin/clix"
	"github.com/modfin/vetter/internal/ai"
	"github.com/modfin/vetter/internal/app"
	"github.com/modfin/vetter/internal/config"
	"github.com/modfin/vetter/internal/generate"
	"github.com/modfin/vetter/internal/runner"
	"github.com/modfin/vetter/internal/scoring"
	"github.com/modfin/vetter/internal/validate"
	"github.com/urfave/cli/v3"
)

type globalFlags struct {
	DB           string `cli:"db"`
	Config       string `cli:"config"`
	LLMModel     string `cli:"llm-model"`
	EmbedModel   string `cli:"embed-model"`
	SystemPrompt string `cli:"system-prompt"`
}

func main() {

	if err := config.LoadEnv(); err != nil {
		slog.Default().Warn("failed to load .env", "err", err)
	}

	cmd := &cli.Command{
		Name:  "vetter",
		Usage: "generate answers with an LLM, validate and score them, and pick the best one",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "./vetter.db",
				Sources: cli.EnvVars("VETTER_DB"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "yaml file with generation, criteria, weight and rule settings",
				Sources: cli.EnvVars("VETTER_CONFIG"),
			},

			&cli.StringFlag{
				Name:    "bellman-url",
				Sources: cli.EnvVars("VETTER_BELLMAN_URL"),
			},
			&cli.StringFlag{
				Name:    "bellman-key",
				Sources: cli.EnvVars("VETTER_BELLMAN_KEY"),
			},
			&cli.StringFlag{
				Name:    "bellman-key-name",
				Value:   "vetter",
				Sources: cli.EnvVars("VETTER_BELLMAN_KEY_NAME"),
			},

			&cli.StringFlag{
				Name:    "vertexai-credential",
				Sources: cli.EnvVars("VETTER_VERTEXAI_CREDENTIAL"),
			},
			&cli.StringFlag{
				Name:    "vertexai-project",
				Sources: cli.EnvVars("VETTER_VERTEXAI_PROJECT"),
			},
			&cli.StringFlag{
				Name:    "vertexai-region",
				Sources: cli.EnvVars("VETTER_VERTEXAI_REGION"),
			},

			&cli.StringFlag{
				Name:    "openai-key",
				Sources: cli.EnvVars("VETTER_OPENAI_KEY"),
			},
			&cli.StringFlag{
				Name:    "anthropic-key",
				Sources: cli.EnvVars("VETTER_ANTHROPIC_KEY"),
			},
			&cli.StringFlag{
				Name:    "voyageai-key",
				Sources: cli.EnvVars("VETTER_VOYAGEAI_KEY"),
			},

			&cli.StringFlag{
				Name:    "llm-model",
				Value:   "OpenAI/gpt-4o-mini",
				Sources: cli.EnvVars("VETTER_LLM_MODEL"),
			},
			&cli.StringFlag{
				Name:    "embed-model",
				Value:   "OpenAI/text-embedding-3-small",
				Sources: cli.EnvVars("VETTER_EMBED_MODEL"),
			},
			&cli.StringFlag{
				Name:    "system-prompt",
				Sources: cli.EnvVars("VETTER_SYSTEM_PROMPT"),
			},

			&cli.FloatFlag{
				Name:    "weight-relevance",
				Sources: cli.EnvVars("VETTER_WEIGHT_RELEVANCE"),
			},
			&cli.FloatFlag{
				Name:    "weight-accuracy",
				Sources: cli.EnvVars("VETTER_WEIGHT_ACCURACY"),
			},
			&cli.FloatFlag{
				Name:    "weight-completeness",
				Sources: cli.EnvVars("VETTER_WEIGHT_COMPLETENESS"),
			},

			&cli.IntFlag{
				Name:    "seed",
				Usage:   "seed for scoring noise and temperature jitter",
				Sources: cli.EnvVars("VETTER_SEED"),
			},
			&cli.IntFlag{
				Name:    "parallel",
				Usage:   "number of batch iterations to run concurrently",
				Sources: cli.EnvVars("VETTER_PARALLEL"),
			},
			&cli.BoolFlag{
				Name:    "semantic",
				Usage:   "enable the embedding based relevance rule",
				Sources: cli.EnvVars("VETTER_SEMANTIC"),
			},

			&cli.BoolFlag{
				Name:    "verbose",
				Sources: cli.EnvVars("VETTER_VERBOSE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {

			opts := *slogcolor.DefaultOptions
			if cmd.Bool("verbose") {
				opts.Level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, &opts)))

			return ctx, nil
		},

		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "generate, validate and score a single answer",
				ArgsUsage: "<question>",
				Flags:     requestFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := setup(ctx, cmd, true)
					if err != nil {
						return err
					}
					defer a.Close()

					res, err := a.Runner.Run(ctx, request(cmd))
					if err != nil {
						return fmt.Errorf("failed to run: %w", err)
					}
					return printJSON(res)
				},
			},

			{
				Name:      "multi",
				Usage:     "generate several candidate answers with jittered temperature",
				ArgsUsage: "<question>",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Value: 3,
					},
				}, requestFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := setup(ctx, cmd, true)
					if err != nil {
						return err
					}
					defer a.Close()

					res, err := a.Runner.RunMultiple(ctx, request(cmd), int(cmd.Int("count")))
					if err != nil {
						return fmt.Errorf("failed to run: %w", err)
					}
					return printJSON(res)
				},
			},

			{
				Name:      "best",
				Usage:     "generate several candidate answers and print the best scoring one",
				ArgsUsage: "<question>",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Value: runner.DefaultBestOf,
					},
				}, requestFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := setup(ctx, cmd, true)
					if err != nil {
						return err
					}
					defer a.Close()

					res, err := a.Runner.RunBest(ctx, request(cmd), int(cmd.Int("count")))
					if err != nil {
						return fmt.Errorf("failed to run: %w", err)
					}
					return printJSON(res)
				},
			},

			{
				Name:      "generate",
				Usage:     "generate an answer without the rule engine, optionally with the inline criteria check",
				ArgsUsage: "<question>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "validate",
						Usage: "run the inline criteria check and scoring",
					},
				}, requestFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := setup(ctx, cmd, true)
					if err != nil {
						return err
					}
					defer a.Close()

					req := request(cmd)
					req.Options.ValidateAnswer = generate.Bool(cmd.Bool("validate"))
					res, err := a.Generator.Generate(ctx, req)
					if err != nil {
						return fmt.Errorf("failed to generate: %w", err)
					}
					return printJSON(res)
				},
			},

			{
				Name:      "fill",
				Usage:     "answer every row of a csv/tsv file with the best of several candidates",
				ArgsUsage: "<in> <out>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "delimiter",
						Value: "\\t",
					},
					&cli.BoolFlag{
						Name: "with-headers",
					},
					&cli.IntFlag{
						Name:  "best-of",
						Value: runner.DefaultBestOf,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return fmt.Errorf("expected <in> and <out>, got %d arguments", cmd.Args().Len())
					}
					a, err := setup(ctx, cmd, true)
					if err != nil {
						return err
					}
					defer a.Close()

					in, err := os.Open(cmd.Args().Get(0))
					if err != nil {
						return fmt.Errorf("failed to open input file: %w", err)
					}
					defer in.Close()

					out, err := os.Create(cmd.Args().Get(1))
					if err != nil {
						return fmt.Errorf("failed to create output file: %w", err)
					}
					defer out.Close()

					return a.Runner.Fill(ctx, in, out, runner.FillConfig{
						Name:        filepath.Base(cmd.Args().Get(0)),
						Delimiter:   cmd.String("delimiter"),
						WithHeaders: cmd.Bool("with-headers"),
						BestOf:      int(cmd.Int("best-of")),
					})
				},
			},

			{
				Name:      "check",
				Usage:     "run the simple criteria check on a file, - for stdin",
				ArgsUsage: "<file> <question>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "min-length"},
					&cli.IntFlag{Name: "max-length"},
					&cli.IntFlag{Name: "min-citations"},
					&cli.StringSliceFlag{Name: "require"},
					&cli.StringSliceFlag{Name: "prohibit"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					content, query, err := contentAndQuery(cmd)
					if err != nil {
						return err
					}

					criteria := cfg.Criteria
					if cmd.IsSet("min-length") {
						criteria.MinLength = int(cmd.Int("min-length"))
					}
					if cmd.IsSet("max-length") {
						criteria.MaxLength = int(cmd.Int("max-length"))
					}
					if cmd.IsSet("min-citations") {
						criteria.MinCitations = int(cmd.Int("min-citations"))
					}
					criteria.RequiredElements = append(criteria.RequiredElements, cmd.StringSlice("require")...)
					criteria.ProhibitedElements = append(criteria.ProhibitedElements, cmd.StringSlice("prohibit")...)

					return printJSON(validate.CheckCriteria(content, query, criteria))
				},
			},

			{
				Name:      "score",
				Usage:     "score a file against a question without storing anything, - for stdin",
				ArgsUsage: "<file> <question>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					content, query, err := contentAndQuery(cmd)
					if err != nil {
						return err
					}

					rnd := scoring.NewTimeRand()
					if cfg.Seed != 0 {
						rnd = scoring.NewRand(cfg.Seed)
					}
					engine := scoring.NewEngine(nil, cfg.Weights, slog.Default(),
						scoring.WithRand(rnd),
						scoring.WithIdealLength(cfg.IdealLength),
					)
					return printJSON(engine.Score(content, query))
				},
			},

			{
				Name:      "show",
				Usage:     "print a stored answer with its validations, scores and metadata",
				ArgsUsage: "<answer-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := setup(ctx, cmd, false)
					if err != nil {
						return err
					}
					defer a.Close()

					id := cmd.Args().First()
					res, err := a.Answers.FindByID(ctx, id)
					if err != nil {
						return err
					}
					validations, err := a.Queries.ListValidations(ctx, id)
					if err != nil {
						return fmt.Errorf("failed to list validations: %w", err)
					}
					scores, err := a.Queries.ListScores(ctx, id)
					if err != nil {
						return fmt.Errorf("failed to list scores: %w", err)
					}
					metadata, err := a.Queries.ListMetadata(ctx, id)
					if err != nil {
						return fmt.Errorf("failed to list metadata: %w", err)
					}

					return printJSON(map[string]any{
						"answer":      res,
						"validations": validations,
						"scores":      scores,
						"metadata":    metadata,
					})
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Default().Error("got error running vetter", "err", err)
		os.Exit(1)
	}
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "query-id",
			Usage:   "id correlating the answers to a query, generated when empty",
			Sources: cli.EnvVars("VETTER_QUERY_ID"),
		},
		&cli.FloatFlag{
			Name:  "temperature",
			Usage: "generation temperature in [0, 1]",
		},
		&cli.IntFlag{
			Name:  "max-tokens",
			Usage: "maximum number of tokens to generate",
		},
		&cli.BoolFlag{
			Name:  "no-metadata",
			Usage: "do not store citation metadata",
		},
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	flags := clix.ParseCommand[globalFlags](cmd)

	cfg := config.Default()
	if flags.Config != "" {
		if err := config.LoadFile(flags.Config, &cfg); err != nil {
			return cfg, err
		}
	}

	if cmd.IsSet("llm-model") {
		cfg.Generation.Provider = flags.LLMModel
	}
	if cmd.IsSet("embed-model") {
		cfg.Rules.EmbedModel = flags.EmbedModel
	}
	if cmd.IsSet("semantic") {
		cfg.Rules.Semantic = cmd.Bool("semantic")
	}
	if cmd.IsSet("seed") {
		cfg.Seed = uint64(cmd.Int("seed"))
	}
	if cmd.IsSet("parallel") {
		cfg.Parallel = int(cmd.Int("parallel"))
	}
	if cmd.IsSet("weight-relevance") {
		cfg.Weights.Relevance = cmd.Float("weight-relevance")
	}
	if cmd.IsSet("weight-accuracy") {
		cfg.Weights.Accuracy = cmd.Float("weight-accuracy")
	}
	if cmd.IsSet("weight-completeness") {
		cfg.Weights.Completeness = cmd.Float("weight-completeness")
	}

	return cfg, cfg.Validate()
}

func setup(ctx context.Context, cmd *cli.Command, withProvider bool) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	flags := clix.ParseCommand[globalFlags](cmd)

	var proxy *ai.Proxy
	var client generate.ProviderClient
	if withProvider {
		proxy, err = ai.New(clix.ParseCommand[ai.APICredentials](cmd), slog.Default())
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy: %w", err)
		}
		client = &ai.Client{
			Proxy:        proxy,
			DefaultModel: cfg.Generation.Provider,
			SystemPrompt: flags.SystemPrompt,
			Logger:       slog.Default(),
		}
	}

	return app.New(ctx, cfg, flags.DB, client, proxy, slog.Default())
}

func request(cmd *cli.Command) generate.Request {
	req := generate.Request{
		QueryID: cmd.String("query-id"),
		Query:   strings.Join(cmd.Args().Slice(), " "),
	}
	if req.QueryID == "" {
		req.QueryID = uuid.NewString()
	}
	if cmd.IsSet("temperature") {
		req.Options.Temperature = generate.Float(cmd.Float("temperature"))
	}
	if cmd.IsSet("max-tokens") {
		req.Options.MaxTokens = int(cmd.Int("max-tokens"))
	}
	if cmd.Bool("no-metadata") {
		req.Options.IncludeMetadata = generate.Bool(false)
	}
	return req
}

func contentAndQuery(cmd *cli.Command) (string, string, error) {
	if cmd.Args().Len() < 2 {
		return "", "", fmt.Errorf("expected <file> and <question>")
	}

	var in io.Reader = os.Stdin
	if f := cmd.Args().First(); f != "-" {
		file, err := os.Open(f)
		if err != nil {
			return "", "", fmt.Errorf("failed to open file %s: %w", f, err)
		}
		defer file.Close()
		in = file
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", "", fmt.Errorf("failed to read content: %w", err)
	}
	return string(data), strings.Join(cmd.Args().Tail(), " "), nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
