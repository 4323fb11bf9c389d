package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/bellman/prompt"
	"github.com/modfin/bellman/schema"
	"github.com/modfin/henry/slicez"
	"github.com/modfin/vetter/internal/generate"
)

const DefaultSystemPrompt = `You answer questions accurately and concisely.
Structure longer answers in paragraphs. When you rely on a source, list it among the citations.`

// Client answers prompts through the proxy. It satisfies generate.ProviderClient.
type Client struct {
	Proxy        *Proxy
	DefaultModel string
	SystemPrompt string
	Logger       *slog.Logger
}

func (c *Client) Complete(ctx context.Context, text string, opts generate.CompleteOptions) (generate.Completion, error) {
	modelName := opts.Model
	if modelName == "" {
		modelName = c.DefaultModel
	}
	model := ParseModel(modelName)

	llm, err := c.Proxy.Gen(model)
	if err != nil {
		return generate.Completion{}, fmt.Errorf("failed to create llm: %w", err)
	}

	system := c.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}

	llm = llm.WithContext(ctx).
		System(system).
		Temperature(opts.Temperature).
		Output(schema.From(structuredAnswer{}))
	if opts.MaxTokens > 0 {
		llm = llm.MaxTokens(opts.MaxTokens)
	}

	res, err := llm.Prompt(prompt.Prompt{
		Role: prompt.UserRole,
		Text: fmt.Sprintf("<user-question> %s </user-question>", text),
	})
	if err != nil {
		return generate.Completion{}, fmt.Errorf("failed to generate response: %w", err)
	}

	var ans structuredAnswer
	err = res.Unmarshal(&ans)
	if err != nil {
		return generate.Completion{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.logger().Debug("completion",
		"provider", model.Provider,
		"model", model.Name,
		"input-tokens", res.Metadata.InputTokens,
		"output-tokens", res.Metadata.OutputTokens,
	)

	completion := generate.Completion{
		Text:     strings.TrimSpace(ans.Answer),
		Provider: model.Provider,
		Metadata: map[string]string{
			"model":         model.Name,
			"temperature":   strconv.FormatFloat(opts.Temperature, 'f', 2, 64),
			"input_tokens":  strconv.Itoa(res.Metadata.InputTokens),
			"output_tokens": strconv.Itoa(res.Metadata.OutputTokens),
		},
	}
	if opts.Citations {
		completion.Citations = slicez.Map(ans.Citations, structuredSource.citation)
	}
	return completion, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// EmbeddingCache persists embeddings between runs.
type EmbeddingCache interface {
	LookupEmbedding(ctx context.Context, model string, text string) ([]float64, bool, error)
	StoreEmbedding(ctx context.Context, model string, text string, vector []float64) error
}

// Embedder embeds text with a fixed model, consulting Cache first when set.
type Embedder struct {
	Proxy  *Proxy
	Model  string
	Cache  EmbeddingCache
	Logger *slog.Logger
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if e.Cache != nil {
		vector, ok, err := e.Cache.LookupEmbedding(ctx, e.Model, text)
		if err != nil {
			logger.Warn("failed to read embedding cache", "err", err)
		}
		if ok {
			return vector, nil
		}
	}

	provider, name, _ := strings.Cut(e.Model, "/")
	resp, err := e.Proxy.Embed(embed.Request{
		Ctx: ctx,
		Model: embed.Model{
			Provider: provider,
			Name:     name,
		},
		Text: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed: %w", err)
	}
	vector := resp.AsFloat64()

	if e.Cache != nil {
		if err := e.Cache.StoreEmbedding(ctx, e.Model, text, vector); err != nil {
			logger.Warn("failed to write embedding cache", "err", err)
		}
	}
	return vector, nil
}
