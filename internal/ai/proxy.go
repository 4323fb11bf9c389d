package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/modfin/bellman"
	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/bellman/services/anthropic"
	"github.com/modfin/bellman/services/openai"
	"github.com/modfin/bellman/services/vertexai"
	"github.com/modfin/bellman/services/voyageai"
	"github.com/modfin/henry/mapz"
)

// APICredentials holds the provider keys, parsed from flags with clix.
type APICredentials struct {
	BellmanURL     string `cli:"bellman-url"`
	BellmanKeyName string `cli:"bellman-key-name"`
	BellmanKey     string `cli:"bellman-key"`

	VertexAICredential string `cli:"vertexai-credential"`
	VertexAIProject    string `cli:"vertexai-project"`
	VertexAIRegion     string `cli:"vertexai-region"`

	OpenAIKey    string `cli:"openai-key"`
	AnthropicKey string `cli:"anthropic-key"`
	VoyageAIKey  string `cli:"voyageai-key"`
}

var (
	ErrNoModelProvided = errors.New("no model was provided")
	ErrClientNotFound  = errors.New("client not found")
)

// Proxy routes "Provider/name" models to the registered bellman clients.
// Answer generation and semantic relevance embeddings both go through it.
type Proxy struct {
	embedders map[string]embed.Embeder
	gens      map[string]gen.Gen
	logger    *slog.Logger
}

func newProxy() *Proxy {
	return &Proxy{
		embedders: map[string]embed.Embeder{},
		gens:      map[string]gen.Gen{},
		logger:    slog.Default(),
	}
}

// New registers a client for every provider that has credentials. A proxy
// without any provider is valid; routing to it fails with ErrClientNotFound.
func New(creds APICredentials, logger *slog.Logger) (*Proxy, error) {
	proxy := newProxy()
	if logger != nil {
		proxy.logger = logger
	}

	if creds.AnthropicKey != "" {
		proxy.register(anthropic.New(creds.AnthropicKey), nil)
	}
	if creds.OpenAIKey != "" {
		client := openai.New(creds.OpenAIKey)
		proxy.register(client, client)
	}
	if creds.VertexAIRegion != "" && creds.VertexAIProject != "" {
		client, err := vertexai.New(vertexai.GoogleConfig{
			Project:    creds.VertexAIProject,
			Region:     creds.VertexAIRegion,
			Credential: creds.VertexAICredential,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create vertexai client: %w", err)
		}
		proxy.register(client, client)
	}
	if creds.VoyageAIKey != "" {
		proxy.register(nil, voyageai.New(creds.VoyageAIKey))
	}
	if creds.BellmanKey != "" && creds.BellmanURL != "" {
		client := bellman.New(creds.BellmanURL, bellman.Key{
			Name:  creds.BellmanKeyName,
			Token: creds.BellmanKey,
		})
		proxy.register(client, client)
	}

	return proxy, nil
}

func (p *Proxy) register(llm gen.Gen, embedder embed.Embeder) {
	if llm != nil {
		p.RegisterGen(llm)
	}
	if embedder != nil {
		p.RegisterEmbedder(embedder)
	}
}

func (p *Proxy) RegisterGen(llm gen.Gen) {
	p.gens[llm.Provider()] = llm
	p.logger.Debug("adding llm provider", "provider", llm.Provider())
}

func (p *Proxy) RegisterEmbedder(embedder embed.Embeder) {
	p.embedders[embedder.Provider()] = embedder
	p.logger.Debug("adding embed provider", "provider", embedder.Provider())
}

// Providers lists the registered generation providers, sorted.
func (p *Proxy) Providers() []string {
	names := mapz.Keys(p.gens)
	slices.Sort(names)
	return names
}

// EmbedProviders lists the registered embedding providers, sorted.
func (p *Proxy) EmbedProviders() []string {
	names := mapz.Keys(p.embedders)
	slices.Sort(names)
	return names
}

// route resolves the provider and name a request is sent with. Bellman
// proxies other providers and expects "Provider/name" as its model name.
func route(provider, name string) (string, string, error) {
	if provider == bellman.Provider {
		inner, innerName, found := strings.Cut(name, "/")
		if !found {
			return "", "", fmt.Errorf("invalid bellman model name '%s', %w", name, ErrNoModelProvided)
		}
		provider, name = inner, innerName
	}
	if name == "" {
		return "", "", fmt.Errorf("model name is not set, %w", ErrNoModelProvided)
	}
	return provider, name, nil
}

func (p *Proxy) Embed(req embed.Request) (*embed.Response, error) {
	client, ok := p.embedders[req.Model.Provider]
	if !ok || client == nil {
		return nil, fmt.Errorf("no embed client registered for provider '%s', %w", req.Model.Provider, ErrClientNotFound)
	}

	var err error
	req.Model.Provider, req.Model.Name, err = route(req.Model.Provider, req.Model.Name)
	if err != nil {
		return nil, err
	}
	return client.Embed(req)
}

func (p *Proxy) Gen(model gen.Model) (*gen.Generator, error) {
	client, ok := p.gens[model.Provider]
	if !ok || client == nil {
		return nil, fmt.Errorf("no llm client registered for provider '%s', %w", model.Provider, ErrClientNotFound)
	}

	var err error
	model.Provider, model.Name, err = route(model.Provider, model.Name)
	if err != nil {
		return nil, err
	}
	return client.Generator(gen.WithModel(model)), nil
}
