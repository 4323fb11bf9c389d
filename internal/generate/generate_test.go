package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modfin/vetter/internal/answer"
	"github.com/modfin/vetter/internal/answer/answertest"
	"github.com/modfin/vetter/internal/scoring"
	"github.com/modfin/vetter/internal/validate"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	completion Completion
	err        error
	got        []CompleteOptions
}

func (f *fakeClient) Complete(_ context.Context, _ string, opts CompleteOptions) (Completion, error) {
	f.got = append(f.got, opts)
	return f.completion, f.err
}

func newGenerator(client ProviderClient, store *answertest.MemStore) *Generator {
	return &Generator{
		Client:   client,
		Answers:  store,
		Metadata: store,
		Defaults: DefaultOptions(),
		Checker:  validate.NewEngine(store, validate.Criteria{MinLength: 20}, nil),
		Scorer:   scoring.NewEngine(store, scoring.DefaultWeights(), nil, scoring.WithRand(scoring.NewRand(1))),
	}
}

func TestGenerateCreatesPendingShell(t *testing.T) {
	store := answertest.New()
	client := &fakeClient{completion: Completion{
		Text:     "Paris is the capital of France.",
		Provider: "OpenAI",
		Metadata: map[string]string{"model": "gpt-4o-mini"},
		Citations: []Citation{
			{Title: "France", Source: "https://en.wikipedia.org/wiki/France"},
			{Title: "Paris", Source: "https://en.wikipedia.org/wiki/Paris"},
		},
	}}
	g := newGenerator(client, store)

	a, err := g.Generate(context.Background(), Request{QueryID: "q1", Query: "capital of France"})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	require.Equal(t, answer.StatusPending, a.Status)
	require.False(t, a.IsValidated)
	require.Zero(t, a.OverallScore)
	require.Equal(t, "OpenAI", a.Provider)

	stored, err := store.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, a.Content, stored.Content)

	citations := store.MetadataFor(a.ID, "citation")
	require.Len(t, citations, 2)
	require.Contains(t, citations[0].Value, "wiki/France")

	require.Len(t, client.got, 1)
	require.Equal(t, 0.7, client.got[0].Temperature)
	require.Equal(t, 1024, client.got[0].MaxTokens)
	require.True(t, client.got[0].Citations)
}

func TestGenerateNormalizesTemperature(t *testing.T) {
	client := &fakeClient{completion: Completion{Text: "text"}}
	g := newGenerator(client, answertest.New())

	_, err := g.Generate(context.Background(), Request{QueryID: "q1", Query: "q", Options: Options{Temperature: Float(1.7)}})
	require.NoError(t, err)
	require.Equal(t, 1.0, client.got[0].Temperature)
	require.Equal(t, "OpenAI/gpt-4o-mini", client.got[0].Model)
}

func TestGenerateMetadataFailureIsSwallowed(t *testing.T) {
	store := answertest.New()
	store.FailMetadata = errors.New("metadata table locked")
	client := &fakeClient{completion: Completion{Text: "text", Citations: []Citation{{Source: "x"}}}}

	a, err := newGenerator(client, store).Generate(context.Background(), Request{QueryID: "q1", Query: "q"})
	require.NoError(t, err)
	require.Equal(t, answer.StatusPending, a.Status)
}

func TestGenerateSkipsMetadataWhenDisabled(t *testing.T) {
	store := answertest.New()
	client := &fakeClient{completion: Completion{Text: "text", Citations: []Citation{{Source: "x"}}}}

	a, err := newGenerator(client, store).Generate(context.Background(), Request{
		QueryID: "q1", Query: "q", Options: Options{IncludeMetadata: Bool(false)},
	})
	require.NoError(t, err)
	require.Empty(t, store.MetadataFor(a.ID, "citation"))
}

func TestGenerateErrors(t *testing.T) {
	providerErr := errors.New("provider unreachable")
	storeErr := errors.New("insert failed")

	tests := []struct {
		name   string
		req    Request
		client *fakeClient
		store  func() *answertest.MemStore
		want   error
	}{
		{name: "Empty query", req: Request{QueryID: "q1", Query: "  "}, client: &fakeClient{}, store: answertest.New, want: ErrEmptyQuery},
		{name: "Missing query id", req: Request{Query: "q"}, client: &fakeClient{}, store: answertest.New, want: ErrMissingQueryID},
		{name: "Provider failure", req: Request{QueryID: "q1", Query: "q"}, client: &fakeClient{err: providerErr}, store: answertest.New, want: providerErr},
		{
			name:   "Shell failure",
			req:    Request{QueryID: "q1", Query: "q"},
			client: &fakeClient{completion: Completion{Text: "t"}},
			store: func() *answertest.MemStore {
				s := answertest.New()
				s.FailCreate = storeErr
				return s
			},
			want: storeErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newGenerator(tt.client, tt.store()).Generate(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGenerateInlineValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    answer.Status
	}{
		{name: "Accepted", content: "Paris is the capital of France and its largest city.", want: answer.StatusValidated},
		{name: "Rejected", content: "Too short", want: answer.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := answertest.New()
			g := newGenerator(&fakeClient{completion: Completion{Text: tt.content}}, store)

			a, err := g.Generate(context.Background(), Request{
				QueryID: "q1", Query: "capital of France", Options: Options{ValidateAnswer: Bool(true)},
			})
			require.NoError(t, err)
			require.Equal(t, tt.want, a.Status)
			require.True(t, a.IsValidated)
			require.Empty(t, store.Validations, "inline pass must not run the rule engine")

			reasons := store.MetadataFor(a.ID, "validation_reason")
			if tt.want == answer.StatusRejected {
				require.NotEmpty(t, reasons)
				require.True(t, strings.Contains(reasons[0].Value, "too short"))
			} else {
				require.Empty(t, reasons)
			}
		})
	}
}

func TestGenerateInlineValidationUpdateFailureKeepsPending(t *testing.T) {
	store := answertest.New()
	store.FailUpdate = errors.New("update failed")
	g := newGenerator(&fakeClient{completion: Completion{Text: "Too short"}}, store)

	a, err := g.Generate(context.Background(), Request{QueryID: "q1", Query: "q", Options: Options{ValidateAnswer: Bool(true)}})
	require.NoError(t, err)
	require.Equal(t, answer.StatusPending, a.Status)
}

func TestNormalizeTemperature(t *testing.T) {
	for in, want := range map[float64]float64{-0.5: 0, 0: 0, 0.42: 0.42, 1: 1, 3: 1} {
		if got := NormalizeTemperature(in); got != want {
			t.Errorf("NormalizeTemperature(%v) = %v, want %v", in, got, want)
		}
	}
}
