package db

import (
	"context"
	"testing"

	"github.com/modfin/vetter/internal/answer"
	"github.com/stretchr/testify/require"
)

func newTestQueries(t *testing.T) *Queries {
	t.Helper()
	conn, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return New(conn)
}

func TestAnswerLifecycle(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)

	id, err := q.CreateShell(ctx, &answer.Answer{
		QueryID:          "q1",
		Content:          "Paris.",
		Provider:         "OpenAI",
		ProviderMetadata: map[string]string{"model": "gpt-4o-mini"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	shell, err := q.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, answer.StatusPending, shell.Status)
	require.False(t, shell.IsValidated)
	require.Zero(t, shell.OverallScore)
	require.Equal(t, "gpt-4o-mini", shell.ProviderMetadata["model"])

	final, err := q.UpdateFinal(ctx, id, answer.Final{
		RelevanceScore:    0.8,
		AccuracyScore:     0.7,
		CompletenessScore: 0.6,
		OverallScore:      0.72,
		IsValidated:       true,
		Status:            answer.StatusValidated,
	})
	require.NoError(t, err)
	require.Equal(t, answer.StatusValidated, final.Status)
	require.True(t, final.IsValidated)
	require.Equal(t, 0.72, final.OverallScore)
	require.Equal(t, "Paris.", final.Content)

	list, err := q.ListByQuery(ctx, "q1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = q.UpdateFinal(ctx, id, answer.Final{IsValidated: true, Status: answer.StatusRejected})
	require.ErrorIs(t, err, answer.ErrResolved)

	stored, err := q.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, answer.StatusValidated, stored.Status, "terminal status must not be rewritten")
	require.Equal(t, 0.72, stored.OverallScore)
}

func TestFindByIDNotFound(t *testing.T) {
	q := newTestQueries(t)

	_, err := q.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, answer.ErrNotFound)

	_, err = q.UpdateFinal(context.Background(), "missing", answer.Final{Status: answer.StatusRejected})
	require.ErrorIs(t, err, answer.ErrNotFound)
}

func TestChildRecords(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)
	id, err := q.CreateShell(ctx, &answer.Answer{QueryID: "q1", Content: "c"})
	require.NoError(t, err)

	require.NoError(t, q.AppendMany(ctx, id, []answer.MetadataEntry{
		{Key: "citation", Value: `{"source":"a"}`},
		{Key: "citation", Value: `{"source":"b"}`},
	}))
	meta, err := q.ListMetadata(ctx, id)
	require.NoError(t, err)
	require.Len(t, meta, 2)
	require.Equal(t, `{"source":"b"}`, meta[1].Value)

	v, err := q.InsertValidation(ctx, answer.ValidationResult{
		AnswerID:       id,
		ValidationType: answer.ValidationRelevance,
		Status:         answer.ValidationWarning,
		Message:        "partial",
		Confidence:     0.4,
		Details:        map[string]any{"coverage": 0.4},
	})
	require.NoError(t, err)
	require.NotEmpty(t, v.ID)

	validations, err := q.ListValidations(ctx, id)
	require.NoError(t, err)
	require.Len(t, validations, 1)
	require.Equal(t, answer.ValidationWarning, validations[0].Status)
	require.Equal(t, 0.4, validations[0].Details["coverage"])

	for _, m := range []answer.MetricType{answer.MetricRelevance, answer.MetricOverall} {
		_, err := q.InsertScore(ctx, answer.ScoreRecord{AnswerID: id, MetricType: m, Score: 0.5, Weight: 0.4, Explanation: "x"})
		require.NoError(t, err)
	}
	scores, err := q.ListScores(ctx, id)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	require.Equal(t, answer.MetricOverall, scores[1].MetricType)
}

func TestEmbeddingCache(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)

	_, ok, err := q.LookupEmbedding(ctx, "OpenAI/text-embedding-3-small", "hello")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, q.StoreEmbedding(ctx, "OpenAI/text-embedding-3-small", "hello", []float64{0.1, -0.2, 0.3}))
	require.NoError(t, q.StoreEmbedding(ctx, "OpenAI/text-embedding-3-small", "hello", []float64{0.1, -0.2, 0.4}))

	got, ok, err := q.LookupEmbedding(ctx, "OpenAI/text-embedding-3-small", "hello")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float64{0.1, -0.2, 0.4}, got)

	_, ok, err = q.LookupEmbedding(ctx, "VoyageAI/voyage-3", "hello")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCachedAnswers(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)
	cached, err := NewCachedAnswers(q, 8)
	require.NoError(t, err)

	id, err := cached.CreateShell(ctx, &answer.Answer{QueryID: "q1", Content: "c", ProviderMetadata: map[string]string{"model": "gpt-4o-mini"}})
	require.NoError(t, err)

	_, err = cached.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 0, cached.Len(), "pending answers are not cached")

	_, err = cached.UpdateFinal(ctx, id, answer.Final{Status: answer.StatusRejected, IsValidated: true})
	require.NoError(t, err)
	require.Equal(t, 1, cached.Len())

	a, err := cached.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, answer.StatusRejected, a.Status)

	a.ProviderMetadata["model"] = "tampered"
	again, err := cached.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", again.ProviderMetadata["model"], "cached entry shares its metadata map")

	_, err = cached.UpdateFinal(ctx, id, answer.Final{Status: answer.StatusValidated, IsValidated: true})
	require.ErrorIs(t, err, answer.ErrResolved)
}

func TestDSN(t *testing.T) {
	tests := map[string]string{
		":memory:":                     ":memory:",
		"./vetter.db":                  "./vetter.db?" + filePragmas,
		"file:vetter.db?mode=rwc":      "file:vetter.db?mode=rwc&" + filePragmas,
		"x.db?_pragma=foreign_keys(1)": "x.db?_pragma=foreign_keys(1)",
	}
	for in, want := range tests {
		require.Equal(t, want, dsn(in), in)
	}
}
