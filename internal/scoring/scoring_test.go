package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modfin/vetter/internal/answer"
)

type memScores struct {
	records []answer.ScoreRecord
	failAt  int
}

func (m *memScores) InsertScore(_ context.Context, r answer.ScoreRecord) (answer.ScoreRecord, error) {
	if m.failAt > 0 && len(m.records)+1 == m.failAt {
		return answer.ScoreRecord{}, errors.New("disk full")
	}
	m.records = append(m.records, r)
	return r, nil
}

func fixedAccuracy(v float64) AccuracyFunc {
	return func(string, string) (float64, error) { return v, nil }
}

func TestWeightsCombine(t *testing.T) {
	w := DefaultWeights()
	if got := w.Combine(0.8, 0.7, 0.6); got != 0.72 {
		t.Errorf("Combine() = %v, want 0.72", got)
	}
	if w.Sum() != 1.0 {
		t.Errorf("default weights sum to %v", w.Sum())
	}
}

func TestScoreDeterministicWithoutNoise(t *testing.T) {
	content := "Paris is the capital of France.\n\nIt sits on the Seine.\n\nIt is large."
	query := "What is the capital of France?"

	e := NewEngine(&memScores{}, DefaultWeights(), nil, WithNoise(0), WithAccuracy(fixedAccuracy(0.7)))
	s := e.Score(content, query)

	// terms: what, capital, france -> 2/3 found
	if s.Relevance != 0.67 {
		t.Errorf("relevance = %v, want 0.67", s.Relevance)
	}
	if s.Accuracy != 0.7 {
		t.Errorf("accuracy = %v, want 0.7", s.Accuracy)
	}
	wantCompleteness := round2(float64(len(content))/500*0.6 + 0.4)
	if s.Completeness != wantCompleteness {
		t.Errorf("completeness = %v, want %v", s.Completeness, wantCompleteness)
	}
	if s.Overall != DefaultWeights().Combine(s.Relevance, s.Accuracy, s.Completeness) {
		t.Errorf("overall %v not derived from components", s.Overall)
	}
}

func TestScoreNeutralRelevance(t *testing.T) {
	e := NewEngine(&memScores{}, DefaultWeights(), nil, WithNoise(0), WithAccuracy(fixedAccuracy(1)))
	if s := e.Score("anything at all", "is it"); s.Relevance != 0.5 {
		t.Errorf("relevance = %v, want 0.5", s.Relevance)
	}
}

func TestScoreSeededIsRepeatable(t *testing.T) {
	content := strings.Repeat("Some words about the topic. ", 20)
	query := "Tell me about the topic"

	a := NewEngine(&memScores{}, DefaultWeights(), nil, WithRand(NewRand(42)))
	b := NewEngine(&memScores{}, DefaultWeights(), nil, WithRand(NewRand(42)))

	if sa, sb := a.Score(content, query), b.Score(content, query); sa != sb {
		t.Errorf("seeded scores differ: %+v vs %+v", sa, sb)
	}
}

func TestScoreBounds(t *testing.T) {
	e := NewEngine(&memScores{}, DefaultWeights(), nil, WithRand(NewRand(7)))
	for i := 0; i < 200; i++ {
		s := e.Score(strings.Repeat("x", i*10), "some query words here")
		for _, v := range []float64{s.Relevance, s.Accuracy, s.Completeness, s.Overall} {
			if v < 0 || v > 1 {
				t.Fatalf("score out of range: %+v", s)
			}
		}
		if s.Accuracy < 0.6 {
			t.Fatalf("random accuracy below 0.6: %v", s.Accuracy)
		}
	}
}

func TestScoreFailureYieldsZero(t *testing.T) {
	tests := []struct {
		name string
		fn   AccuracyFunc
	}{
		{name: "Error", fn: func(string, string) (float64, error) { return 0, errors.New("fact checker down") }},
		{name: "Panic", fn: func(string, string) (float64, error) { panic("boom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(&memScores{}, DefaultWeights(), nil, WithAccuracy(tt.fn))
			if s := e.Score("content", "query text"); s != (Scores{}) {
				t.Errorf("expected zero scores, got %+v", s)
			}
		})
	}
}

func TestScoreAndPersist(t *testing.T) {
	store := &memScores{}
	e := NewEngine(store, DefaultWeights(), nil, WithNoise(0), WithAccuracy(fixedAccuracy(0.9)))
	a := &answer.Answer{ID: "a1", Content: "The capital of France is Paris."}

	got, err := e.ScoreAndPersist(context.Background(), a, "capital of France")
	if err != nil {
		t.Fatalf("ScoreAndPersist error: %v", err)
	}
	if got != a {
		t.Errorf("expected the same answer to be returned")
	}
	if len(store.records) != 4 {
		t.Fatalf("expected 4 score records, got %d", len(store.records))
	}

	wantTypes := []answer.MetricType{answer.MetricRelevance, answer.MetricAccuracy, answer.MetricCompleteness, answer.MetricOverall}
	wantWeights := []float64{0.4, 0.4, 0.2, 1.0}
	for i, rec := range store.records {
		if rec.MetricType != wantTypes[i] || rec.Weight != wantWeights[i] || rec.AnswerID != "a1" {
			t.Errorf("record %d unexpected: %+v", i, rec)
		}
	}
	if a.OverallScore != store.records[3].Score || a.AccuracyScore != 0.9 || a.RelevanceScore != 1 {
		t.Errorf("answer scores not updated: %+v", a)
	}
}

func TestScoreAndPersistPropagatesStoreError(t *testing.T) {
	store := &memScores{failAt: 2}
	e := NewEngine(store, DefaultWeights(), nil, WithNoise(0))
	a := &answer.Answer{ID: "a1", Content: "text"}

	if _, err := e.ScoreAndPersist(context.Background(), a, "query"); err == nil {
		t.Fatalf("expected error")
	}
	if a.OverallScore != 0 {
		t.Errorf("answer must not be mutated on failure")
	}
}

func TestScoreAndPersistUsingRand(t *testing.T) {
	content := "Paris is the capital of France.\n\nIt sits on the Seine."
	score := func(engineSeed, callSeed uint64) float64 {
		e := NewEngine(&memScores{}, DefaultWeights(), nil, WithRand(NewRand(engineSeed)))
		a := &answer.Answer{ID: "a1", Content: content}
		if _, err := e.ScoreAndPersist(context.Background(), a, "capital of France", UsingRand(NewRand(callSeed))); err != nil {
			t.Fatalf("ScoreAndPersist error: %v", err)
		}
		return a.OverallScore
	}

	// the engine source is not consulted when a call brings its own
	if score(1, 42) != score(2, 42) {
		t.Errorf("call source did not override engine source")
	}

	e := NewEngine(&memScores{}, DefaultWeights(), nil, WithRand(NewRand(42)))
	a := &answer.Answer{ID: "a1", Content: content}
	if _, err := e.ScoreAndPersist(context.Background(), a, "capital of France", UsingRand(nil)); err != nil {
		t.Fatalf("ScoreAndPersist error: %v", err)
	}
	if a.OverallScore != score(7, 42) {
		t.Errorf("nil call source should fall back to the engine source")
	}
}
