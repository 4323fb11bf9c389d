package validate

import (
	"context"
	"fmt"

	"github.com/modfin/vetter/internal/answer"
	"github.com/modfin/vetter/internal/db/vec"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SemanticRelevanceRule compares query and answer embeddings by cosine
// similarity. Threshold defaults to 0.5; half of it still yields a warning.
type SemanticRelevanceRule struct {
	Embedder  Embedder
	Threshold float64
}

func (SemanticRelevanceRule) Type() answer.ValidationType { return answer.ValidationSemantic }

func (r SemanticRelevanceRule) Validate(ctx context.Context, vc Context) (Verdict, error) {
	if r.Embedder == nil {
		return Verdict{}, fmt.Errorf("no embedder configured")
	}
	threshold := r.Threshold
	if threshold == 0 {
		threshold = 0.5
	}

	q, err := r.Embedder.Embed(ctx, vc.QueryText)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to embed query: %w", err)
	}
	a, err := r.Embedder.Embed(ctx, vc.AnswerContent)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to embed answer: %w", err)
	}
	sim, err := vec.Cosine(q, a)
	if err != nil {
		return Verdict{}, err
	}

	details := map[string]any{"similarity": sim, "threshold": threshold}
	confidence := max(0, min(1, sim))
	switch {
	case sim >= threshold:
		return pass(fmt.Sprintf("Answer is semantically close to the query (%.2f)", sim), confidence, details), nil
	case sim >= threshold/2:
		return warn(fmt.Sprintf("Answer is loosely related to the query (%.2f)", sim), confidence, details), nil
	default:
		return fail(fmt.Sprintf("Answer is semantically distant from the query (%.2f)", sim), 1-confidence, details), nil
	}
}
