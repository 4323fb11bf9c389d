package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/modfin/henry/slicez"
	"github.com/modfin/vetter/internal/answer"
	"github.com/modfin/vetter/internal/textutil"
)

// RelevanceRule checks how many of the query terms the answer mentions.
type RelevanceRule struct {
	// PassAt and WarnAt are coverage thresholds, defaulting to 0.5 and 0.25.
	PassAt float64
	WarnAt float64
}

func (RelevanceRule) Type() answer.ValidationType { return answer.ValidationRelevance }

func (r RelevanceRule) Validate(_ context.Context, vc Context) (Verdict, error) {
	passAt, warnAt := r.PassAt, r.WarnAt
	if passAt == 0 {
		passAt = 0.5
	}
	if warnAt == 0 {
		warnAt = 0.25
	}

	coverage, found, ok := textutil.Coverage(vc.AnswerContent, vc.QueryText)
	if !ok {
		return warn("Query has no terms to match against", 0.5, nil), nil
	}

	details := map[string]any{
		"coverage":    coverage,
		"found_terms": found,
		"query_terms": textutil.Terms(vc.QueryText),
	}
	switch {
	case coverage >= passAt:
		return pass(fmt.Sprintf("Answer covers %.0f%% of the query terms", coverage*100), coverage, details), nil
	case coverage >= warnAt:
		return warn(fmt.Sprintf("Answer only covers %.0f%% of the query terms", coverage*100), coverage, details), nil
	default:
		return fail(fmt.Sprintf("Answer does not appear to address the query (%.0f%% term coverage)", coverage*100), 1-coverage, details), nil
	}
}

// CompletenessRule fails answers below MinLength and warns on answers that
// are a single block of text.
type CompletenessRule struct {
	MinLength     int
	MinParagraphs int
}

func (CompletenessRule) Type() answer.ValidationType { return answer.ValidationCompleteness }

func (r CompletenessRule) Validate(_ context.Context, vc Context) (Verdict, error) {
	minParagraphs := r.MinParagraphs
	if minParagraphs == 0 {
		minParagraphs = 2
	}
	length := textutil.Length(vc.AnswerContent)
	paragraphs := textutil.Paragraphs(vc.AnswerContent)
	details := map[string]any{"length": length, "paragraphs": paragraphs}

	if length < r.MinLength {
		return fail(fmt.Sprintf("Answer is too short (%d < %d characters)", length, r.MinLength), 1.0, details), nil
	}
	if paragraphs < minParagraphs {
		return warn(fmt.Sprintf("Answer has %d paragraph(s), expected at least %d", paragraphs, minParagraphs), 0.7, details), nil
	}
	return pass("Answer is reasonably complete", 0.8, details), nil
}

// CitationRule counts citations in the answer.
type CitationRule struct {
	MinCitations int
	Patterns     []string
}

func (CitationRule) Type() answer.ValidationType { return answer.ValidationCitation }

func (r CitationRule) Validate(_ context.Context, vc Context) (Verdict, error) {
	count, err := CountCitations(vc.AnswerContent, r.Patterns...)
	if err != nil {
		return Verdict{}, err
	}
	details := map[string]any{"citations": count, "required": r.MinCitations}

	switch {
	case r.MinCitations > 0 && count < r.MinCitations:
		return fail(fmt.Sprintf("Found %d citation(s), %d required", count, r.MinCitations), 1.0, details), nil
	case count == 0:
		return warn("Answer contains no citations", 0.6, details), nil
	default:
		return pass(fmt.Sprintf("Found %d citation(s)", count), 1.0, details), nil
	}
}

// BrandSafetyRule fails on Blocked terms and warns on Caution terms. Matching
// is case-insensitive.
type BrandSafetyRule struct {
	Blocked []string
	Caution []string
}

func (BrandSafetyRule) Type() answer.ValidationType { return answer.ValidationBrandSafety }

func (r BrandSafetyRule) Validate(_ context.Context, vc Context) (Verdict, error) {
	lower := strings.ToLower(vc.AnswerContent)
	contains := func(term string) bool {
		return term != "" && strings.Contains(lower, strings.ToLower(term))
	}

	if blocked := slicez.Filter(r.Blocked, contains); len(blocked) > 0 {
		return fail(fmt.Sprintf("Answer contains blocked terms: %s", strings.Join(blocked, ", ")), 1.0,
			map[string]any{"blocked": blocked}), nil
	}
	if caution := slicez.Filter(r.Caution, contains); len(caution) > 0 {
		return warn(fmt.Sprintf("Answer contains sensitive terms: %s", strings.Join(caution, ", ")), 0.8,
			map[string]any{"caution": caution}), nil
	}
	return pass("No brand safety issues found", 1.0, nil), nil
}
