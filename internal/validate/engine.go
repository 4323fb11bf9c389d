package validate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modfin/vetter/internal/answer"
)

// Context is what every rule gets to look at.
type Context struct {
	QueryID          string
	QueryText        string
	AnswerContent    string
	Provider         string
	ProviderMetadata map[string]string
}

type Verdict struct {
	Type       answer.ValidationType
	Status     answer.ValidationStatus
	Message    string
	Confidence float64
	Details    map[string]any
}

// Rule is a single quality gate. Implementations are shared between runs and
// must not keep per-call state.
type Rule interface {
	Type() answer.ValidationType
	Validate(ctx context.Context, vc Context) (Verdict, error)
}

type Engine struct {
	rules    []Rule
	store    answer.ValidationResultStore
	criteria Criteria
	logger   *slog.Logger
}

func NewEngine(store answer.ValidationResultStore, criteria Criteria, logger *slog.Logger, rules ...Rule) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rules:    rules,
		store:    store,
		criteria: criteria,
		logger:   logger,
	}
}

func (e *Engine) Register(r Rule) {
	e.rules = append(e.rules, r)
}

// CheckCriteria runs the simple criteria check against the configured defaults.
func (e *Engine) CheckCriteria(content, query string) CriteriaResult {
	return CheckCriteria(content, query, e.criteria)
}

// RunRules evaluates every registered rule in order and persists one result
// per rule. A rule that errors or panics is recorded as failed and the
// remaining rules still run. Only a persistence error aborts.
func (e *Engine) RunRules(ctx context.Context, a *answer.Answer, queryText string) ([]answer.ValidationResult, error) {
	vc := Context{
		QueryID:          a.QueryID,
		QueryText:        queryText,
		AnswerContent:    a.Content,
		Provider:         a.Provider,
		ProviderMetadata: a.ProviderMetadata,
	}

	results := make([]answer.ValidationResult, 0, len(e.rules))
	for _, rule := range e.rules {
		verdict, err := evaluate(ctx, rule, vc)
		if err != nil {
			e.logger.Warn("validation rule failed", "answer_id", a.ID, "rule", rule.Type(), "err", err)
			verdict = Verdict{
				Type:       rule.Type(),
				Status:     answer.ValidationFailed,
				Message:    fmt.Sprintf("Error during validation: %s", err.Error()),
				Confidence: 1.0,
			}
		}
		if verdict.Type == "" {
			verdict.Type = rule.Type()
		}

		res, err := e.store.InsertValidation(ctx, answer.ValidationResult{
			AnswerID:       a.ID,
			ValidationType: verdict.Type,
			Status:         verdict.Status,
			Message:        verdict.Message,
			Confidence:     verdict.Confidence,
			Details:        verdict.Details,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to persist %s validation: %w", rule.Type(), err)
		}
		e.logger.Debug("validation", "answer_id", a.ID, "rule", res.ValidationType, "status", res.Status, "confidence", res.Confidence)
		results = append(results, res)
	}
	return results, nil
}

func evaluate(ctx context.Context, rule Rule, vc Context) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return rule.Validate(ctx, vc)
}

// HasFailures reports whether any result failed.
func HasFailures(results []answer.ValidationResult) bool {
	for _, r := range results {
		if r.Status == answer.ValidationFailed {
			return true
		}
	}
	return false
}

func pass(msg string, confidence float64, details map[string]any) Verdict {
	return Verdict{Status: answer.ValidationPassed, Message: msg, Confidence: confidence, Details: details}
}

func warn(msg string, confidence float64, details map[string]any) Verdict {
	return Verdict{Status: answer.ValidationWarning, Message: msg, Confidence: confidence, Details: details}
}

func fail(msg string, confidence float64, details map[string]any) Verdict {
	return Verdict{Status: answer.ValidationFailed, Message: msg, Confidence: confidence, Details: details}
}
