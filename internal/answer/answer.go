package answer

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("answer not found")
	// ErrResolved is returned when finalizing an answer that already left pending.
	ErrResolved = errors.New("answer already resolved")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusValidated || s == StatusRejected
}

type ValidationType string

const (
	ValidationRelevance       ValidationType = "relevance"
	ValidationFactualAccuracy ValidationType = "factual_accuracy"
	ValidationCompleteness    ValidationType = "completeness"
	ValidationBrandSafety     ValidationType = "brand_safety"
	ValidationCitation        ValidationType = "citation"
	ValidationSemantic        ValidationType = "semantic_relevance"
)

type ValidationStatus string

const (
	ValidationPassed  ValidationStatus = "passed"
	ValidationFailed  ValidationStatus = "failed"
	ValidationWarning ValidationStatus = "warning"
)

type MetricType string

const (
	MetricRelevance      MetricType = "relevance"
	MetricAccuracy       MetricType = "accuracy"
	MetricCompleteness   MetricType = "completeness"
	MetricHelpfulness    MetricType = "helpfulness"
	MetricBrandAlignment MetricType = "brand_alignment"
	MetricOverall        MetricType = "overall"
)

// Answer is the aggregate root of one generation attempt. Validations, scores
// and metadata are owned by it through AnswerID.
type Answer struct {
	ID               string            `json:"id"`
	QueryID          string            `json:"query_id"`
	Content          string            `json:"content"`
	Provider         string            `json:"provider"`
	ProviderMetadata map[string]string `json:"provider_metadata,omitempty"`

	RelevanceScore    float64 `json:"relevance_score"`
	AccuracyScore     float64 `json:"accuracy_score"`
	CompletenessScore float64 `json:"completeness_score"`
	OverallScore      float64 `json:"overall_score"`

	IsValidated bool   `json:"is_validated"`
	Status      Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Final is the set of fields written when an answer leaves the pipeline.
type Final struct {
	RelevanceScore    float64
	AccuracyScore     float64
	CompletenessScore float64
	OverallScore      float64
	IsValidated       bool
	Status            Status
}

func (a *Answer) Final() Final {
	return Final{
		RelevanceScore:    a.RelevanceScore,
		AccuracyScore:     a.AccuracyScore,
		CompletenessScore: a.CompletenessScore,
		OverallScore:      a.OverallScore,
		IsValidated:       a.IsValidated,
		Status:            a.Status,
	}
}

type ValidationResult struct {
	ID             string           `json:"id"`
	AnswerID       string           `json:"answer_id"`
	ValidationType ValidationType   `json:"validation_type"`
	Status         ValidationStatus `json:"status"`
	Message        string           `json:"message"`
	Confidence     float64          `json:"confidence"`
	Details        map[string]any   `json:"details,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

type ScoreRecord struct {
	ID          string     `json:"id"`
	AnswerID    string     `json:"answer_id"`
	MetricType  MetricType `json:"metric_type"`
	Score       float64    `json:"score"`
	Weight      float64    `json:"weight"`
	Explanation string     `json:"explanation"`
	CreatedAt   time.Time  `json:"created_at"`
}

type MetadataEntry struct {
	ID        string    `json:"id"`
	AnswerID  string    `json:"answer_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

type AnswerStore interface {
	CreateShell(ctx context.Context, a *Answer) (string, error)
	UpdateFinal(ctx context.Context, id string, f Final) (*Answer, error)
	FindByID(ctx context.Context, id string) (*Answer, error)
}

type MetadataStore interface {
	AppendMany(ctx context.Context, answerID string, entries []MetadataEntry) error
}

type ValidationResultStore interface {
	InsertValidation(ctx context.Context, r ValidationResult) (ValidationResult, error)
}

type ScoreStore interface {
	InsertScore(ctx context.Context, r ScoreRecord) (ScoreRecord, error)
}
