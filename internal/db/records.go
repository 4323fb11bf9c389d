package db

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/modfin/vetter/internal/answer"
)

func (q *Queries) AppendMany(ctx context.Context, answerID string, entries []answer.MetadataEntry) error {

	const appendMetadata = `
INSERT INTO answer_metadata (id, answer_id, key, value)
VALUES (?, ?, ?, ?)
`

	for _, e := range entries {
		_, err := q.db.ExecContext(ctx, appendMetadata, uuid.NewString(), answerID, e.Key, e.Value)
		if err != nil {
			return fmt.Errorf("insert metadata %s: %w", e.Key, err)
		}
	}
	return nil
}

func (q *Queries) InsertValidation(ctx context.Context, r answer.ValidationResult) (answer.ValidationResult, error) {

	const insertValidation = `
INSERT INTO validation_results (id, answer_id, validation_type, status, message, confidence, details)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id, created_at
`

	details, err := json.Marshal(r.Details)
	if err != nil {
		return answer.ValidationResult{}, fmt.Errorf("marshal details: %w", err)
	}

	var created int64
	err = q.db.QueryRowContext(ctx, insertValidation,
		uuid.NewString(),
		r.AnswerID,
		r.ValidationType,
		r.Status,
		r.Message,
		r.Confidence,
		string(details),
	).Scan(&r.ID, &created)
	if err != nil {
		return answer.ValidationResult{}, fmt.Errorf("insert validation result: %w", err)
	}
	r.CreatedAt = time.Unix(created, 0)
	return r, nil
}

func (q *Queries) InsertScore(ctx context.Context, r answer.ScoreRecord) (answer.ScoreRecord, error) {

	const insertScore = `
INSERT INTO score_records (id, answer_id, metric_type, score, weight, explanation)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, created_at
`

	var created int64
	err := q.db.QueryRowContext(ctx, insertScore,
		uuid.NewString(),
		r.AnswerID,
		r.MetricType,
		r.Score,
		r.Weight,
		r.Explanation,
	).Scan(&r.ID, &created)
	if err != nil {
		return answer.ScoreRecord{}, fmt.Errorf("insert score record: %w", err)
	}
	r.CreatedAt = time.Unix(created, 0)
	return r, nil
}

func (q *Queries) ListMetadata(ctx context.Context, answerID string) ([]answer.MetadataEntry, error) {

	const listMetadata = `
SELECT id, answer_id, key, value, created_at
FROM answer_metadata
WHERE answer_id = ?
ORDER BY rowid
`

	rows, err := q.db.QueryContext(ctx, listMetadata, answerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []answer.MetadataEntry
	for rows.Next() {
		var i answer.MetadataEntry
		var created int64
		if err := rows.Scan(&i.ID, &i.AnswerID, &i.Key, &i.Value, &created); err != nil {
			return nil, err
		}
		i.CreatedAt = time.Unix(created, 0)
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) ListValidations(ctx context.Context, answerID string) ([]answer.ValidationResult, error) {

	const listValidations = `
SELECT id, answer_id, validation_type, status, message, confidence, details, created_at
FROM validation_results
WHERE answer_id = ?
ORDER BY rowid
`

	rows, err := q.db.QueryContext(ctx, listValidations, answerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []answer.ValidationResult
	for rows.Next() {
		var i answer.ValidationResult
		var details string
		var created int64
		if err := rows.Scan(
			&i.ID,
			&i.AnswerID,
			&i.ValidationType,
			&i.Status,
			&i.Message,
			&i.Confidence,
			&details,
			&created,
		); err != nil {
			return nil, err
		}
		if details != "" && details != "null" {
			if err := json.Unmarshal([]byte(details), &i.Details); err != nil {
				return nil, fmt.Errorf("decoding validation details: %w", err)
			}
		}
		i.CreatedAt = time.Unix(created, 0)
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) ListScores(ctx context.Context, answerID string) ([]answer.ScoreRecord, error) {

	const listScores = `
SELECT id, answer_id, metric_type, score, weight, explanation, created_at
FROM score_records
WHERE answer_id = ?
ORDER BY rowid
`

	rows, err := q.db.QueryContext(ctx, listScores, answerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []answer.ScoreRecord
	for rows.Next() {
		var i answer.ScoreRecord
		var created int64
		if err := rows.Scan(
			&i.ID,
			&i.AnswerID,
			&i.MetricType,
			&i.Score,
			&i.Weight,
			&i.Explanation,
			&created,
		); err != nil {
			return nil, err
		}
		i.CreatedAt = time.Unix(created, 0)
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
