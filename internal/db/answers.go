package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/modfin/vetter/internal/answer"
)

const answerColumns = `id, query_id, content, provider, provider_metadata,
	relevance_score, accuracy_score, completeness_score, overall_score,
	is_validated, status, created_at, updated_at`

func (q *Queries) CreateShell(ctx context.Context, a *answer.Answer) (string, error) {

	const createShell = `
INSERT INTO answers (id, query_id, content, provider, provider_metadata, status)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id
`

	meta, err := json.Marshal(a.ProviderMetadata)
	if err != nil {
		return "", fmt.Errorf("marshal provider metadata: %w", err)
	}
	status := a.Status
	if status == "" {
		status = answer.StatusPending
	}

	var id string
	err = q.db.QueryRowContext(ctx, createShell,
		uuid.NewString(),
		a.QueryID,
		a.Content,
		a.Provider,
		string(meta),
		status,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert answer: %w", err)
	}
	return id, nil
}

func (q *Queries) UpdateFinal(ctx context.Context, id string, f answer.Final) (*answer.Answer, error) {

	const updateFinal = `
UPDATE answers
SET relevance_score = ?,
    accuracy_score = ?,
    completeness_score = ?,
    overall_score = ?,
    is_validated = ?,
    status = ?,
    updated_at = strftime('%s', 'now')
WHERE id = ?
  AND status = 'pending'
RETURNING ` + answerColumns

	row := q.db.QueryRowContext(ctx, updateFinal,
		f.RelevanceScore,
		f.AccuracyScore,
		f.CompletenessScore,
		f.OverallScore,
		f.IsValidated,
		f.Status,
		id,
	)
	a, err := scanAnswer(row)
	if errors.Is(err, answer.ErrNotFound) {
		// either missing or no longer pending
		if _, findErr := q.FindByID(ctx, id); findErr == nil {
			err = answer.ErrResolved
		}
	}
	if err != nil {
		return nil, fmt.Errorf("update answer %s: %w", id, err)
	}
	return a, nil
}

func (q *Queries) FindByID(ctx context.Context, id string) (*answer.Answer, error) {

	const findByID = `SELECT ` + answerColumns + ` FROM answers WHERE id = ?`

	a, err := scanAnswer(q.db.QueryRowContext(ctx, findByID, id))
	if err != nil {
		return nil, fmt.Errorf("find answer %s: %w", id, err)
	}
	return a, nil
}

func (q *Queries) ListByQuery(ctx context.Context, queryID string) ([]*answer.Answer, error) {

	const listByQuery = `SELECT ` + answerColumns + ` FROM answers WHERE query_id = ? ORDER BY created_at, rowid`

	rows, err := q.db.QueryContext(ctx, listByQuery, queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*answer.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnswer(row scanner) (*answer.Answer, error) {
	var a answer.Answer
	var meta string
	var created, updated int64
	err := row.Scan(
		&a.ID,
		&a.QueryID,
		&a.Content,
		&a.Provider,
		&meta,
		&a.RelevanceScore,
		&a.AccuracyScore,
		&a.CompletenessScore,
		&a.OverallScore,
		&a.IsValidated,
		&a.Status,
		&created,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, answer.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if meta != "" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &a.ProviderMetadata); err != nil {
			return nil, fmt.Errorf("decoding provider metadata: %w", err)
		}
	}
	a.CreatedAt = time.Unix(created, 0)
	a.UpdatedAt = time.Unix(updated, 0)
	return &a, nil
}
