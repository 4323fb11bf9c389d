package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/modfin/vetter/internal/db/vec"
)

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// LookupEmbedding returns the cached vector for text under model, if any.
func (q *Queries) LookupEmbedding(ctx context.Context, model string, text string) ([]float64, bool, error) {

	const lookup = `SELECT vector FROM embeddings WHERE model = ? AND digest = ?`

	var bin []byte
	err := q.db.QueryRowContext(ctx, lookup, model, digest(text)).Scan(&bin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vector, err := vec.DecodeFloat64s(bin)
	if err != nil {
		return nil, false, fmt.Errorf("decoding embedding vector: %w", err)
	}
	return vector, true, nil
}

func (q *Queries) StoreEmbedding(ctx context.Context, model string, text string, vector []float64) error {

	const store = `
INSERT INTO embeddings (model, digest, vector)
VALUES (?, ?, ?)
ON CONFLICT (model, digest) DO
	UPDATE SET vector = excluded.vector
`

	_, err := q.db.ExecContext(ctx, store, model, digest(text), vec.EncodeFloat64s(vector))
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}
