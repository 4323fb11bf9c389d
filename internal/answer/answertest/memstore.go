// Package answertest provides an in-memory implementation of the answer
// stores for tests.
package answertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/modfin/vetter/internal/answer"
)

type MemStore struct {
	mu sync.Mutex

	seq         int
	Answers     map[string]answer.Answer
	Metadata    []answer.MetadataEntry
	Validations []answer.ValidationResult
	Scores      []answer.ScoreRecord

	// Failure injection, checked before each write.
	FailCreate   error
	FailUpdate   error
	FailMetadata error
	FailScore    error
}

func New() *MemStore {
	return &MemStore{Answers: map[string]answer.Answer{}}
}

func (m *MemStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *MemStore) CreateShell(_ context.Context, a *answer.Answer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate != nil {
		return "", m.FailCreate
	}
	cp := *a
	cp.ID = m.nextID("answer")
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.Answers[cp.ID] = cp
	return cp.ID, nil
}

func (m *MemStore) UpdateFinal(_ context.Context, id string, f answer.Final) (*answer.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdate != nil {
		return nil, m.FailUpdate
	}
	a, ok := m.Answers[id]
	if !ok {
		return nil, answer.ErrNotFound
	}
	if a.Status.Terminal() {
		return nil, answer.ErrResolved
	}
	a.RelevanceScore = f.RelevanceScore
	a.AccuracyScore = f.AccuracyScore
	a.CompletenessScore = f.CompletenessScore
	a.OverallScore = f.OverallScore
	a.IsValidated = f.IsValidated
	a.Status = f.Status
	a.UpdatedAt = time.Now()
	m.Answers[id] = a
	return &a, nil
}

func (m *MemStore) FindByID(_ context.Context, id string) (*answer.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Answers[id]
	if !ok {
		return nil, answer.ErrNotFound
	}
	return &a, nil
}

func (m *MemStore) AppendMany(_ context.Context, answerID string, entries []answer.MetadataEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMetadata != nil {
		return m.FailMetadata
	}
	for _, e := range entries {
		e.ID = m.nextID("meta")
		e.AnswerID = answerID
		m.Metadata = append(m.Metadata, e)
	}
	return nil
}

func (m *MemStore) InsertValidation(_ context.Context, r answer.ValidationResult) (answer.ValidationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID("validation")
	m.Validations = append(m.Validations, r)
	return r, nil
}

func (m *MemStore) InsertScore(_ context.Context, r answer.ScoreRecord) (answer.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailScore != nil {
		return answer.ScoreRecord{}, m.FailScore
	}
	r.ID = m.nextID("score")
	m.Scores = append(m.Scores, r)
	return r, nil
}

// MetadataFor returns the entries stored for answerID with the given key.
func (m *MemStore) MetadataFor(answerID, key string) []answer.MetadataEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []answer.MetadataEntry
	for _, e := range m.Metadata {
		if e.AnswerID == answerID && e.Key == key {
			out = append(out, e)
		}
	}
	return out
}
