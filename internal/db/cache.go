package db

import (
	"context"
	"maps"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/modfin/vetter/internal/answer"
)

// CachedAnswers keeps resolved answers in an LRU in front of an AnswerStore.
// Pending shells are never cached since they are about to change.
type CachedAnswers struct {
	answer.AnswerStore
	cache *lru.Cache[string, answer.Answer]
}

func NewCachedAnswers(store answer.AnswerStore, size int) (*CachedAnswers, error) {
	cache, err := lru.New[string, answer.Answer](size)
	if err != nil {
		return nil, err
	}
	return &CachedAnswers{AnswerStore: store, cache: cache}, nil
}

func (c *CachedAnswers) UpdateFinal(ctx context.Context, id string, f answer.Final) (*answer.Answer, error) {
	a, err := c.AnswerStore.UpdateFinal(ctx, id, f)
	if err != nil {
		c.cache.Remove(id)
		return nil, err
	}
	c.remember(a)
	return a, nil
}

func (c *CachedAnswers) FindByID(ctx context.Context, id string) (*answer.Answer, error) {
	if a, ok := c.cache.Get(id); ok {
		a.ProviderMetadata = maps.Clone(a.ProviderMetadata)
		return &a, nil
	}
	a, err := c.AnswerStore.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.remember(a)
	return a, nil
}

func (c *CachedAnswers) remember(a *answer.Answer) {
	if a.Status.Terminal() {
		cp := *a
		cp.ProviderMetadata = maps.Clone(a.ProviderMetadata)
		c.cache.Add(a.ID, cp)
	}
}

func (c *CachedAnswers) Len() int {
	return c.cache.Len()
}
