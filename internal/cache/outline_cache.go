package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"gopherai-study/internal/model"
)

// OutlineCache holds recently read unified outlines per session. A nil
// *OutlineCache is valid and caches nothing.
type OutlineCache struct {
	lru *expirable.LRU[string, []model.UnifiedSection]
}

func NewOutlineCache(size int, ttl time.Duration) *OutlineCache {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	return &OutlineCache{lru: expirable.NewLRU[string, []model.UnifiedSection](size, nil, ttl)}
}

func (c *OutlineCache) Get(ctx context.Context, sessionID string) ([]model.UnifiedSection, bool) {
	if c == nil {
		return nil, false
	}
	sections, ok := c.lru.Get(sessionID)
	if ok {
		logutil.GetLogger(ctx).Debug("session outline cache hit", zap.String("session_id", sessionID))
	}
	return sections, ok
}

func (c *OutlineCache) Set(sessionID string, sections []model.UnifiedSection) {
	if c == nil {
		return
	}
	c.lru.Add(sessionID, sections)
}

func (c *OutlineCache) Invalidate(sessionID string) {
	if c == nil {
		return
	}
	c.lru.Remove(sessionID)
}
