package docstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"etapabot/internal/core/errx"
	logx "etapabot/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ReportCache stores document reports keyed by document number.
type ReportCache interface {
	Get(ctx context.Context, documento string) (Report, bool, error)
	Set(ctx context.Context, report Report) error
}

type RedisReportCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisReportCache(rdb redis.Cmdable, ttl time.Duration) *RedisReportCache {
	return &RedisReportCache{rdb: rdb, ttl: ttl}
}

func (c *RedisReportCache) reportKey(documento string) string {
	return fmt.Sprintf("docstatus:%s:report", documento)
}

func (c *RedisReportCache) Get(ctx context.Context, documento string) (Report, bool, error) {
	key := c.reportKey(documento)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Report{}, false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load report from redis")
		return Report{}, false, errx.WrapRedis(err)
	}

	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to unmarshal cached report")
		return Report{}, false, fmt.Errorf("unmarshal report: %w", err)
	}
	return r, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, report Report) error {
	b, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	key := c.reportKey(report.Documento)
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to store report in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ ReportCache = (*RedisReportCache)(nil)

type memoryEntry struct {
	report  Report
	expires time.Time
}

// MemoryReportCache is the fallback when Redis is not configured.
type MemoryReportCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryReportCache(ttl time.Duration) *MemoryReportCache {
	return &MemoryReportCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryReportCache) Get(_ context.Context, documento string) (Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[documento]
	if !ok {
		return Report{}, false, nil
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.entries, documento)
		return Report{}, false, nil
	}
	return e.report, true, nil
}

func (c *MemoryReportCache) Set(_ context.Context, report Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[report.Documento] = memoryEntry{report: report, expires: c.now().Add(c.ttl)}
	return nil
}

var _ ReportCache = (*MemoryReportCache)(nil)
