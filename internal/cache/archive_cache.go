package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/world"
	"github.com/go-redis/redis/v8"
)

// ArchiveCacheConfig параметры Redis-кеша архивов.
type ArchiveCacheConfig struct {
	RedisURL      string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	KeyPrefix     string
}

// CacheMetrics метрики кеша архивов.
type CacheMetrics struct {
	TotalRequests int64     `json:"total_requests"`
	CacheHits     int64     `json:"cache_hits"`
	CacheMisses   int64     `json:"cache_misses"`
	RedisErrors   int64     `json:"redis_errors"`
	HitRatio      float64   `json:"hit_ratio"`
	LastUpdate    time.Time `json:"last_update"`
}

var _ world.ArchiveStore = (*RedisArchiveCache)(nil)

// RedisArchiveCache Hot Cache архивов регионов поверх постоянного хранилища.
// Чтение идет через Redis (Read-Through), запись сначала в хранилище, затем в Redis.
// Ошибки Redis не ломают запрос: хранилище остается источником истины.
type RedisArchiveCache struct {
	client *redis.Client
	store  world.ArchiveStore
	ttl    time.Duration
	prefix string
	log    *logging.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	requests atomic.Int64
	errs     atomic.Int64

	metricsMutex sync.Mutex
	lastUpdate   time.Time
}

// NewRedisArchiveCache подключается к Redis и проверяет соединение.
func NewRedisArchiveCache(config ArchiveCacheConfig, store world.ArchiveStore) (*RedisArchiveCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := NewRedisArchiveCacheWithClient(rdb, store, config.TTL, config.KeyPrefix)
	c.log.Info("🧊 Redis кеш архивов: %s (TTL %s)", config.RedisURL, c.ttl)
	return c, nil
}

// NewRedisArchiveCacheWithClient создает кеш на готовом клиенте без проверки соединения
func NewRedisArchiveCacheWithClient(client *redis.Client, store world.ArchiveStore, ttl time.Duration, prefix string) *RedisArchiveCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if prefix == "" {
		prefix = "region:archive:"
	}
	return &RedisArchiveCache{
		client: client,
		store:  store,
		ttl:    ttl,
		prefix: prefix,
		log:    logging.GetComponentLogger("archive-cache"),
	}
}

func (c *RedisArchiveCache) key(regionID uint64) string {
	return fmt.Sprintf("%s%016x", c.prefix, regionID)
}

// LoadArchive читает архив из Redis, при промахе из хранилища с заполнением кеша
func (c *RedisArchiveCache) LoadArchive(ctx context.Context, regionID uint64) ([]byte, error) {
	c.requests.Add(1)

	val, err := c.client.Get(ctx, c.key(regionID)).Bytes()
	if err == nil {
		c.hits.Add(1)
		return val, nil
	}
	c.misses.Add(1)
	if !errors.Is(err, redis.Nil) {
		c.errs.Add(1)
		c.log.Warn("⚠️ Redis недоступен при чтении архива 0x%X: %v", regionID, err)
	}

	data, err := c.store.LoadArchive(ctx, regionID)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, c.key(regionID), data, c.ttl).Err(); err != nil {
		c.errs.Add(1)
		c.log.Debug("Архив 0x%X не помещен в кеш: %v", regionID, err)
	}
	return data, nil
}

// SaveArchive пишет архив в хранилище и обновляет кеш
func (c *RedisArchiveCache) SaveArchive(ctx context.Context, regionID uint64, data []byte) error {
	if err := c.store.SaveArchive(ctx, regionID, data); err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(regionID), data, c.ttl).Err(); err != nil {
		c.errs.Add(1)
		c.log.Warn("⚠️ Архив 0x%X сохранен, но кеш не обновлен: %v", regionID, err)
		c.client.Del(ctx, c.key(regionID))
	}
	return nil
}

// Invalidate убирает архив из кеша
func (c *RedisArchiveCache) Invalidate(ctx context.Context, regionID uint64) error {
	if err := c.client.Del(ctx, c.key(regionID)).Err(); err != nil {
		c.errs.Add(1)
		return fmt.Errorf("invalidate archive 0x%X: %w", regionID, err)
	}
	return nil
}

// GetMetrics снимок метрик кеша
func (c *RedisArchiveCache) GetMetrics() CacheMetrics {
	c.metricsMutex.Lock()
	c.lastUpdate = time.Now()
	updated := c.lastUpdate
	c.metricsMutex.Unlock()

	m := CacheMetrics{
		TotalRequests: c.requests.Load(),
		CacheHits:     c.hits.Load(),
		CacheMisses:   c.misses.Load(),
		RedisErrors:   c.errs.Load(),
		LastUpdate:    updated,
	}
	if total := m.CacheHits + m.CacheMisses; total > 0 {
		m.HitRatio = float64(m.CacheHits) / float64(total)
	}
	return m
}

// Close закрывает соединение с Redis; хранилище закрывает его владелец
func (c *RedisArchiveCache) Close() error {
	return c.client.Close()
}
