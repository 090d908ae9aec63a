package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/logging"
)

// DefaultCacheTTL is how long provider responses are reused.
const DefaultCacheTTL = 6 * time.Hour

// Cache stores provider responses by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// =============================================================================
// REDIS
// =============================================================================

// RedisCache is a Cache on a Redis server. Keys are namespaced by Prefix.
type RedisCache struct {
	rdb    *goredis.Client
	Prefix string
}

// RedisOptions locate the cache server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb, Prefix: "shift-forecast:"}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(rdb *goredis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, Prefix: "shift-forecast:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, c.Prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.Prefix+key, value, ttl).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error { return c.rdb.Close() }

// =============================================================================
// CACHING DECORATORS
// =============================================================================

// CachedWeather serves repeated weather lookups from a Cache. Cache
// failures are logged and fall through to the provider.
type CachedWeather struct {
	Next  forecast.WeatherProvider
	Cache Cache
	TTL   time.Duration
	Log   logrus.FieldLogger
}

func (c *CachedWeather) DailyWeather(ctx context.Context, from, to time.Time, loc forecast.Location) ([]forecast.WeatherDay, error) {
	if !loc.Valid() {
		return nil, nil
	}
	key := strings.Join([]string{
		"weather",
		strconv.FormatFloat(*loc.Lat, 'f', 4, 64),
		strconv.FormatFloat(*loc.Lon, 'f', 4, 64),
		forecast.FormatDate(from),
		forecast.FormatDate(to),
	}, ":")

	var cached []forecast.WeatherDay
	if lookup(ctx, c.Cache, key, &cached, c.logger()) {
		return cached, nil
	}
	days, err := c.Next.DailyWeather(ctx, from, to, loc)
	if err != nil {
		return nil, err
	}
	store(ctx, c.Cache, key, days, c.TTL, c.logger())
	return days, nil
}

func (c *CachedWeather) logger() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return logging.Component("weather-cache")
}

// CachedHolidays serves repeated holiday lookups from a Cache.
type CachedHolidays struct {
	Next  forecast.HolidayProvider
	Cache Cache
	TTL   time.Duration
	Log   logrus.FieldLogger
}

func (c *CachedHolidays) Holidays(ctx context.Context, from, to time.Time, countryCode string) ([]forecast.Holiday, error) {
	key := strings.Join([]string{
		"holidays",
		strings.ToUpper(strings.TrimSpace(countryCode)),
		forecast.FormatDate(from),
		forecast.FormatDate(to),
	}, ":")

	var cached []forecast.Holiday
	if lookup(ctx, c.Cache, key, &cached, c.logger()) {
		return cached, nil
	}
	list, err := c.Next.Holidays(ctx, from, to, countryCode)
	if err != nil {
		return nil, err
	}
	store(ctx, c.Cache, key, list, c.TTL, c.logger())
	return list, nil
}

func (c *CachedHolidays) logger() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return logging.Component("holiday-cache")
}

func lookup(ctx context.Context, cache Cache, key string, out any, log logrus.FieldLogger) bool {
	if cache == nil {
		return false
	}
	b, ok, err := cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache entry unreadable")
		return false
	}
	return true
}

func store(ctx context.Context, cache Cache, key string, v any, ttl time.Duration, log logrus.FieldLogger) {
	if cache == nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := cache.Set(ctx, key, b, ttl); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}
