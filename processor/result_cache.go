package processor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nci/gomemcache/memcache"
	"github.com/rs/zerolog"

	"github.com/oceanografia/bathy/metrics"
)

// ResultCache memoises the JSON encoding of point and matrix results. The
// source datasets never change, so entries stay valid for the process
// lifetime in the in-process tier; memcache entries expire after ttl.
// A nil *ResultCache caches nothing.
type ResultCache struct {
	l1  *lru.Cache[string, []byte]
	mc  *memcache.Client
	ttl int32
	log zerolog.Logger
}

func NewResultCache(size int, memcacheAddr string, ttl time.Duration, log zerolog.Logger) (*ResultCache, error) {
	l1, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("result cache: %v", err)
	}
	c := &ResultCache{l1: l1, ttl: int32(ttl / time.Second), log: log}
	if len(strings.TrimSpace(memcacheAddr)) > 0 {
		// lazy connection; errors returned in .Get
		c.mc = memcache.New(memcacheAddr)
	}
	return c, nil
}

// CacheKey hashes the query parameters into a memcache safe key.
func CacheKey(kind ArtifactKind, dataset string, params ...float64) string {
	var b strings.Builder
	b.WriteString(dataset)
	for _, p := range params {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(p, 'g', -1, 64))
	}
	return fmt.Sprintf("bathy:%s:%016x", kind, xxhash.Sum64String(b.String()))
}

func (c *ResultCache) get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	if v, ok := c.l1.Get(key); ok {
		metrics.IncCacheHit("memory")
		return v, true
	}
	metrics.IncCacheMiss("memory")

	if c.mc == nil {
		return nil, false
	}
	item, err := c.mc.Get(key)
	if err != nil {
		if err != memcache.ErrCacheMiss {
			c.log.Debug().Err(err).Str("key", key).Msg("memcache get failed")
		}
		metrics.IncCacheMiss("memcache")
		return nil, false
	}
	metrics.IncCacheHit("memcache")
	c.l1.Add(key, item.Value)
	return item.Value, true
}

// Load decodes a cached result into out.
func (c *ResultCache) Load(key string, out interface{}) bool {
	v, ok := c.get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(v, out); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cached result")
		c.l1.Remove(key)
		return false
	}
	return true
}

func (c *ResultCache) Store(key string, result interface{}) {
	if c == nil {
		return
	}
	v, err := json.Marshal(result)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("result not cacheable")
		return
	}
	c.l1.Add(key, v)
	if c.mc != nil {
		// don't care about errors; memcache may not necessarily retain this anyway
		c.mc.Set(&memcache.Item{Key: key, Value: v, Expiration: c.ttl})
	}
}
