// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCacheConfig(t *testing.T) {
	config := DefaultCacheConfig()

	require.NotNil(t, config)
	assert.Equal(t, 5*time.Minute, config.DefaultTTL)
	assert.Equal(t, 1000, config.MaxSize)
	assert.True(t, config.EnableCompression)
	assert.Equal(t, 1*time.Minute, config.CleanupInterval)
	assert.NotEmpty(t, config.TTLByOperation)

	assert.Equal(t, 24*time.Hour, config.TTLByOperation["route.compute"])
	assert.Equal(t, 24*time.Hour, config.TTLByOperation["route.matrix"])
	assert.Equal(t, 30*24*time.Hour, config.TTLByOperation["geocode.lookup"])
}

func TestAggressiveCacheConfig(t *testing.T) {
	config := AggressiveCacheConfig()

	require.NotNil(t, config)
	assert.Equal(t, 24*time.Hour, config.DefaultTTL)
	assert.Equal(t, 5000, config.MaxSize)
}

func TestConservativeCacheConfig(t *testing.T) {
	config := ConservativeCacheConfig()

	require.NotNil(t, config)
	assert.Equal(t, 1*time.Hour, config.DefaultTTL)
	assert.Equal(t, 100, config.MaxSize)
	assert.Equal(t, 1*time.Hour, config.TTLByOperation["route.compute"])
	assert.Equal(t, 1*time.Hour, config.TTLByOperation["route.matrix"])
}

func TestCacheItem_IsExpired(t *testing.T) {
	t.Run("not expired", func(t *testing.T) {
		item := &CacheItem{
			Expiry: time.Now().Add(5 * time.Minute),
		}
		assert.False(t, item.IsExpired())
	})

	t.Run("expired", func(t *testing.T) {
		item := &CacheItem{
			Expiry: time.Now().Add(-5 * time.Minute),
		}
		assert.True(t, item.IsExpired())
	})
}

func TestNewResponseCache(t *testing.T) {
	t.Run("with config", func(t *testing.T) {
		config := &CacheConfig{
			DefaultTTL:      1 * time.Minute,
			MaxSize:         100,
			CleanupInterval: 30 * time.Second,
		}

		cache := NewResponseCache(config)
		defer cache.Close()

		require.NotNil(t, cache)
		assert.Equal(t, config, cache.config)
		assert.NotNil(t, cache.items)
		assert.NotNil(t, cache.stopCh)
	})

	t.Run("with nil config", func(t *testing.T) {
		cache := NewResponseCache(nil)
		defer cache.Close()

		require.NotNil(t, cache)
		assert.Equal(t, DefaultCacheConfig(), cache.config)
	})

	t.Run("no cleanup when interval is zero", func(t *testing.T) {
		config := &CacheConfig{
			DefaultTTL:      1 * time.Minute,
			MaxSize:         100,
			CleanupInterval: 0,
		}

		cache := NewResponseCache(config)
		defer cache.Close()

		require.NotNil(t, cache)
		assert.Nil(t, cache.cleanup)
	})
}

func TestResponseCache_GenerateKey(t *testing.T) {
	cache := NewResponseCache(nil)
	defer cache.Close()

	params1 := map[string]interface{}{
		"origin":      "cluster-12",
		"destination": "cluster-7",
	}

	params2 := map[string]interface{}{
		"destination": "cluster-7",
		"origin":      "cluster-12",
	}

	params3 := map[string]interface{}{
		"origin":      "cluster-99",
		"destination": "cluster-7",
	}

	key1 := cache.GenerateKey("route.compute", params1)
	key2 := cache.GenerateKey("route.compute", params2)
	key3 := cache.GenerateKey("route.compute", params3)

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.Contains(t, key1, "route.compute:")
}

func TestResponseCache_SetAndGet(t *testing.T) {
	cache := NewResponseCache(&CacheConfig{
		DefaultTTL: 1 * time.Minute,
		MaxSize:    10,
	})
	defer cache.Close()

	operation := "route.compute"
	params := map[string]interface{}{"origin": "cluster-12", "destination": "cluster-7"}
	value := []byte(`{"minutes":42}`)

	result, found := cache.Get(operation, params)
	assert.False(t, found)
	assert.Nil(t, result)

	cache.Set(operation, params, value)

	result, found = cache.Get(operation, params)
	assert.True(t, found)
	assert.Equal(t, value, result)

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.CurrentItems)
}

func TestResponseCache_ExpiredItems(t *testing.T) {
	cache := NewResponseCache(&CacheConfig{
		DefaultTTL: 1 * time.Millisecond,
		MaxSize:    10,
	})
	defer cache.Close()

	operation := "route.compute"
	params := map[string]interface{}{"origin": "cluster-12", "destination": "cluster-7"}
	value := []byte(`{"minutes":42}`)

	cache.Set(operation, params, value)
	time.Sleep(10 * time.Millisecond)

	result, found := cache.Get(operation, params)
	assert.False(t, found)
	assert.Nil(t, result)

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestResponseCache_OperationSpecificTTL(t *testing.T) {
	config := &CacheConfig{
		DefaultTTL: 5 * time.Minute,
		MaxSize:    10,
		TTLByOperation: map[string]time.Duration{
			"route.compute": 10 * time.Millisecond,
		},
	}

	cache := NewResponseCache(config)
	defer cache.Close()

	cache.Set("route.compute", map[string]interface{}{"origin": "cluster-12"}, []byte("data"))

	_, found := cache.Get("route.compute", map[string]interface{}{"origin": "cluster-12"})
	assert.True(t, found)

	time.Sleep(20 * time.Millisecond)

	_, found = cache.Get("route.compute", map[string]interface{}{"origin": "cluster-12"})
	assert.False(t, found)
}

func TestResponseCache_MaxSizeEviction(t *testing.T) {
	cache := NewResponseCache(&CacheConfig{
		DefaultTTL: 10 * time.Minute,
		MaxSize:    2,
	})
	defer cache.Close()

	cache.Set("route.compute", map[string]interface{}{"origin": "1"}, []byte("data1"))
	time.Sleep(time.Millisecond)

	cache.Set("route.compute", map[string]interface{}{"origin": "2"}, []byte("data2"))
	time.Sleep(time.Millisecond)

	cache.Set("route.compute", map[string]interface{}{"origin": "3"}, []byte("data3"))

	_, found1 := cache.Get("route.compute", map[string]interface{}{"origin": "1"})
	assert.False(t, found1)

	_, found2 := cache.Get("route.compute", map[string]interface{}{"origin": "2"})
	_, found3 := cache.Get("route.compute", map[string]interface{}{"origin": "3"})
	assert.True(t, found2)
	assert.True(t, found3)

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestResponseCache_Delete(t *testing.T) {
	cache := NewResponseCache(nil)
	defer cache.Close()

	operation := "route.compute"
	params := map[string]interface{}{"origin": "cluster-12"}

	cache.Set(operation, params, []byte("data"))

	_, found := cache.Get(operation, params)
	assert.True(t, found)

	cache.Delete(operation, params)

	_, found = cache.Get(operation, params)
	assert.False(t, found)

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Deletions)
}

func TestResponseCache_InvalidatePattern(t *testing.T) {
	cache := NewResponseCache(nil)
	defer cache.Close()

	cache.Set("route.compute", map[string]interface{}{"origin": "1"}, []byte("data1"))
	cache.Set("route.matrix", map[string]interface{}{}, []byte("data2"))
	cache.Set("geocode.lookup", map[string]interface{}{"address": "1"}, []byte("data3"))

	count := cache.InvalidatePattern("route.*")
	assert.Equal(t, 2, count)

	_, found1 := cache.Get("route.compute", map[string]interface{}{"origin": "1"})
	_, found2 := cache.Get("route.matrix", map[string]interface{}{})
	assert.False(t, found1)
	assert.False(t, found2)

	_, found3 := cache.Get("geocode.lookup", map[string]interface{}{"address": "1"})
	assert.True(t, found3)

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.PatternInvalidations)
}

func TestResponseCache_Clear(t *testing.T) {
	cache := NewResponseCache(nil)
	defer cache.Close()

	cache.Set("route.compute", map[string]interface{}{"origin": "1"}, []byte("data1"))
	cache.Set("route.matrix", map[string]interface{}{}, []byte("data2"))

	stats := cache.GetStats()
	assert.Equal(t, int64(2), stats.CurrentItems)

	cache.Clear()

	stats = cache.GetStats()
	assert.Equal(t, int64(0), stats.CurrentItems)
	assert.Equal(t, int64(1), stats.Clears)
	assert.Equal(t, int64(2), stats.Evictions)
}

func TestResponseCache_GetDetailedStats(t *testing.T) {
	cache := NewResponseCache(nil)
	defer cache.Close()

	cache.Set("route.compute", map[string]interface{}{"origin": "123"}, []byte("test data"))
	cache.Get("route.compute", map[string]interface{}{"origin": "123"})

	detailedStats := cache.GetDetailedStats()

	assert.Equal(t, int64(1), detailedStats.Basic.CurrentItems)
	assert.Len(t, detailedStats.Items, 1)

	item := detailedStats.Items[0]
	assert.Contains(t, item.Key, "route.compute:")
	assert.Equal(t, int64(9), item.Size)
	assert.Equal(t, int64(1), item.HitCount)
	assert.True(t, item.TTL > 0)
	assert.True(t, item.Age >= 0)
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		key     string
		pattern string
		matches bool
	}{
		{"route.compute:abc123", "route.*", true},
		{"route.matrix:def456", "route.*", true},
		{"geocode.lookup:ghi789", "route.*", false},
		{"anything", "*", true},
		{"exact.match", "exact.match", true},
		{"not.match", "exact.match", false},
		{"prefix.something", "prefix.*", true},
		{"other.something", "prefix.*", false},
	}

	for _, tt := range tests {
		t.Run(tt.key+"_"+tt.pattern, func(t *testing.T) {
			result := matchesPattern(tt.key, tt.pattern)
			assert.Equal(t, tt.matches, result)
		})
	}
}

func TestNewCacheManager(t *testing.T) {
	t.Run("with config", func(t *testing.T) {
		config := &CacheConfig{MaxSize: 100}
		manager := NewCacheManager(config)
		defer manager.Close()

		require.NotNil(t, manager)
		assert.Equal(t, config, manager.config)
	})

	t.Run("with nil config", func(t *testing.T) {
		manager := NewCacheManager(nil)
		defer manager.Close()

		require.NotNil(t, manager)
		assert.Equal(t, DefaultCacheConfig(), manager.config)
	})
}

func TestCacheManager_GetCache(t *testing.T) {
	manager := NewCacheManager(nil)
	defer manager.Close()

	cache1 := manager.GetCache("composition")
	require.NotNil(t, cache1)

	cache2 := manager.GetCache("composition")
	assert.Equal(t, cache1, cache2)

	cache3 := manager.GetCache("seasonal_plan")
	assert.NotEqual(t, cache1, cache3)
}

func TestCacheManager_InvalidateAll(t *testing.T) {
	manager := NewCacheManager(nil)
	defer manager.Close()

	cache1 := manager.GetCache("composition")
	cache2 := manager.GetCache("seasonal_plan")

	cache1.Set("route.compute", map[string]interface{}{"origin": "1"}, []byte("data1"))
	cache2.Set("route.compute", map[string]interface{}{"origin": "2"}, []byte("data2"))

	_, found1 := cache1.Get("route.compute", map[string]interface{}{"origin": "1"})
	_, found2 := cache2.Get("route.compute", map[string]interface{}{"origin": "2"})
	assert.True(t, found1)
	assert.True(t, found2)

	manager.InvalidateAll()

	_, found1 = cache1.Get("route.compute", map[string]interface{}{"origin": "1"})
	_, found2 = cache2.Get("route.compute", map[string]interface{}{"origin": "2"})
	assert.False(t, found1)
	assert.False(t, found2)
}

func TestCacheManager_GetGlobalStats(t *testing.T) {
	manager := NewCacheManager(nil)
	defer manager.Close()

	cache1 := manager.GetCache("composition")
	cache2 := manager.GetCache("seasonal_plan")

	cache1.Set("route.compute", map[string]interface{}{"origin": "1"}, []byte("data1"))
	cache2.Set("route.compute", map[string]interface{}{"origin": "2"}, []byte("data2"))

	stats := manager.GetGlobalStats()

	assert.Len(t, stats, 2)
	assert.Contains(t, stats, "composition")
	assert.Contains(t, stats, "seasonal_plan")

	assert.Equal(t, int64(1), stats["composition"].CurrentItems)
	assert.Equal(t, int64(1), stats["seasonal_plan"].CurrentItems)
}

func TestGetCacheConfigForProfile(t *testing.T) {
	tests := []struct {
		profile  PerformanceProfile
		expected func(*CacheConfig) bool
	}{
		{
			ProfileHighThroughput,
			func(c *CacheConfig) bool { return c.MaxSize == 5000 },
		},
		{
			ProfileLowLatency,
			func(c *CacheConfig) bool { return c.DefaultTTL == 30*time.Minute },
		},
		{
			ProfileConservative,
			func(c *CacheConfig) bool { return c.MaxSize == 100 },
		},
		{
			ProfileBatch,
			func(c *CacheConfig) bool { return c.DefaultTTL == 7*24*time.Hour && c.MaxSize == 10000 },
		},
		{
			PerformanceProfile("unknown"),
			func(c *CacheConfig) bool { return c.DefaultTTL == 5*time.Minute },
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			config := GetCacheConfigForProfile(tt.profile)
			require.NotNil(t, config)
			assert.True(t, tt.expected(config))
		})
	}
}

func TestResponseCache_Cleanup(t *testing.T) {
	cache := NewResponseCache(&CacheConfig{
		DefaultTTL:      10 * time.Millisecond,
		MaxSize:         10,
		CleanupInterval: 5 * time.Millisecond,
	})
	defer cache.Close()

	cache.Set("route.compute", map[string]interface{}{"origin": "123"}, []byte("data"))

	_, found := cache.Get("route.compute", map[string]interface{}{"origin": "123"})
	assert.True(t, found)

	time.Sleep(30 * time.Millisecond)

	stats := cache.GetStats()
	assert.Equal(t, int64(0), stats.CurrentItems)
}

func TestResponseCache_Close(t *testing.T) {
	cache := NewResponseCache(&CacheConfig{
		CleanupInterval: 1 * time.Millisecond,
	})

	cache.Set("test", map[string]interface{}{}, []byte("data"))

	cache.Close()
	cache.Close()
}
