package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPermissionCacheHitAndExpiry(t *testing.T) {
	cache := NewPermissionCache(50 * time.Millisecond)

	_, hit := cache.Get("u1", "viewer", "template", "tpl-1")
	assert.False(t, hit)

	cache.Set("u1", "viewer", "template", "tpl-1", true)
	allowed, hit := cache.Get("u1", "viewer", "template", "tpl-1")
	assert.True(t, hit)
	assert.True(t, allowed)

	cache.Set("u1", "editor", "template", "tpl-1", false)
	allowed, hit = cache.Get("u1", "editor", "template", "tpl-1")
	assert.True(t, hit)
	assert.False(t, allowed)

	time.Sleep(60 * time.Millisecond)
	_, hit = cache.Get("u1", "viewer", "template", "tpl-1")
	assert.False(t, hit, "过期条目应视为未命中")
}

func TestPermissionCacheInvalidateUser(t *testing.T) {
	cache := NewPermissionCache(time.Minute)

	cache.Set("u1", "viewer", "template", "tpl-1", true)
	cache.Set("u1", "editor", "study", "s1", true)
	cache.Set("u2", "viewer", "template", "tpl-1", true)

	cache.InvalidateUser("u1")

	_, hit := cache.Get("u1", "viewer", "template", "tpl-1")
	assert.False(t, hit)
	_, hit = cache.Get("u1", "editor", "study", "s1")
	assert.False(t, hit)

	allowed, hit := cache.Get("u2", "viewer", "template", "tpl-1")
	assert.True(t, hit)
	assert.True(t, allowed)
}

func TestPermissionCacheClear(t *testing.T) {
	cache := NewPermissionCache(time.Minute)
	cache.Set("u1", "viewer", "template", "tpl-1", true)
	cache.Clear()

	_, hit := cache.Get("u1", "viewer", "template", "tpl-1")
	assert.False(t, hit)
}

func TestParseRSAPublicKey(t *testing.T) {
	// 65537 的 base64url 编码为 AQAB
	key, err := parseRSAPublicKey("sXch6vZcO9Tc", "AQAB")
	assert.NoError(t, err)
	assert.Equal(t, 65537, key.E)
	assert.NotNil(t, key.N)

	_, err = parseRSAPublicKey("!!!", "AQAB")
	assert.Error(t, err)
}
