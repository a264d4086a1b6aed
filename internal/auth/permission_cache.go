package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PermissionChecker 权限检查接口
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error)
}

type cachedDecision struct {
	allowed  bool
	expireAt time.Time
}

// PermissionCache 权限检查结果缓存
type PermissionCache struct {
	entries *sync.Map
	ttl     time.Duration
}

// NewPermissionCache 创建权限缓存
func NewPermissionCache(ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PermissionCache{
		entries: &sync.Map{},
		ttl:     ttl,
	}
}

func cacheKey(userID, relation, objectType, objectID string) string {
	return fmt.Sprintf("%s|%s|%s:%s", userID, relation, objectType, objectID)
}

// Get 查询缓存,过期条目视为未命中并移除
func (p *PermissionCache) Get(userID, relation, objectType, objectID string) (bool, bool) {
	key := cacheKey(userID, relation, objectType, objectID)
	raw, ok := p.entries.Load(key)
	if !ok {
		return false, false
	}

	entry := raw.(cachedDecision)
	if time.Now().After(entry.expireAt) {
		p.entries.Delete(key)
		return false, false
	}
	return entry.allowed, true
}

// Set 写入缓存
func (p *PermissionCache) Set(userID, relation, objectType, objectID string, allowed bool) {
	key := cacheKey(userID, relation, objectType, objectID)
	p.entries.Store(key, cachedDecision{
		allowed:  allowed,
		expireAt: time.Now().Add(p.ttl),
	})
}

// InvalidateUser 清除某用户的所有缓存条目
// 授权变更后调用,避免旧决策残留到 TTL 结束
func (p *PermissionCache) InvalidateUser(userID string) {
	prefix := userID + "|"
	p.entries.Range(func(key, _ interface{}) bool {
		if k, ok := key.(string); ok && len(k) > len(prefix) && k[:len(prefix)] == prefix {
			p.entries.Delete(key)
		}
		return true
	})
}

// Clear 清空缓存
func (p *PermissionCache) Clear() {
	p.entries.Range(func(key, _ interface{}) bool {
		p.entries.Delete(key)
		return true
	})
}

// CachedOpenFGAClient 带缓存的 OpenFGA 客户端
type CachedOpenFGAClient struct {
	inner *OpenFGAClient
	cache *PermissionCache
}

// NewCachedOpenFGAClient 创建带缓存的 OpenFGA 客户端
func NewCachedOpenFGAClient(inner *OpenFGAClient, ttl time.Duration) *CachedOpenFGAClient {
	return &CachedOpenFGAClient{
		inner: inner,
		cache: NewPermissionCache(ttl),
	}
}

// CheckPermission 检查权限,命中缓存时跳过远端调用
func (c *CachedOpenFGAClient) CheckPermission(ctx context.Context, userID, relation, objectType, objectID string) (bool, error) {
	if allowed, hit := c.cache.Get(userID, relation, objectType, objectID); hit {
		return allowed, nil
	}

	allowed, err := c.inner.CheckPermission(ctx, userID, relation, objectType, objectID)
	if err != nil {
		return false, err
	}

	c.cache.Set(userID, relation, objectType, objectID, allowed)
	return allowed, nil
}

// SetRelation 写入关系并使该用户缓存失效
func (c *CachedOpenFGAClient) SetRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	if err := c.inner.SetRelation(ctx, userID, relation, objectType, objectID); err != nil {
		return err
	}
	c.cache.InvalidateUser(userID)
	return nil
}

// DeleteRelation 删除关系并使该用户缓存失效
func (c *CachedOpenFGAClient) DeleteRelation(ctx context.Context, userID, relation, objectType, objectID string) error {
	if err := c.inner.DeleteRelation(ctx, userID, relation, objectType, objectID); err != nil {
		return err
	}
	c.cache.InvalidateUser(userID)
	return nil
}
