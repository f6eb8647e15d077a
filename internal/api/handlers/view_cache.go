package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"yearn-vaults/internal/syncer"
	"yearn-vaults/internal/vault"
)

// ViewCache keeps decoded vault views between requests.
type ViewCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewViewCache(ttl time.Duration) (*ViewCache, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1e4,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create view cache: %w", err)
	}
	return &ViewCache{cache: cache, ttl: ttl}, nil
}

func (c *ViewCache) Get(chainID uint64, address string) (vault.View, bool) {
	if c == nil {
		return vault.View{}, false
	}
	cached, ok := c.cache.Get(vault.MakeKey(chainID, address))
	if !ok {
		return vault.View{}, false
	}
	return cached.(vault.View), true
}

func (c *ViewCache) Set(view vault.View) {
	if c == nil {
		return
	}
	c.cache.SetWithTTL(view.Key(), view, 1, c.ttl)
}

// Forget drops one view, used when the hub announces an update.
func (c *ViewCache) Forget(chainID uint64, address string) {
	if c == nil {
		return
	}
	c.cache.Del(vault.MakeKey(chainID, address))
}

func (c *ViewCache) Clear() {
	if c != nil {
		c.cache.Clear()
	}
}

func (c *ViewCache) Close() {
	if c != nil {
		c.cache.Close()
	}
}

// Publish drops the cached view named by a vault.updated event. Events
// relayed from another process carry raw JSON.
func (c *ViewCache) Publish(event string, data interface{}) {
	if c == nil || event != syncer.EventVaultUpdated {
		return
	}

	switch v := data.(type) {
	case vault.View:
		c.Forget(v.ChainID, v.Address)
	case *vault.View:
		c.Forget(v.ChainID, v.Address)
	case json.RawMessage:
		var key struct {
			ChainID uint64 `json:"chainId"`
			Address string `json:"address"`
		}
		if err := json.Unmarshal(v, &key); err == nil && key.Address != "" {
			c.Forget(key.ChainID, key.Address)
		}
	}
}
