package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"yearn-vaults/internal/command"
)

// Clearer drops a cache.
type Clearer interface {
	Clear()
}

// Commands executes bus commands against the sync service.
type Commands struct {
	service *Service
	caches  []Clearer
	// background carries trigger_sync passes beyond the request that
	// started them
	background context.Context
}

func NewCommands(background context.Context, service *Service, caches ...Clearer) *Commands {
	return &Commands{service: service, caches: caches, background: background}
}

func (c *Commands) Handle(ctx context.Context, cmd *command.CommandMessage) (map[string]interface{}, error) {
	switch cmd.Type {
	case command.CommandTriggerSync:
		if c.service.Status().Running {
			return nil, ErrAlreadyRunning
		}
		go func() {
			if _, err := c.service.SyncAll(c.background); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				c.service.log.Error("❌ Triggered sync failed: %v", err)
			}
		}()
		return map[string]interface{}{"started": true}, nil

	case command.CommandSyncVault:
		chainID, err := payloadUint(cmd.Payload, "chainId")
		if err != nil {
			return nil, err
		}
		address, _ := cmd.Payload["address"].(string)
		if address == "" {
			return nil, fmt.Errorf("address is required")
		}
		view, err := c.service.SyncVault(ctx, chainID, address)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"key": view.Key(), "name": view.Name}, nil

	case command.CommandClearCache:
		for _, cache := range c.caches {
			cache.Clear()
		}
		return map[string]interface{}{"cleared": len(c.caches)}, nil

	case command.CommandGetSyncStatus:
		status := c.service.Status()
		data := map[string]interface{}{
			"running":  status.Running,
			"last_run": status.LastRun,
			"total":    status.LastResult.Total,
			"updated":  status.LastResult.Updated,
			"failed":   status.LastResult.Failed,
			"stale":    status.LastResult.Stale,
		}
		if status.LastError != "" {
			data["last_error"] = status.LastError
		}
		return data, nil
	}

	return nil, fmt.Errorf("unknown command: %s", cmd.Type)
}

// payloadUint reads a number that may have crossed JSON as float64 or
// string.
func payloadUint(payload map[string]interface{}, key string) (uint64, error) {
	switch v := payload[key].(type) {
	case float64:
		if v > 0 {
			return uint64(v), nil
		}
	case int:
		if v > 0 {
			return uint64(v), nil
		}
	case uint64:
		if v > 0 {
			return v, nil
		}
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%s is required", key)
}
