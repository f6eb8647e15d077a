package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"yearn-vaults/internal/command"
	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/syncer"
)

// AdminHandler forwards operator actions to the syncer over the command
// bus.
type AdminHandler struct {
	dispatcher command.Dispatcher
	caches     []syncer.Clearer
	timeout    time.Duration
	log        *logger.Logger
}

// NewAdminHandler takes the caches of this process; clear_cache empties
// them as well as the syncer's.
func NewAdminHandler(dispatcher command.Dispatcher, log *logger.Logger, caches ...syncer.Clearer) *AdminHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AdminHandler{dispatcher: dispatcher, caches: caches, timeout: 60 * time.Second, log: log}
}

func (h *AdminHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, command.CommandTriggerSync, nil)
}

func (h *AdminHandler) SyncVault(w http.ResponseWriter, r *http.Request) {
	chainID, address, err := vaultKey(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.dispatch(w, r, command.CommandSyncVault, map[string]interface{}{
		"chainId": chainID,
		"address": address,
	})
}

func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	for _, cache := range h.caches {
		cache.Clear()
	}
	h.dispatch(w, r, command.CommandClearCache, nil)
}

func (h *AdminHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, command.CommandGetSyncStatus, nil)
}

func (h *AdminHandler) dispatch(w http.ResponseWriter, r *http.Request, cmdType string, payload map[string]interface{}) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.dispatcher.Dispatch(ctx, cmdType, payload)
	if err != nil {
		if errors.Is(err, command.ErrUnavailable) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.log.Error("❌ Command %s failed: %v", cmdType, err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	if !resp.Success {
		status := http.StatusBadRequest
		if resp.Error == syncer.ErrAlreadyRunning.Error() {
			status = http.StatusConflict
		}
		respondJSON(w, status, resp)
		return
	}

	h.log.Info("⚙️ Command %s done (%s)", cmdType, resp.ID)
	respondJSON(w, http.StatusOK, resp)
}
