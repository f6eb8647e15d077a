package handlers

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/positions"
)

type PositionReader interface {
	ForAccount(ctx context.Context, chainID uint64, owner common.Address) ([]positions.Position, error)
}

type PositionHandler struct {
	positions PositionReader
	log       *logger.Logger
}

func NewPositionHandler(reader PositionReader, log *logger.Logger) *PositionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &PositionHandler{positions: reader, log: log}
}

// Positions answers GET /accounts/{address}/positions?chainId=1
func (h *PositionHandler) Positions(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !common.IsHexAddress(address) {
		respondError(w, http.StatusBadRequest, "Invalid account address")
		return
	}
	chainID, err := parseChainID(r.URL.Query().Get("chainId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "chainId is required")
		return
	}

	list, err := h.positions.ForAccount(r.Context(), chainID, common.HexToAddress(address))
	if err != nil {
		h.log.Error("❌ Positions of %s on %d: %v", address, chainID, err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch positions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"chainId":   chainID,
		"owner":     common.HexToAddress(address).Hex(),
		"positions": list,
	})
}
