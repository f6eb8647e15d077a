package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/solver"
	"yearn-vaults/internal/vault"
)

// FlowBuilder assembles the transactions for one action.
type FlowBuilder interface {
	Build(ctx context.Context, req solver.Request) (*solver.ActionFlow, error)
}

type ActionHandler struct {
	vaults *VaultHandler
	flow   FlowBuilder
	log    *logger.Logger
}

func NewActionHandler(vaults *VaultHandler, flow FlowBuilder, log *logger.Logger) *ActionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ActionHandler{vaults: vaults, flow: flow, log: log}
}

// ActionRequest is the body of POST /vaults/{chainID}/{address}/actions.
// Amount is the raw integer; AmountNormalized is a human amount scaled by
// the input token decimals. Tokens default to the vault's natural pair.
type ActionRequest struct {
	Action           string `json:"action"`
	InputToken       string `json:"inputToken"`
	OutputToken      string `json:"outputToken"`
	InputDecimals    int    `json:"inputDecimals"`
	OutputDecimals   int    `json:"outputDecimals"`
	Amount           string `json:"amount"`
	AmountNormalized string `json:"amountNormalized"`
	Owner            string `json:"owner"`
	AutoStake        bool   `json:"autoStake"`
	ZapProvider      string `json:"zapProvider"`
	SlippageBps      int    `json:"slippageBps"`
}

func (h *ActionHandler) BuildAction(w http.ResponseWriter, r *http.Request) {
	view, ok := h.vaults.viewFromRequest(w, r)
	if !ok {
		return
	}

	var body ActionRequest
	if err := decodeBody(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := toSolverRequest(view, body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	flow, err := h.flow.Build(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			respondError(w, http.StatusGatewayTimeout, "Request cancelled")
			return
		}
		h.log.Error("❌ Build %s for %s: %v", req.Action, view.Key(), err)
		respondError(w, http.StatusInternalServerError, "Failed to build action")
		return
	}

	respondJSON(w, http.StatusOK, flow)
}

func toSolverRequest(view vault.View, body ActionRequest) (solver.Request, error) {
	action, ok := solver.ParseAction(body.Action)
	if !ok {
		return solver.Request{}, errors.New("action must be deposit, withdraw or migrate")
	}
	if !common.IsHexAddress(body.Owner) {
		return solver.Request{}, errors.New("owner must be an address")
	}

	req := solver.Request{
		Vault:          view,
		Action:         action,
		Owner:          common.HexToAddress(body.Owner),
		AutoStake:      body.AutoStake,
		ZapProvider:    strings.ToLower(strings.TrimSpace(body.ZapProvider)),
		SlippageBps:    body.SlippageBps,
		InputDecimals:  body.InputDecimals,
		OutputDecimals: body.OutputDecimals,
	}

	vaultAddr := common.HexToAddress(view.Address)
	underlying := common.HexToAddress(view.Token.Address)
	defIn, defOut := underlying, vaultAddr
	switch action {
	case solver.ActionWithdraw:
		defIn, defOut = vaultAddr, underlying
	case solver.ActionMigrate:
		defIn, defOut = vaultAddr, common.HexToAddress(view.Migration.Target)
	}

	var err error
	if req.InputToken, err = tokenOr(body.InputToken, defIn, "inputToken"); err != nil {
		return solver.Request{}, err
	}
	if req.OutputToken, err = tokenOr(body.OutputToken, defOut, "outputToken"); err != nil {
		return solver.Request{}, err
	}

	req.Amount, err = parseAmount(body, decimalsOf(view, req.InputToken, body.InputDecimals))
	if err != nil {
		return solver.Request{}, err
	}
	return req, nil
}

func tokenOr(raw string, fallback common.Address, field string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.New(field + " must be an address")
	}
	return common.HexToAddress(raw), nil
}

func decimalsOf(view vault.View, token common.Address, given int) int {
	switch {
	case token == common.HexToAddress(view.Address):
		return view.Decimals
	case view.Token.Address != "" && token == common.HexToAddress(view.Token.Address):
		return view.Token.Decimals
	case given > 0:
		return given
	}
	return 18
}

func parseAmount(body ActionRequest, decimals int) (*uint256.Int, error) {
	if raw := strings.TrimSpace(body.Amount); raw != "" {
		amount, ok := vault.ParseRaw(raw)
		if !ok {
			return nil, errors.New("amount must be a non-negative integer")
		}
		return amount, nil
	}

	if human := strings.TrimSpace(body.AmountNormalized); human != "" {
		value, err := decimal.NewFromString(human)
		if err != nil {
			return nil, errors.New("amountNormalized must be a decimal number")
		}
		return vault.ToRaw(value, decimals)
	}

	return nil, errors.New("amount is required")
}
