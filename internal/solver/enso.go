package solver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"yearn-vaults/internal/vault"
)

type EnsoRouteRequest struct {
	ChainID     uint64
	From        common.Address
	Receiver    common.Address
	TokenIn     common.Address
	TokenOut    common.Address
	AmountIn    *uint256.Int
	SlippageBps int
}

type EnsoTx struct {
	To    string `json:"to"`
	From  string `json:"from"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

type EnsoRoute struct {
	AmountOut   string   `json:"amountOut"`
	Gas         string   `json:"gas"`
	PriceImpact *float64 `json:"priceImpact"`
	Tx          EnsoTx   `json:"tx"`
}

type EnsoRouter interface {
	Route(ctx context.Context, req EnsoRouteRequest) (*EnsoRoute, error)
}

// EnsoClient asks the Enso shortcut API for a swap-and-deposit route.
type EnsoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewEnsoClient(baseURL, apiKey string, timeout time.Duration) *EnsoClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EnsoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *EnsoClient) Route(ctx context.Context, req EnsoRouteRequest) (*EnsoRoute, error) {
	if req.AmountIn == nil || req.AmountIn.IsZero() {
		return nil, fmt.Errorf("enso: amount is required")
	}

	query := url.Values{}
	query.Set("chainId", strconv.FormatUint(req.ChainID, 10))
	query.Set("fromAddress", req.From.Hex())
	query.Set("receiver", req.Receiver.Hex())
	query.Set("spender", req.From.Hex())
	query.Set("tokenIn", req.TokenIn.Hex())
	query.Set("tokenOut", req.TokenOut.Hex())
	query.Set("amountIn", req.AmountIn.Dec())
	query.Set("slippage", strconv.Itoa(req.SlippageBps))
	query.Set("routingStrategy", "router")

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var route EnsoRoute
	target := c.baseURL + "/shortcuts/route?" + query.Encode()
	if err := doJSON(ctx, c.httpClient, "enso", "route", http.MethodGet, target, headers, nil, &route); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(route.Tx.To) || route.Tx.Data == "" {
		return nil, fmt.Errorf("enso: route carries no transaction")
	}
	return &route, nil
}

type ensoSolver struct {
	router EnsoRouter
}

func (s ensoSolver) Plan(ctx context.Context, req Request, env Env) (*Plan, error) {
	route, err := s.router.Route(ctx, EnsoRouteRequest{
		ChainID:     req.ChainID(),
		From:        req.Owner,
		Receiver:    req.Owner,
		TokenIn:     req.InputToken,
		TokenOut:    req.OutputToken,
		AmountIn:    req.Amount,
		SlippageBps: req.SlippageBps,
	})
	if err != nil {
		return nil, err
	}

	expected, ok := vault.ParseRaw(route.AmountOut)
	if !ok {
		return nil, fmt.Errorf("enso: invalid amountOut %q", route.AmountOut)
	}

	router := common.HexToAddress(route.Tx.To)
	value := route.Tx.Value
	if value == "" {
		value = "0"
	}
	call := SimulatedCall{
		ChainID:     req.ChainID(),
		To:          router.Hex(),
		Data:        route.Tx.Data,
		Value:       value,
		Method:      "route",
		Description: fmt.Sprintf("Zap into %s via Enso", req.Vault.Name),
	}
	if req.Action == ActionWithdraw {
		call.Description = fmt.Sprintf("Zap out of %s via Enso", req.Vault.Name)
	}

	plan := &Plan{ExpectedOut: expected, Calls: []SimulatedCall{call}}
	if req.InputToken != NativeToken {
		plan.Spender = router
	}
	return plan, nil
}
