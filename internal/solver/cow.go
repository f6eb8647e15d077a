package solver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"yearn-vaults/internal/vault"
)

// CowVaultRelayer pulls sell tokens for settled CoW orders on every chain.
var CowVaultRelayer = common.HexToAddress("0xC92E8bdf79f0507f65a392b0ab4667716BFE0110")

var cowNetworks = map[uint64]string{
	1:        "mainnet",
	100:      "xdai",
	8453:     "base",
	42161:    "arbitrum_one",
	11155111: "sepolia",
}

const zeroAppData = "0x0000000000000000000000000000000000000000000000000000000000000000"

type CowQuoteRequest struct {
	ChainID    uint64
	SellToken  common.Address
	BuyToken   common.Address
	From       common.Address
	Receiver   common.Address
	SellAmount *uint256.Int
}

// CowOrder is the order the wallet signs and posts to the order book.
type CowOrder struct {
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	Receiver          string `json:"receiver"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	FeeAmount         string `json:"feeAmount"`
	ValidTo           int64  `json:"validTo"`
	AppData           string `json:"appData"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	SellTokenBalance  string `json:"sellTokenBalance"`
	BuyTokenBalance   string `json:"buyTokenBalance"`
}

type CowQuote struct {
	Quote      CowOrder `json:"quote"`
	From       string   `json:"from"`
	Expiration string   `json:"expiration"`
	ID         int64    `json:"id"`
}

type CowQuoter interface {
	Quote(ctx context.Context, req CowQuoteRequest) (*CowQuote, error)
}

type CowClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCowClient(baseURL string, timeout time.Duration) *CowClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CowClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type cowQuoteBody struct {
	SellToken           string `json:"sellToken"`
	BuyToken            string `json:"buyToken"`
	Receiver            string `json:"receiver"`
	From                string `json:"from"`
	Kind                string `json:"kind"`
	SellAmountBeforeFee string `json:"sellAmountBeforeFee"`
	AppData             string `json:"appData"`
	PartiallyFillable   bool   `json:"partiallyFillable"`
	SellTokenBalance    string `json:"sellTokenBalance"`
	BuyTokenBalance     string `json:"buyTokenBalance"`
	SigningScheme       string `json:"signingScheme"`
}

func (c *CowClient) Quote(ctx context.Context, req CowQuoteRequest) (*CowQuote, error) {
	network, ok := cowNetworks[req.ChainID]
	if !ok {
		return nil, fmt.Errorf("%w: cowswap on chain %d", ErrUnsupported, req.ChainID)
	}
	if req.SellAmount == nil || req.SellAmount.IsZero() {
		return nil, fmt.Errorf("cowswap: amount is required")
	}

	body := cowQuoteBody{
		SellToken:           req.SellToken.Hex(),
		BuyToken:            req.BuyToken.Hex(),
		Receiver:            req.Receiver.Hex(),
		From:                req.From.Hex(),
		Kind:                "sell",
		SellAmountBeforeFee: req.SellAmount.Dec(),
		AppData:             zeroAppData,
		SellTokenBalance:    "erc20",
		BuyTokenBalance:     "erc20",
		SigningScheme:       "eip712",
	}

	var quote CowQuote
	target := fmt.Sprintf("%s/%s/api/v1/quote", c.baseURL, network)
	if err := doJSON(ctx, c.httpClient, "cowswap", "quote", http.MethodPost, target, nil, body, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

type cowSolver struct {
	quoter CowQuoter
}

func (s cowSolver) Plan(ctx context.Context, req Request, env Env) (*Plan, error) {
	quote, err := s.quoter.Quote(ctx, CowQuoteRequest{
		ChainID:    req.ChainID(),
		SellToken:  req.InputToken,
		BuyToken:   req.OutputToken,
		From:       req.Owner,
		Receiver:   req.Owner,
		SellAmount: req.Amount,
	})
	if err != nil {
		return nil, err
	}

	expected, ok := vault.ParseRaw(quote.Quote.BuyAmount)
	if !ok {
		return nil, fmt.Errorf("cowswap: invalid buyAmount %q", quote.Quote.BuyAmount)
	}
	minOut := applySlippage(expected, req.SlippageBps)

	order := quote.Quote
	order.BuyAmount = minOut.Dec()
	if order.Receiver == "" {
		order.Receiver = req.Owner.Hex()
	}

	return &Plan{
		Spender:     CowVaultRelayer,
		ExpectedOut: expected,
		MinOut:      minOut,
		Order:       &order,
	}, nil
}
