package solver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsoClientRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/shortcuts/route", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("chainId"))
		assert.Equal(t, dai.Hex(), q.Get("tokenIn"))
		assert.Equal(t, vaultAddr.Hex(), q.Get("tokenOut"))
		assert.Equal(t, "5000", q.Get("amountIn"))
		assert.Equal(t, "30", q.Get("slippage"))
		assert.Equal(t, user.Hex(), q.Get("fromAddress"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"amountOut": "4990",
			"gas":       "210000",
			"tx":        map[string]string{"to": partner.Hex(), "data": "0x01", "value": "0"},
		})
	}))
	defer server.Close()

	client := NewEnsoClient(server.URL+"/", "secret", time.Second)
	route, err := client.Route(context.Background(), EnsoRouteRequest{
		ChainID:     1,
		From:        user,
		Receiver:    user,
		TokenIn:     dai,
		TokenOut:    vaultAddr,
		AmountIn:    uint256.NewInt(5000),
		SlippageBps: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "4990", route.AmountOut)
	assert.Equal(t, partner.Hex(), route.Tx.To)
}

func TestEnsoClientSurfacesUpstreamMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Could not find a route"}`))
	}))
	defer server.Close()

	_, err := NewEnsoClient(server.URL, "", time.Second).Route(context.Background(), EnsoRouteRequest{
		ChainID: 1, AmountIn: uint256.NewInt(1),
	})
	require.Error(t, err)
	assert.Equal(t, "enso: Could not find a route", err.Error())
}

func TestEnsoClientRejectsEmptyTx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"amountOut":"1","tx":{}}`))
	}))
	defer server.Close()

	_, err := NewEnsoClient(server.URL, "", time.Second).Route(context.Background(), EnsoRouteRequest{
		ChainID: 1, AmountIn: uint256.NewInt(1),
	})
	assert.Error(t, err)
}

func TestCowClientQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/base/api/v1/quote", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sell", body["kind"])
		assert.Equal(t, "123456", body["sellAmountBeforeFee"])
		assert.Equal(t, dai.Hex(), body["sellToken"])

		_, _ = w.Write([]byte(`{"quote":{"sellToken":"x","buyToken":"y","sellAmount":"123000","buyAmount":"777","kind":"sell","validTo":1700000000},"from":"z","id":42}`))
	}))
	defer server.Close()

	quote, err := NewCowClient(server.URL, time.Second).Quote(context.Background(), CowQuoteRequest{
		ChainID:    8453,
		SellToken:  dai,
		BuyToken:   vaultAddr,
		From:       user,
		Receiver:   user,
		SellAmount: uint256.NewInt(123456),
	})
	require.NoError(t, err)
	assert.Equal(t, "777", quote.Quote.BuyAmount)
	assert.Equal(t, int64(1700000000), quote.Quote.ValidTo)
	assert.Equal(t, int64(42), quote.ID)
}

func TestCowClientErrors(t *testing.T) {
	_, err := NewCowClient("http://localhost", time.Second).Quote(context.Background(), CowQuoteRequest{
		ChainID: 10, SellAmount: uint256.NewInt(1),
	})
	assert.True(t, errors.Is(err, ErrUnsupported))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorType":"SellAmountDoesNotCoverFee","description":"The sell amount does not cover the fee"}`))
	}))
	defer server.Close()

	_, err = NewCowClient(server.URL, time.Second).Quote(context.Background(), CowQuoteRequest{
		ChainID: 1, SellAmount: uint256.NewInt(1),
	})
	require.Error(t, err)
	assert.Equal(t, "cowswap: The sell amount does not cover the fee", err.Error())
}
