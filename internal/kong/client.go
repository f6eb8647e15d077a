package kong

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/observability"
	"yearn-vaults/internal/ratelimit"
)

const (
	DefaultTimeout = 30 * time.Second
	MaxRetries     = 3
	RetryDelay     = 2 * time.Second
)

var (
	// ErrNotFound is returned when upstream has no record for the vault.
	ErrNotFound = errors.New("kong: vault not found")

	errClient = errors.New("kong: client error")
	errDecode = errors.New("kong: undecodable response")
)

// Client reads the vault list and per-vault snapshots from the Kong indexer.
type Client struct {
	restURL    string
	graphqlURL string
	origin     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	log        *logger.Logger
	retryDelay time.Duration
}

type Options struct {
	RESTURL    string
	GraphQLURL string
	Origin     string
	Timeout    time.Duration
	Limiter    *ratelimit.Limiter
	Logger     *logger.Logger
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		restURL:    strings.TrimRight(opts.RESTURL, "/"),
		graphqlURL: opts.GraphQLURL,
		origin:     opts.Origin,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    opts.Limiter,
		log:        log,
		retryDelay: RetryDelay,
	}
}

// ListVaults returns every vault of the configured origin, optionally
// narrowed to some chains.
func (c *Client) ListVaults(ctx context.Context, filter ListFilter) ([]VaultListItem, error) {
	query := url.Values{}
	origin := filter.Origin
	if origin == "" {
		origin = c.origin
	}
	if origin != "" {
		query.Set("origin", origin)
	}
	for _, chainID := range filter.ChainIDs {
		query.Add("chainId", strconv.FormatUint(chainID, 10))
	}

	endpoint := c.restURL + "/list/vaults"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var items []VaultListItem
	if err := c.doRequest(ctx, "list", http.MethodGet, endpoint, nil, &items); err != nil {
		return nil, fmt.Errorf("failed to list vaults: %w", err)
	}

	return items, nil
}

// GetSnapshot returns the detailed snapshot for a single vault.
func (c *Client) GetSnapshot(ctx context.Context, chainID uint64, address string) (*VaultSnapshot, error) {
	endpoint := fmt.Sprintf("%s/snapshot/%d/%s", c.restURL, chainID, address)

	var snapshot VaultSnapshot
	if err := c.doRequest(ctx, "snapshot", http.MethodGet, endpoint, nil, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to get snapshot %d/%s: %w", chainID, address, err)
	}

	return &snapshot, nil
}

const snapshotQuery = `query VaultSnapshot($chainId: Int!, $address: String!) {
  vault(chainId: $chainId, address: $address) {
    address chainId apiVersion decimals name symbol totalAssets totalDebt pricePerShare
    asset { address name symbol decimals }
    tvl { close }
    apy { net weeklyNet monthlyNet inceptionNet pricePerShare weeklyPricePerShare monthlyPricePerShare }
    performance {
      oracle { apr apy }
      estimated { apr apy type components { boost poolAPY boostedAPR baseAPR rewardsAPR rewardsAPY cvxAPR keepCRV } }
      historical { net weeklyNet monthlyNet inceptionNet }
    }
    fees { managementFee performanceFee }
    meta { kind type category isRetired isHidden isBoosted isHighlighted description displayName displaySymbol protocols riskLevel
      token { address name symbol decimals description category }
      migration { available target contract } }
    strategies
    debts { strategy currentDebt maxDebt totalDebt debtRatio targetDebtRatio totalGain totalLoss }
    composition { address name status activation lastReport totalDebt totalDebtUsd totalGain totalLoss debtRatio performanceFee
      performance { oracle { apr apy } historical { net weeklyNet monthlyNet inceptionNet } } }
    staking { address available source rewards { address name symbol decimals price isFinished finishedAt apr perWeek } }
  }
}`

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type snapshotResponse struct {
	Data struct {
		Vault *VaultSnapshot `json:"vault"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// QuerySnapshot fetches the same snapshot shape through the GraphQL API.
func (c *Client) QuerySnapshot(ctx context.Context, chainID uint64, address string) (*VaultSnapshot, error) {
	body := graphqlRequest{
		Query: snapshotQuery,
		Variables: map[string]interface{}{
			"chainId": chainID,
			"address": address,
		},
	}

	var resp snapshotResponse
	if err := c.doRequest(ctx, "graphql", http.MethodPost, c.graphqlURL, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to query snapshot %d/%s: %w", chainID, address, err)
	}

	if len(resp.Errors) > 0 {
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
		}
		return nil, fmt.Errorf("graphql errors: %s", strings.Join(messages, "; "))
	}

	if resp.Data.Vault == nil {
		return nil, ErrNotFound
	}

	return resp.Data.Vault, nil
}

// doRequest retries network errors and 5xx responses with a linear backoff.
// 4xx responses and bodies that do not decode are returned immediately.
func (c *Client) doRequest(ctx context.Context, endpoint, method, target string, payload interface{}, result interface{}) error {
	start := time.Now()
	err := c.doRequestWithRetry(ctx, method, target, payload, result)
	observability.Upstream().Observe("kong", endpoint, err, time.Since(start))
	return err
}

func (c *Client) doRequestWithRetry(ctx context.Context, method, target string, payload interface{}, result interface{}) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = encoded
	}

	var lastErr error

	for i := 0; i < MaxRetries; i++ {
		if i > 0 {
			c.log.Warn("Retrying request to %s (attempt %d/%d)", target, i+1, MaxRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i)):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.do(ctx, method, target, body, result)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrNotFound) || errors.Is(lastErr, errClient) || errors.Is(lastErr, errDecode) || ctx.Err() != nil {
			return lastErr
		}
	}

	return fmt.Errorf("request failed after %d attempts: %w", MaxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, result interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", errClient, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Debug("Error response from %s: %s", target, string(respBody))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("%w: unexpected status code %d", errClient, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Kong answers an unknown snapshot with 200 and a null body.
	if bytes.Equal(bytes.TrimSpace(respBody), []byte("null")) {
		return ErrNotFound
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("%w: %v", errDecode, err)
	}

	return nil
}
