// Package positions reads what an account holds in each known vault.
package positions

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"yearn-vaults/internal/chain"
	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/models"
	"yearn-vaults/internal/vault"
)

type PendingReward struct {
	Token  string       `json:"token"`
	Symbol string       `json:"symbol"`
	Amount vault.Amount `json:"amount"`
	USD    float64      `json:"usd"`
}

type Position struct {
	ChainID        uint64          `json:"chainId"`
	Vault          string          `json:"vault"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	Shares         vault.Amount    `json:"shares"`
	StakedShares   vault.Amount    `json:"stakedShares"`
	Assets         vault.Amount    `json:"assets"`
	USD            float64         `json:"usd"`
	PendingRewards []PendingReward `json:"pendingRewards"`
}

// VaultLister is the part of the vault repository positions need.
type VaultLister interface {
	ListByChain(chainID uint64) ([]*models.VaultRecord, error)
}

type Options struct {
	CacheCounters int64
	CacheMaxCost  int64
	TTL           time.Duration
}

// Service answers position queries. Results are cached per block so a new
// head invalidates them without bookkeeping.
type Service struct {
	vaults VaultLister
	reader chain.Reader
	cache  *ristretto.Cache
	ttl    time.Duration
	log    *logger.Logger
}

func NewService(vaults VaultLister, reader chain.Reader, opts Options, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.CacheCounters <= 0 {
		opts.CacheCounters = 1e5
	}
	if opts.CacheMaxCost <= 0 {
		opts.CacheMaxCost = 1e4
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Minute
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.CacheCounters,
		MaxCost:     opts.CacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create positions cache: %w", err)
	}

	if _, safe := reader.(*chain.SafeReader); !safe {
		reader = chain.NewSafeReader(reader, log)
	}

	return &Service{
		vaults: vaults,
		reader: reader,
		cache:  cache,
		ttl:    opts.TTL,
		log:    log,
	}, nil
}

func CacheKey(chainID, block uint64, owner common.Address) string {
	return fmt.Sprintf("%d:%d:%s", chainID, block, strings.ToLower(owner.Hex()))
}

// ForAccount returns every non-empty position of owner on chainID, largest
// first.
func (s *Service) ForAccount(ctx context.Context, chainID uint64, owner common.Address) ([]Position, error) {
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("owner address is required")
	}

	block, _ := s.reader.BlockNumber(ctx, chainID)
	key := CacheKey(chainID, block, owner)
	if block > 0 {
		if cached, ok := s.cache.Get(key); ok {
			return cached.([]Position), nil
		}
	}

	records, err := s.vaults.ListByChain(chainID)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}

	positions := make([]Position, 0)
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		view, err := record.ToView()
		if err != nil {
			s.log.Warn("⚠️ Skipping %s: %v", record.Key(), err)
			continue
		}

		position, ok := s.position(ctx, view, owner)
		if ok {
			positions = append(positions, position)
		}
	}

	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].USD > positions[j].USD
	})

	if block > 0 {
		s.cache.SetWithTTL(key, positions, int64(len(positions)+1), s.ttl)
	}
	return positions, nil
}

func (s *Service) position(ctx context.Context, view vault.View, owner common.Address) (Position, bool) {
	vaultAddr := common.HexToAddress(view.Address)

	shares, _ := s.reader.BalanceOf(ctx, view.ChainID, vaultAddr, owner)
	staked := new(uint256.Int)
	var staking common.Address
	if view.Staking.Available && common.IsHexAddress(view.Staking.Address) {
		staking = common.HexToAddress(view.Staking.Address)
		staked, _ = s.reader.BalanceOf(ctx, view.ChainID, staking, owner)
	}

	total := new(uint256.Int).Add(orZero(shares), orZero(staked))
	if total.IsZero() {
		return Position{}, false
	}

	assets := s.assets(ctx, view, vaultAddr, total)
	usd, _ := vault.Normalize(assets, view.Token.Decimals).
		Mul(decimalOf(view.TVL.Price)).Float64()

	p := Position{
		ChainID:        view.ChainID,
		Vault:          view.Address,
		Name:           view.Name,
		Symbol:         view.Symbol,
		Shares:         vault.NewAmount(shares, view.Decimals),
		StakedShares:   vault.NewAmount(staked, view.Decimals),
		Assets:         vault.NewAmount(assets, view.Token.Decimals),
		USD:            usd,
		PendingRewards: []PendingReward{},
	}

	if staking != (common.Address{}) && len(view.Staking.Rewards) > 0 {
		earned, _ := s.reader.Earned(ctx, view.ChainID, staking, owner)
		if earned != nil && !earned.IsZero() {
			reward := view.Staking.Rewards[0]
			rewardUSD, _ := vault.Normalize(earned, reward.Decimals).Mul(decimalOf(reward.Price)).Float64()
			p.PendingRewards = append(p.PendingRewards, PendingReward{
				Token:  reward.Address,
				Symbol: reward.Symbol,
				Amount: vault.NewAmount(earned, reward.Decimals),
				USD:    rewardUSD,
			})
		}
	}

	return p, true
}

// assets converts shares to underlying. v3 vaults answer previewRedeem,
// legacy vaults scale by pricePerShare.
func (s *Service) assets(ctx context.Context, view vault.View, vaultAddr common.Address, shares *uint256.Int) *uint256.Int {
	if view.IsV3() {
		out, _ := s.reader.PreviewRedeem(ctx, view.ChainID, vaultAddr, shares)
		return orZero(out)
	}

	pps, _ := s.reader.PricePerShare(ctx, view.ChainID, vaultAddr)
	if pps == nil || pps.IsZero() {
		return new(uint256.Int)
	}
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(view.Decimals)))
	out, overflow := new(uint256.Int).MulDivOverflow(shares, pps, scale)
	if overflow {
		return new(uint256.Int)
	}
	return out
}

// Clear drops every cached position.
func (s *Service) Clear() {
	s.cache.Clear()
}

func (s *Service) Close() {
	s.cache.Close()
}

func decimalOf(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
