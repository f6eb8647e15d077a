package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"yearn-vaults/internal/logger"
)

// SafeReader never fails: a failed read logs a warning and yields zero, the
// same value a user without a position would see.
type SafeReader struct {
	inner Reader
	log   *logger.Logger
}

func NewSafeReader(inner Reader, log *logger.Logger) *SafeReader {
	if log == nil {
		log = logger.Nop()
	}
	return &SafeReader{inner: inner, log: log}
}

func (s *SafeReader) zero(method string, chainID uint64, target common.Address, value *uint256.Int, err error) *uint256.Int {
	if err != nil {
		s.log.Warn("⚠️ %s on chain %d for %s failed: %v", method, chainID, target.Hex(), err)
		return new(uint256.Int)
	}
	if value == nil {
		return new(uint256.Int)
	}
	return value
}

func (s *SafeReader) BalanceOf(ctx context.Context, chainID uint64, token, owner common.Address) (*uint256.Int, error) {
	v, err := s.inner.BalanceOf(ctx, chainID, token, owner)
	return s.zero("balanceOf", chainID, token, v, err), nil
}

func (s *SafeReader) Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (*uint256.Int, error) {
	v, err := s.inner.Allowance(ctx, chainID, token, owner, spender)
	return s.zero("allowance", chainID, token, v, err), nil
}

func (s *SafeReader) PricePerShare(ctx context.Context, chainID uint64, vault common.Address) (*uint256.Int, error) {
	v, err := s.inner.PricePerShare(ctx, chainID, vault)
	return s.zero("pricePerShare", chainID, vault, v, err), nil
}

func (s *SafeReader) PreviewDeposit(ctx context.Context, chainID uint64, vault common.Address, assets *uint256.Int) (*uint256.Int, error) {
	v, err := s.inner.PreviewDeposit(ctx, chainID, vault, assets)
	return s.zero("previewDeposit", chainID, vault, v, err), nil
}

func (s *SafeReader) PreviewRedeem(ctx context.Context, chainID uint64, vault common.Address, shares *uint256.Int) (*uint256.Int, error) {
	v, err := s.inner.PreviewRedeem(ctx, chainID, vault, shares)
	return s.zero("previewRedeem", chainID, vault, v, err), nil
}

func (s *SafeReader) Earned(ctx context.Context, chainID uint64, staking, owner common.Address) (*uint256.Int, error) {
	v, err := s.inner.Earned(ctx, chainID, staking, owner)
	return s.zero("earned", chainID, staking, v, err), nil
}

func (s *SafeReader) BlockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	n, err := s.inner.BlockNumber(ctx, chainID)
	if err != nil {
		s.log.Warn("⚠️ blockNumber on chain %d failed: %v", chainID, err)
		return 0, nil
	}
	return n, nil
}
