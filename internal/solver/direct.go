package solver

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"yearn-vaults/internal/chain"
)

// previewShares estimates the shares minted for assets.
func previewShares(ctx context.Context, reader chain.Reader, req Request, assets *uint256.Int) (*uint256.Int, error) {
	if reader == nil {
		return nil, ErrUnsupported
	}
	if req.Vault.IsV3() {
		return nonZero(reader.PreviewDeposit(ctx, req.ChainID(), req.VaultAddress(), assets))
	}
	pps, err := reader.PricePerShare(ctx, req.ChainID(), req.VaultAddress())
	if err != nil {
		return nil, err
	}
	return nonZero(scaleDown(assets, pps, req.Vault.Decimals), nil)
}

// previewAssets estimates the assets returned for shares of vaultAddr.
func previewAssets(ctx context.Context, reader chain.Reader, req Request, vaultAddr common.Address, shares *uint256.Int) (*uint256.Int, error) {
	if reader == nil {
		return nil, ErrUnsupported
	}
	if req.Vault.IsV3() {
		return nonZero(reader.PreviewRedeem(ctx, req.ChainID(), vaultAddr, shares))
	}
	pps, err := reader.PricePerShare(ctx, req.ChainID(), vaultAddr)
	if err != nil {
		return nil, err
	}
	return nonZero(scaleUp(shares, pps, req.Vault.Decimals), nil)
}

// nonZero turns an empty preview into ErrEmptyQuote. Callers only preview
// non-zero amounts, so zero means the read failed or the vault is broken.
func nonZero(out *uint256.Int, err error) (*uint256.Int, error) {
	if err != nil {
		return nil, err
	}
	if out == nil || out.IsZero() {
		return nil, ErrEmptyQuote
	}
	return out, nil
}

// scaleDown returns assets * 10^decimals / pps, zero when pps is zero.
func scaleDown(assets, pps *uint256.Int, decimals int) *uint256.Int {
	if assets == nil || pps == nil || pps.IsZero() {
		return new(uint256.Int)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(assets, pow10(decimals), pps)
	if overflow {
		return new(uint256.Int)
	}
	return out
}

// scaleUp returns shares * pps / 10^decimals.
func scaleUp(shares, pps *uint256.Int, decimals int) *uint256.Int {
	if shares == nil || pps == nil {
		return new(uint256.Int)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(shares, pps, pow10(decimals))
	if overflow {
		return new(uint256.Int)
	}
	return out
}

func pow10(decimals int) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}

func depositCall(req Request, assets *uint256.Int) (SimulatedCall, error) {
	description := fmt.Sprintf("Deposit into %s", req.Vault.Name)
	if req.Vault.IsV3() {
		return packCall(req.ChainID(), req.VaultAddress(), chain.ERC4626ABI, "deposit", description, assets.ToBig(), req.Owner)
	}
	return packCall(req.ChainID(), req.VaultAddress(), chain.LegacyVaultABI, "deposit", description, assets.ToBig(), req.Owner)
}

type vanillaSolver struct {
	reader chain.Reader
}

func (s vanillaSolver) Plan(ctx context.Context, req Request, env Env) (*Plan, error) {
	switch {
	case req.IsUnderlyingDeposit():
		shares, err := previewShares(ctx, s.reader, req, req.Amount)
		if err != nil {
			return nil, err
		}
		call, err := depositCall(req, req.Amount)
		if err != nil {
			return nil, err
		}
		return &Plan{Spender: req.VaultAddress(), ExpectedOut: shares, Calls: []SimulatedCall{call}}, nil

	case req.IsUnderlyingWithdraw():
		assets, err := previewAssets(ctx, s.reader, req, req.VaultAddress(), req.Amount)
		if err != nil {
			return nil, err
		}
		description := fmt.Sprintf("Withdraw from %s", req.Vault.Name)
		var call SimulatedCall
		if req.Vault.IsV3() {
			call, err = packCall(req.ChainID(), req.VaultAddress(), chain.ERC4626ABI, "redeem", description,
				req.Amount.ToBig(), req.Owner, req.Owner)
		} else {
			call, err = packCall(req.ChainID(), req.VaultAddress(), chain.LegacyVaultABI, "withdraw", description,
				req.Amount.ToBig(), req.Owner)
		}
		if err != nil {
			return nil, err
		}
		return &Plan{ExpectedOut: assets, Calls: []SimulatedCall{call}}, nil
	}
	return nil, ErrNoRoute
}

type partnerSolver struct {
	reader chain.Reader
}

func (s partnerSolver) Plan(ctx context.Context, req Request, env Env) (*Plan, error) {
	if isZero(env.PartnerContract) {
		return nil, ErrUnsupported
	}
	if !req.IsUnderlyingDeposit() {
		return nil, ErrNoRoute
	}

	shares, err := previewShares(ctx, s.reader, req, req.Amount)
	if err != nil {
		return nil, err
	}
	partnerID := env.PartnerID
	if isZero(partnerID) {
		partnerID = env.PartnerContract
	}
	call, err := packCall(req.ChainID(), env.PartnerContract, chain.PartnerABI, "deposit",
		fmt.Sprintf("Deposit into %s via partner", req.Vault.Name), req.VaultAddress(), partnerID, req.Amount.ToBig())
	if err != nil {
		return nil, err
	}
	return &Plan{Spender: env.PartnerContract, ExpectedOut: shares, Calls: []SimulatedCall{call}}, nil
}

type migrationSolver struct {
	reader chain.Reader
}

func (s migrationSolver) Plan(ctx context.Context, req Request, env Env) (*Plan, error) {
	if isZero(env.MigrationRouter) {
		return nil, ErrUnsupported
	}
	if !req.Vault.Migration.Available || req.InputToken != req.VaultAddress() {
		return nil, ErrNoRoute
	}
	target := common.HexToAddress(req.Vault.Migration.Target)

	assets, err := previewAssets(ctx, s.reader, req, req.VaultAddress(), req.Amount)
	if err != nil {
		return nil, err
	}
	shares, err := nonZero(s.reader.PreviewDeposit(ctx, req.ChainID(), target, assets))
	if err != nil {
		return nil, err
	}
	minOut := applySlippage(shares, req.SlippageBps)

	call, err := packCall(req.ChainID(), env.MigrationRouter, chain.MigrationABI, "migrate",
		fmt.Sprintf("Migrate %s to %s", req.Vault.Name, target.Hex()),
		req.VaultAddress(), target, req.Amount.ToBig(), minOut.ToBig())
	if err != nil {
		return nil, err
	}
	return &Plan{Spender: env.MigrationRouter, ExpectedOut: shares, MinOut: minOut, Calls: []SimulatedCall{call}}, nil
}

// boosterSolver deposits the underlying and stakes the minted shares in
// the vault's staking contract.
type boosterSolver struct {
	kind   Kind
	reader chain.Reader
}

func (s boosterSolver) Plan(ctx context.Context, req Request, env Env) (*Plan, error) {
	if !req.IsUnderlyingDeposit() || !req.Vault.Staking.Available {
		return nil, ErrNoRoute
	}
	staking := req.StakingAddress()
	if isZero(staking) {
		return nil, ErrNoRoute
	}

	shares, err := previewShares(ctx, s.reader, req, req.Amount)
	if err != nil {
		return nil, err
	}

	if s.kind == OptimismBooster && !isZero(env.StakingZap) {
		call, err := packCall(req.ChainID(), env.StakingZap, chain.StakingZapABI, "zapIn",
			fmt.Sprintf("Deposit into %s and stake", req.Vault.Name), req.VaultAddress(), req.Amount.ToBig())
		if err != nil {
			return nil, err
		}
		return &Plan{Spender: env.StakingZap, ExpectedOut: shares, Calls: []SimulatedCall{call}}, nil
	}

	deposit, err := depositCall(req, req.Amount)
	if err != nil {
		return nil, err
	}
	approve, err := packCall(req.ChainID(), req.VaultAddress(), chain.ERC20ABI, "approve",
		"Approve staking contract", staking, shares.ToBig())
	if err != nil {
		return nil, err
	}

	var stake SimulatedCall
	description := fmt.Sprintf("Stake %s", req.Vault.Symbol)
	switch s.kind {
	case GaugeStakingBooster, V3StakingBooster:
		stake, err = packCall(req.ChainID(), staking, chain.ERC4626ABI, "deposit", description, shares.ToBig(), req.Owner)
	default:
		stake, err = packCall(req.ChainID(), staking, chain.StakingRewardsABI, "stake", description, shares.ToBig())
	}
	if err != nil {
		return nil, err
	}

	return &Plan{
		Spender:     req.VaultAddress(),
		ExpectedOut: shares,
		Calls:       []SimulatedCall{deposit, approve, stake},
	}, nil
}
