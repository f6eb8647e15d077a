package solver

import (
	"yearn-vaults/internal/vault"
)

// Select decides which path serves the request. It reads only its
// arguments.
func Select(req Request, env Env) Kind {
	if req.Amount == nil || req.Amount.IsZero() || req.Vault.Address == "" || isZero(req.Owner) || isZero(req.InputToken) {
		return None
	}

	vaultAddr := req.VaultAddress()

	if req.Action == ActionMigrate {
		if req.Vault.Migration.Available && req.InputToken == vaultAddr {
			return InternalMigration
		}
		return None
	}
	if req.Vault.Migration.Available && req.InputToken == vaultAddr && req.Action == ActionWithdraw {
		return InternalMigration
	}

	if req.IsUnderlyingDeposit() {
		if req.AutoStake && req.Vault.Staking.Available && req.Vault.Staking.Address != "" {
			if booster, ok := boosterFor(req.Vault.Staking.Source); ok {
				return booster
			}
		}
		if !isZero(env.PartnerContract) {
			return PartnerContract
		}
		return Vanilla
	}
	if req.IsUnderlyingWithdraw() {
		return Vanilla
	}

	if isZero(req.OutputToken) || req.InputToken == req.OutputToken {
		return None
	}
	switch req.Action {
	case ActionDeposit:
		if req.OutputToken != vaultAddr {
			return None
		}
	case ActionWithdraw:
		if req.InputToken != vaultAddr {
			return None
		}
	default:
		return None
	}

	provider := req.ZapProvider
	if provider == "" {
		provider = env.DefaultZap
	}
	if provider == ZapCowswap && env.CowswapSupported && req.InputToken != NativeToken {
		return Cowswap
	}
	return Enso
}

func boosterFor(source vault.StakingSource) (Kind, bool) {
	switch source {
	case vault.StakingOPBoost:
		return OptimismBooster, true
	case vault.StakingVeYFI:
		return GaugeStakingBooster, true
	case vault.StakingJuiced:
		return JuicedStakingBooster, true
	case vault.StakingV3:
		return V3StakingBooster, true
	}
	return "", false
}
