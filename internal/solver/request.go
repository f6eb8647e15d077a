package solver

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"yearn-vaults/internal/config"
	"yearn-vaults/internal/vault"
)

type Action string

const (
	ActionDeposit  Action = "deposit"
	ActionWithdraw Action = "withdraw"
	ActionMigrate  Action = "migrate"
)

func ParseAction(raw string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionDeposit:
		return ActionDeposit, true
	case ActionWithdraw:
		return ActionWithdraw, true
	case ActionMigrate:
		return ActionMigrate, true
	}
	return "", false
}

const (
	ZapEnso    = "enso"
	ZapCowswap = "cowswap"
)

// NativeToken is the placeholder address aggregators use for the chain's
// gas token.
var NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Request describes what the user wants to do with a vault.
type Request struct {
	Vault          vault.View
	Action         Action
	InputToken     common.Address
	OutputToken    common.Address
	InputDecimals  int
	OutputDecimals int
	Amount         *uint256.Int
	Owner          common.Address
	AutoStake      bool
	ZapProvider    string
	SlippageBps    int
}

func (r Request) ChainID() uint64 {
	return r.Vault.ChainID
}

func (r Request) VaultAddress() common.Address {
	return common.HexToAddress(r.Vault.Address)
}

func (r Request) Underlying() common.Address {
	return common.HexToAddress(r.Vault.Token.Address)
}

func (r Request) StakingAddress() common.Address {
	return common.HexToAddress(r.Vault.Staking.Address)
}

// IsUnderlyingDeposit is a deposit of the vault's own asset.
func (r Request) IsUnderlyingDeposit() bool {
	return r.Action == ActionDeposit && r.Vault.Token.Address != "" && r.InputToken == r.Underlying()
}

// IsUnderlyingWithdraw redeems vault shares for the vault's own asset.
func (r Request) IsUnderlyingWithdraw() bool {
	return r.Action == ActionWithdraw && r.InputToken == r.VaultAddress() && r.OutputToken == r.Underlying()
}

// Env carries the per-chain contracts and preferences the decision needs.
type Env struct {
	PartnerContract  common.Address
	PartnerID        common.Address
	StakingZap       common.Address
	MigrationRouter  common.Address
	CowswapSupported bool
	DefaultZap       string
	SlippageBps      int
}

// EnvFor builds the environment of a chain from configuration.
func EnvFor(cfg *config.Config, chainID uint64) Env {
	env := Env{DefaultZap: ZapEnso, SlippageBps: 100}
	if cfg == nil {
		return env
	}
	env.DefaultZap = cfg.Solvers.DefaultZap
	env.SlippageBps = cfg.Solvers.SlippageBps

	chain, ok := cfg.ChainByID(chainID)
	if !ok {
		return env
	}
	env.PartnerContract = addressOrZero(chain.PartnerContract)
	env.PartnerID = addressOrZero(chain.PartnerID)
	env.StakingZap = addressOrZero(chain.StakingZap)
	env.MigrationRouter = addressOrZero(chain.MigrationRouter)
	env.CowswapSupported = chain.CowswapSupported
	return env
}

func addressOrZero(raw string) common.Address {
	if !common.IsHexAddress(strings.TrimSpace(raw)) {
		return common.Address{}
	}
	return common.HexToAddress(strings.TrimSpace(raw))
}

func isZero(addr common.Address) bool {
	return addr == (common.Address{})
}
