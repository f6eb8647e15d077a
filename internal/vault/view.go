package vault

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type Kind string

const (
	KindLegacy         Kind = "Legacy"
	KindMultiStrategy  Kind = "Multi Strategy"
	KindSingleStrategy Kind = "Single Strategy"
)

type Type string

const (
	TypeStandard     Type = "Standard"
	TypeAutomated    Type = "Automated"
	TypeExperimental Type = "Experimental"
)

const (
	CategoryStablecoin = "Stablecoin"
	CategoryVolatile   = "Volatile"
)

type StakingSource string

const (
	StakingOPBoost StakingSource = "OP Boost"
	StakingVeYFI   StakingSource = "VeYFI"
	StakingJuiced  StakingSource = "Juiced"
	StakingV3      StakingSource = "V3 Staking"
	StakingUnknown StakingSource = ""
)

// View is the canonical vault record assembled from the list item and the
// snapshot.
type View struct {
	ChainID       uint64 `json:"chainId"`
	Address       string `json:"address"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	DisplayName   string `json:"displayName"`
	DisplaySymbol string `json:"displaySymbol"`
	Description   string `json:"description"`
	Decimals      int    `json:"decimals"`
	Version       string `json:"version"`
	Token         Token  `json:"token"`

	Kind     Kind   `json:"kind"`
	Type     Type   `json:"type"`
	Category string `json:"category"`
	Endorsed bool   `json:"endorsed"`

	TVL        TVL        `json:"tvl"`
	APR        APR        `json:"apr"`
	Staking    Staking    `json:"staking"`
	Migration  Migration  `json:"migration"`
	Info       Info       `json:"info"`
	Strategies []Strategy `json:"strategies"`
}

type Token struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	Description string `json:"description"`
}

type TVL struct {
	TotalAssets Amount  `json:"totalAssets"`
	TVL         float64 `json:"tvl"`
	Price       float64 `json:"price"`
}

type Staking struct {
	Address   string          `json:"address"`
	Available bool            `json:"available"`
	Source    StakingSource   `json:"source"`
	Rewards   []StakingReward `json:"rewards"`
}

type StakingReward struct {
	Address    string  `json:"address"`
	Name       string  `json:"name"`
	Symbol     string  `json:"symbol"`
	Decimals   int     `json:"decimals"`
	Price      float64 `json:"price"`
	IsFinished bool    `json:"isFinished"`
	FinishedAt int64   `json:"finishedAt"`
	APR        float64 `json:"apr"`
	PerWeek    float64 `json:"perWeek"`
}

type Migration struct {
	Available bool   `json:"available"`
	Target    string `json:"target"`
	Contract  string `json:"contract"`
}

type Info struct {
	RiskLevel     int      `json:"riskLevel"`
	IsRetired     bool     `json:"isRetired"`
	IsHidden      bool     `json:"isHidden"`
	IsBoosted     bool     `json:"isBoosted"`
	IsHighlighted bool     `json:"isHighlighted"`
	Protocols     []string `json:"protocols"`
}

// Key is the natural key of a vault.
func (v View) Key() string {
	return MakeKey(v.ChainID, v.Address)
}

func MakeKey(chainID uint64, address string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(address))
}

// IsV3 reports whether the vault runs a 3.x contract.
func (v View) IsV3() bool {
	return isV3Version(v.Version)
}

// Unallocated returns the basis points not assigned to any strategy.
func (v View) Unallocated() int64 {
	return Unallocated(v.Strategies)
}

// ChecksumAddress returns the EIP-55 form of a hex address, or "" for
// anything that is not a usable address.
func ChecksumAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return ""
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return ""
	}
	return addr.Hex()
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
