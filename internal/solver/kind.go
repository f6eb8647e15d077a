// Package solver picks and prepares the contract path a deposit, withdraw
// or migration goes through.
//
// Every path is one member of the closed Kind set. Select is the single
// decision function; each Kind has one Solver that turns a Request into a
// Plan of simulated calls the wallet signs.
package solver

import "errors"

type Kind string

const (
	InternalMigration    Kind = "internal_migration"
	Vanilla              Kind = "vanilla"
	PartnerContract      Kind = "partner_contract"
	OptimismBooster      Kind = "optimism_booster"
	GaugeStakingBooster  Kind = "gauge_staking_booster"
	JuicedStakingBooster Kind = "juiced_staking_booster"
	V3StakingBooster     Kind = "v3_staking_booster"
	Enso                 Kind = "enso"
	Cowswap              Kind = "cowswap"
	None                 Kind = "none"
)

// Kinds lists every member in decision priority order.
func Kinds() []Kind {
	return []Kind{
		InternalMigration, OptimismBooster, GaugeStakingBooster, JuicedStakingBooster,
		V3StakingBooster, PartnerContract, Vanilla, Cowswap, Enso, None,
	}
}

func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// IsBooster reports whether the path stakes the minted shares.
func (k Kind) IsBooster() bool {
	switch k {
	case OptimismBooster, GaugeStakingBooster, JuicedStakingBooster, V3StakingBooster:
		return true
	}
	return false
}

// IsZap reports whether the path swaps through an aggregator.
func (k Kind) IsZap() bool {
	return k == Enso || k == Cowswap
}

var (
	ErrNoRoute     = errors.New("solver: no route for this request")
	ErrUnsupported = errors.New("solver: path not supported on this chain")
	ErrEmptyQuote  = errors.New("solver: preview returned nothing for a non-zero amount")
)
