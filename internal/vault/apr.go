package vault

import (
	"yearn-vaults/internal/kong"
	"yearn-vaults/internal/vault/pick"
)

type APR struct {
	Type          string     `json:"type"`
	NetAPR        float64    `json:"netAPR"`
	Fees          FeesAPR    `json:"fees"`
	Points        APRPoints  `json:"points"`
	PricePerShare PPSPoints  `json:"pricePerShare"`
	Extra         ExtraAPR   `json:"extra"`
	ForwardAPR    ForwardAPR `json:"forwardAPR"`
}

type FeesAPR struct {
	Performance float64 `json:"performance"`
	Management  float64 `json:"management"`
}

type APRPoints struct {
	WeekAgo   float64 `json:"weekAgo"`
	MonthAgo  float64 `json:"monthAgo"`
	Inception float64 `json:"inception"`
}

type PPSPoints struct {
	Today    float64 `json:"today"`
	WeekAgo  float64 `json:"weekAgo"`
	MonthAgo float64 `json:"monthAgo"`
}

type ExtraAPR struct {
	StakingRewardsAPR float64 `json:"stakingRewardsAPR"`
}

type ForwardAPR struct {
	Type      string    `json:"type"`
	NetAPR    float64   `json:"netAPR"`
	Composite Composite `json:"composite"`
}

type Composite struct {
	Boost              float64 `json:"boost"`
	PoolAPY            float64 `json:"poolAPY"`
	BoostedAPR         float64 `json:"boostedAPR"`
	BaseAPR            float64 `json:"baseAPR"`
	CvxAPR             float64 `json:"cvxAPR"`
	RewardsAPR         float64 `json:"rewardsAPR"`
	KeepCRV            float64 `json:"keepCRV"`
	V3OracleCurrentAPR float64 `json:"v3OracleCurrentAPR"`
}

// accessors that tolerate every missing level of the upstream shapes

func snapAPY(s *kong.VaultSnapshot, field func(*kong.SnapshotAPY) *float64) pick.Source[float64] {
	return pick.Lazy(func() (float64, bool) {
		if s == nil || s.APY == nil {
			return 0, false
		}
		return pick.Float(field(s.APY))()
	})
}

func historical(p *kong.Performance, field func(*kong.HistoricalAPR) *float64) pick.Source[float64] {
	return pick.Lazy(func() (float64, bool) {
		if p == nil || p.Historical == nil {
			return 0, false
		}
		return pick.Float(field(p.Historical))()
	})
}

func estimated(p *kong.Performance, field func(*kong.EstimatedAPR) *float64) pick.Source[float64] {
	return pick.Lazy(func() (float64, bool) {
		if p == nil || p.Estimated == nil {
			return 0, false
		}
		return pick.Float(field(p.Estimated))()
	})
}

func component(p *kong.Performance, field func(*kong.EstimatedComponents) *float64) pick.Source[float64] {
	return pick.Lazy(func() (float64, bool) {
		if p == nil || p.Estimated == nil || p.Estimated.Components == nil {
			return 0, false
		}
		return pick.Float(field(p.Estimated.Components))()
	})
}

func oracle(p *kong.Performance, field func(*kong.OracleAPR) *float64) pick.Source[float64] {
	return pick.Lazy(func() (float64, bool) {
		if p == nil || p.Oracle == nil {
			return 0, false
		}
		return pick.Float(field(p.Oracle))()
	})
}

func fee(f *kong.Fees, field func(*kong.Fees) *float64) pick.Source[float64] {
	return pick.Lazy(func() (float64, bool) {
		if f == nil {
			return 0, false
		}
		return pick.Float(field(f))()
	})
}

func snapPerformance(s *kong.VaultSnapshot) *kong.Performance {
	if s == nil {
		return nil
	}
	return s.Performance
}

func listPerformance(item *kong.VaultListItem) *kong.Performance {
	if item == nil {
		return nil
	}
	return item.Performance
}

// BuildAPR reconciles the historical and forward APR of a vault.
func BuildAPR(item *kong.VaultListItem, snap *kong.VaultSnapshot, v3 bool, pps Amount, staking Staking) APR {
	sp, lp := snapPerformance(snap), listPerformance(item)

	var snapFees, listFees *kong.Fees
	if snap != nil {
		snapFees = snap.Fees
	}
	if item != nil {
		listFees = item.Fees
	}

	net := pick.Or(0,
		snapAPY(snap, func(a *kong.SnapshotAPY) *float64 { return a.Net }),
		historical(sp, func(h *kong.HistoricalAPR) *float64 { return h.Net }),
		historical(lp, func(h *kong.HistoricalAPR) *float64 { return h.Net }),
	)

	apr := APR{
		Type:   "v2:averaged",
		NetAPR: net,
		Fees: FeesAPR{
			Performance: pick.Or(0,
				fee(snapFees, func(f *kong.Fees) *float64 { return f.PerformanceFee }),
				fee(listFees, func(f *kong.Fees) *float64 { return f.PerformanceFee }),
			) / float64(MaxBPS),
			Management: pick.Or(0,
				fee(snapFees, func(f *kong.Fees) *float64 { return f.ManagementFee }),
				fee(listFees, func(f *kong.Fees) *float64 { return f.ManagementFee }),
			) / float64(MaxBPS),
		},
		Points: APRPoints{
			WeekAgo: pick.Or(0,
				snapAPY(snap, func(a *kong.SnapshotAPY) *float64 { return a.WeeklyNet }),
				historical(sp, func(h *kong.HistoricalAPR) *float64 { return h.WeeklyNet }),
				historical(lp, func(h *kong.HistoricalAPR) *float64 { return h.WeeklyNet }),
			),
			MonthAgo: pick.Or(0,
				snapAPY(snap, func(a *kong.SnapshotAPY) *float64 { return a.MonthlyNet }),
				historical(sp, func(h *kong.HistoricalAPR) *float64 { return h.MonthlyNet }),
				historical(lp, func(h *kong.HistoricalAPR) *float64 { return h.MonthlyNet }),
			),
			Inception: pick.Or(0,
				snapAPY(snap, func(a *kong.SnapshotAPY) *float64 { return a.InceptionNet }),
				historical(sp, func(h *kong.HistoricalAPR) *float64 { return h.InceptionNet }),
				historical(lp, func(h *kong.HistoricalAPR) *float64 { return h.InceptionNet }),
			),
		},
		PricePerShare: PPSPoints{
			Today: pick.Or(0,
				snapAPY(snap, func(a *kong.SnapshotAPY) *float64 { return a.PricePerShare }),
				pick.Lazy(func() (float64, bool) {
					if pps.IsZero() {
						return 0, false
					}
					return pps.Normalized().InexactFloat64(), true
				}),
			),
			WeekAgo:  pick.Or(0, snapAPY(snap, func(a *kong.SnapshotAPY) *float64 { return a.WeeklyPricePerShare })),
			MonthAgo: pick.Or(0, snapAPY(snap, func(a *kong.SnapshotAPY) *float64 { return a.MonthlyPricePerShare })),
		},
		Extra: ExtraAPR{StakingRewardsAPR: StakingRewardsAPR(staking.Rewards)},
	}
	if v3 {
		apr.Type = "v3:averaged"
	}

	forwardType := "v2:averaged"
	if v3 {
		forwardType = "v3:onchainOracle"
	}

	apr.ForwardAPR = ForwardAPR{
		Type: pick.Or(forwardType,
			pick.Lazy(func() (string, bool) {
				if sp == nil || sp.Estimated == nil {
					return "", false
				}
				return pick.String(sp.Estimated.Type)()
			}),
			pick.Lazy(func() (string, bool) {
				if lp == nil || lp.Estimated == nil {
					return "", false
				}
				return pick.String(lp.Estimated.Type)()
			}),
		),
		NetAPR: pick.Or(0,
			estimated(sp, func(e *kong.EstimatedAPR) *float64 { return e.APY }),
			oracle(sp, func(o *kong.OracleAPR) *float64 { return o.APY }),
			estimated(lp, func(e *kong.EstimatedAPR) *float64 { return e.APY }),
			oracle(lp, func(o *kong.OracleAPR) *float64 { return o.APY }),
			pick.Value(net),
		),
		Composite: Composite{
			Boost:      pick.Or(0, componentChain(sp, lp, func(c *kong.EstimatedComponents) *float64 { return c.Boost })...),
			PoolAPY:    pick.Or(0, componentChain(sp, lp, func(c *kong.EstimatedComponents) *float64 { return c.PoolAPY })...),
			BoostedAPR: pick.Or(0, componentChain(sp, lp, func(c *kong.EstimatedComponents) *float64 { return c.BoostedAPR })...),
			BaseAPR:    pick.Or(0, componentChain(sp, lp, func(c *kong.EstimatedComponents) *float64 { return c.BaseAPR })...),
			CvxAPR:     pick.Or(0, componentChain(sp, lp, func(c *kong.EstimatedComponents) *float64 { return c.CvxAPR })...),
			RewardsAPR: pick.Or(0, componentChain(sp, lp, func(c *kong.EstimatedComponents) *float64 { return c.RewardsAPR })...),
			KeepCRV:    pick.Or(0, componentChain(sp, lp, func(c *kong.EstimatedComponents) *float64 { return c.KeepCRV })...),
			V3OracleCurrentAPR: pick.Or(0,
				oracle(sp, func(o *kong.OracleAPR) *float64 { return o.APR }),
				oracle(lp, func(o *kong.OracleAPR) *float64 { return o.APR }),
			),
		},
	}

	return apr
}

func componentChain(sp, lp *kong.Performance, field func(*kong.EstimatedComponents) *float64) []pick.Source[float64] {
	return []pick.Source[float64]{component(sp, field), component(lp, field)}
}

// StakingRewardsAPR sums the APR of rewards that are still being paid.
func StakingRewardsAPR(rewards []StakingReward) float64 {
	var total float64
	for _, r := range rewards {
		if r.IsFinished {
			continue
		}
		total += r.APR
	}
	return total
}
