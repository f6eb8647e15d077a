package vault

import (
	"errors"
	"strings"

	"yearn-vaults/internal/kong"
	"yearn-vaults/internal/vault/pick"
)

const defaultDecimals = 18

var (
	ErrNoSource        = errors.New("vault: neither list item nor snapshot given")
	ErrInvalidIdentity = errors.New("vault: missing chain id or address")
)

// GetVaultView reconciles a list item and a snapshot of the same vault into
// one View. Either side may be nil. The result depends on the inputs only.
func GetVaultView(item *kong.VaultListItem, snap *kong.VaultSnapshot) (View, error) {
	if item == nil && snap == nil {
		return View{}, ErrNoSource
	}

	var v View

	v.ChainID = pick.Or(0, pick.Lazy(func() (uint64, bool) {
		return snapField(snap, func(s *kong.VaultSnapshot) uint64 { return s.ChainID }), snap != nil && snap.ChainID != 0
	}), pick.Lazy(func() (uint64, bool) {
		return listField(item, func(i *kong.VaultListItem) uint64 { return i.ChainID }), item != nil && item.ChainID != 0
	}))
	v.Address = ChecksumAddress(pick.Or("",
		pick.String(snapField(snap, func(s *kong.VaultSnapshot) string { return s.Address })),
		pick.String(listField(item, func(i *kong.VaultListItem) string { return i.Address })),
	))
	if v.ChainID == 0 || v.Address == "" {
		return View{}, ErrInvalidIdentity
	}

	meta := snapMeta(snap)

	v.Version = pick.Or("0.0.0",
		pick.String(snapField(snap, func(s *kong.VaultSnapshot) string { return s.APIVersion })),
		pick.String(listField(item, func(i *kong.VaultListItem) string { return i.APIVersion })),
	)
	v.Token = buildToken(item, snap)
	v.Decimals = pick.Or(defaultDecimals,
		pick.Positive(snapField(snap, func(s *kong.VaultSnapshot) int { return s.Decimals })),
		pick.Positive(listField(item, func(i *kong.VaultListItem) int { return i.Decimals })),
		pick.Positive(v.Token.Decimals),
	)
	v.Name = pick.Or(v.Address,
		pick.String(snapField(snap, func(s *kong.VaultSnapshot) string { return s.Name })),
		pick.String(listField(item, func(i *kong.VaultListItem) string { return i.Name })),
	)
	v.Symbol = pick.Or("",
		pick.String(snapField(snap, func(s *kong.VaultSnapshot) string { return s.Symbol })),
		pick.String(listField(item, func(i *kong.VaultListItem) string { return i.Symbol })),
	)
	v.DisplayName = pick.Or(v.Name, pick.String(meta.DisplayName))
	v.DisplaySymbol = pick.Or(v.Symbol, pick.String(meta.DisplaySymbol))
	v.Description = pick.Or("", pick.String(meta.Description), pick.String(v.Token.Description))

	listV3 := item != nil && item.V3
	isV3 := listV3 || isV3Version(v.Version)

	v.Strategies = BuildStrategies(item, snap, v.Decimals)
	strategyCount := len(v.Strategies)
	if item != nil && item.StrategiesCount > strategyCount {
		strategyCount = item.StrategiesCount
	}

	v.Kind = pick.Or(DeriveKind(v.Version, listV3, strategyCount),
		kindSource(meta.Kind),
		kindSource(listField(item, func(i *kong.VaultListItem) string { return i.Kind })),
	)
	v.Type = ParseType(pick.Or("",
		pick.String(meta.Type),
		pick.String(listField(item, func(i *kong.VaultListItem) string { return i.Type })),
	))
	v.Category = resolveCategory(item, snap, v.Name, v.Token)
	v.Endorsed = item != nil && (item.Yearn || strings.EqualFold(item.Origin, "yearn"))

	totalAssets := ParseAmount(pick.Or("",
		rawSource(snapField(snap, func(s *kong.VaultSnapshot) string { return s.TotalAssets })),
		rawSource(listField(item, func(i *kong.VaultListItem) string { return i.TotalAssets })),
	), v.Decimals)
	usd := pick.Or(0,
		pick.Lazy(func() (float64, bool) {
			if snap == nil || snap.TVL == nil {
				return 0, false
			}
			return pick.Float(snap.TVL.Close)()
		}),
		pick.Lazy(func() (float64, bool) {
			if item == nil {
				return 0, false
			}
			return pick.Float(item.TVL)()
		}),
	)
	v.TVL = VaultTVL(totalAssets, usd)

	v.Staking = buildStaking(item, snap)
	v.Migration = buildMigration(item, meta, v.Address)
	v.Info = buildInfo(item, snap)

	pps := ParseAmount(pick.Or("",
		rawSource(snapField(snap, func(s *kong.VaultSnapshot) string { return s.PricePerShare })),
		rawSource(listField(item, func(i *kong.VaultListItem) string { return i.PricePerShare })),
	), v.Decimals)
	v.APR = BuildAPR(item, snap, isV3, pps, v.Staking)

	return v, nil
}

func snapField[T any](snap *kong.VaultSnapshot, get func(*kong.VaultSnapshot) T) T {
	if snap == nil {
		var zero T
		return zero
	}
	return get(snap)
}

func listField[T any](item *kong.VaultListItem, get func(*kong.VaultListItem) T) T {
	if item == nil {
		var zero T
		return zero
	}
	return get(item)
}

// snapMeta returns an empty meta when the snapshot carries none, so callers
// can read fields without nil checks.
func snapMeta(snap *kong.VaultSnapshot) kong.SnapshotMeta {
	if snap == nil || snap.Meta == nil {
		return kong.SnapshotMeta{}
	}
	return *snap.Meta
}

func kindSource(raw string) pick.Source[Kind] {
	return func() (Kind, bool) { return ParseKind(raw) }
}

func buildToken(item *kong.VaultListItem, snap *kong.VaultSnapshot) Token {
	var fromSnap, fromMeta, fromList kong.Token
	if snap != nil && snap.Asset != nil {
		fromSnap = *snap.Asset
	}
	if snap != nil && snap.Meta != nil && snap.Meta.Token != nil {
		fromMeta = *snap.Meta.Token
	}
	if item != nil {
		fromList = item.Asset
	}

	return Token{
		Address: ChecksumAddress(pick.Or("",
			pick.String(fromSnap.Address), pick.String(fromMeta.Address), pick.String(fromList.Address))),
		Name:   pick.Or("", pick.String(fromSnap.Name), pick.String(fromMeta.Name), pick.String(fromList.Name)),
		Symbol: pick.Or("", pick.String(fromSnap.Symbol), pick.String(fromMeta.Symbol), pick.String(fromList.Symbol)),
		Decimals: pick.Or(defaultDecimals,
			pick.Positive(fromSnap.Decimals), pick.Positive(fromMeta.Decimals), pick.Positive(fromList.Decimals)),
		Description: pick.Or("", pick.String(fromMeta.Description), pick.String(fromList.Description)),
	}
}

// ParseStakingSource maps the upstream staking source labels.
func ParseStakingSource(raw string) StakingSource {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "op boost", "optimism", "opboost":
		return StakingOPBoost
	case "veyfi", "gauge":
		return StakingVeYFI
	case "juiced":
		return StakingJuiced
	case "v3 staking", "v3staking", "yearn":
		return StakingV3
	}
	return StakingUnknown
}

func buildStaking(item *kong.VaultListItem, snap *kong.VaultSnapshot) Staking {
	source, ok := pick.First(
		pick.Lazy(func() (*kong.Staking, bool) {
			return snapField(snap, func(s *kong.VaultSnapshot) *kong.Staking { return s.Staking }), snap != nil && usableStaking(snap.Staking)
		}),
		pick.Lazy(func() (*kong.Staking, bool) {
			return listField(item, func(i *kong.VaultListItem) *kong.Staking { return i.Staking }), item != nil && usableStaking(item.Staking)
		}),
	)
	if !ok {
		return Staking{Rewards: []StakingReward{}}
	}

	staking := Staking{
		Address:   ChecksumAddress(source.Address),
		Available: source.Available,
		Source:    ParseStakingSource(source.Source),
		Rewards:   make([]StakingReward, 0, len(source.Rewards)),
	}
	for _, r := range source.Rewards {
		staking.Rewards = append(staking.Rewards, StakingReward{
			Address:    ChecksumAddress(r.Address),
			Name:       r.Name,
			Symbol:     r.Symbol,
			Decimals:   pick.Or(defaultDecimals, pick.Positive(r.Decimals)),
			Price:      pick.Or(0, pick.Float(r.Price)),
			IsFinished: r.IsFinished,
			FinishedAt: r.FinishedAt,
			APR:        pick.Or(0, pick.Float(r.APR)),
			PerWeek:    pick.Or(0, pick.Float(r.PerWeek)),
		})
	}
	return staking
}

func usableStaking(s *kong.Staking) bool {
	return s != nil && ChecksumAddress(s.Address) != ""
}

func buildMigration(item *kong.VaultListItem, meta kong.SnapshotMeta, self string) Migration {
	source, ok := pick.First(
		pick.Ptr(meta.Migration),
		pick.Lazy(func() (kong.Migration, bool) {
			if item == nil || item.Migration == nil {
				return kong.Migration{}, false
			}
			return *item.Migration, true
		}),
	)
	if !ok {
		return Migration{}
	}

	target := ChecksumAddress(source.Target)
	return Migration{
		Available: source.Available && target != "" && !SameAddress(target, self),
		Target:    target,
		Contract:  ChecksumAddress(source.Contract),
	}
}

// buildInfo prefers the snapshot meta block as a whole when present.
func buildInfo(item *kong.VaultListItem, snap *kong.VaultSnapshot) Info {
	info := Info{RiskLevel: -1, Protocols: []string{}}

	if item != nil {
		info.RiskLevel = pick.Or(info.RiskLevel, pick.Ptr(item.RiskLevel))
		info.IsRetired = item.IsRetired
		info.IsHidden = item.IsHidden
		info.IsBoosted = item.IsBoosted
		info.IsHighlighted = item.IsHighlighted
	}
	if snap != nil && snap.Meta != nil {
		meta := snap.Meta
		info.RiskLevel = pick.Or(info.RiskLevel, pick.Ptr(meta.RiskLevel))
		info.IsRetired = meta.IsRetired
		info.IsHidden = meta.IsHidden
		info.IsBoosted = meta.IsBoosted
		info.IsHighlighted = meta.IsHighlighted
		if len(meta.Protocols) > 0 {
			info.Protocols = append(info.Protocols, meta.Protocols...)
		}
	}
	return info
}
