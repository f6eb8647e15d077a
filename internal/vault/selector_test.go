package vault

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearn-vaults/internal/kong"
)

const (
	vaultAddr = "0x1111111111111111111111111111111111111111"
	tokenAddr = "0x2222222222222222222222222222222222222222"
	stratA    = "0x3333333333333333333333333333333333333333"
	stratB    = "0x4444444444444444444444444444444444444444"
	stratC    = "0x5555555555555555555555555555555555555555"
)

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64 { return &v }

func listItem() *kong.VaultListItem {
	return &kong.VaultListItem{
		ChainID:    1,
		Address:    vaultAddr,
		Name:       "USDC yVault",
		Symbol:     "yvUSDC",
		APIVersion: "3.0.2",
		Decimals:   6,
		Asset:      kong.Token{Address: tokenAddr, Name: "USD Coin", Symbol: "USDC", Decimals: 6},
		TVL:        fp(900),
		Performance: &kong.Performance{
			Oracle:     &kong.OracleAPR{APR: fp(0.051), APY: fp(0.052)},
			Historical: &kong.HistoricalAPR{Net: fp(0.04), WeeklyNet: fp(0.041)},
		},
		Fees:            &kong.Fees{PerformanceFee: fp(1000), ManagementFee: fp(0)},
		V3:              true,
		Yearn:           true,
		StrategiesCount: 2,
		Strategies: []kong.ListStrategy{
			{Address: stratA, Name: "Aave Lender", TotalDebt: "600000", Status: "active"},
			{Address: stratB, Name: "Compound Lender", TotalDebt: "300000"},
		},
	}
}

func snapshot() *kong.VaultSnapshot {
	return &kong.VaultSnapshot{
		Address:     vaultAddr,
		ChainID:     1,
		APIVersion:  "3.0.2",
		Decimals:    6,
		TotalAssets: "1000000",
		Asset:       &kong.Token{Address: tokenAddr, Name: "USD Coin", Symbol: "USDC", Decimals: 6},
		TVL:         &kong.SnapshotTVL{Close: fp(1.02)},
		APY:         &kong.SnapshotAPY{Net: fp(0.045)},
		Debts: []kong.SnapshotDebt{
			{Strategy: stratA, CurrentDebt: "500000"},
			{Strategy: stratB, CurrentDebt: "250000"},
			{Strategy: stratC, CurrentDebt: "0", TargetDebtRatio: ip(1000)},
		},
	}
}

func TestVaultTVLExample(t *testing.T) {
	view, err := GetVaultView(nil, &kong.VaultSnapshot{
		Address:     vaultAddr,
		ChainID:     1,
		Decimals:    6,
		TotalAssets: "1000000",
		TVL:         &kong.SnapshotTVL{Close: fp(1.02)},
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.02, view.TVL.Price, 1e-9)
	assert.InDelta(t, 1.02, view.TVL.TVL, 1e-9)
	assert.Equal(t, "1", view.TVL.TotalAssets.Normalized().String())
}

func TestVaultTVLZeroAssets(t *testing.T) {
	tvl := VaultTVL(ParseAmount("0", 18), 1500)
	assert.Equal(t, 0.0, tvl.Price)
	assert.Equal(t, 1500.0, tvl.TVL)

	tvl = VaultTVL(ParseAmount("garbage", 18), 10)
	assert.Equal(t, 0.0, tvl.Price)
}

func TestGetVaultViewNoSource(t *testing.T) {
	_, err := GetVaultView(nil, nil)
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = GetVaultView(&kong.VaultListItem{ChainID: 1, Address: "not-an-address"}, nil)
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestGetVaultViewIsDeterministic(t *testing.T) {
	first, err := GetVaultView(listItem(), snapshot())
	require.NoError(t, err)
	second, err := GetVaultView(listItem(), snapshot())
	require.NoError(t, err)

	assert.Equal(t, first, second)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.JSONEq(t, string(a), string(b))
}

func TestGetVaultViewPrefersSnapshot(t *testing.T) {
	view, err := GetVaultView(listItem(), snapshot())
	require.NoError(t, err)

	assert.Equal(t, "1:"+vaultAddr, view.Key())
	assert.Equal(t, uint64(1), view.ChainID)
	assert.InDelta(t, 1.02, view.TVL.TVL, 1e-9)
	assert.InDelta(t, 0.045, view.APR.NetAPR, 1e-9)
	// no weekly point in the snapshot, so the list historical value is used
	assert.InDelta(t, 0.041, view.APR.Points.WeekAgo, 1e-9)
	assert.InDelta(t, 0.052, view.APR.ForwardAPR.NetAPR, 1e-9)
	assert.InDelta(t, 0.051, view.APR.ForwardAPR.Composite.V3OracleCurrentAPR, 1e-9)
	assert.InDelta(t, 0.1, view.APR.Fees.Performance, 1e-9)
	assert.Equal(t, "v3:averaged", view.APR.Type)
	assert.Equal(t, KindMultiStrategy, view.Kind)
	assert.Equal(t, TypeStandard, view.Type)
	assert.Equal(t, CategoryStablecoin, view.Category)
	assert.True(t, view.Endorsed)
	assert.Equal(t, -1, view.Info.RiskLevel)

	require.Len(t, view.Strategies, 3)
	assert.Equal(t, stratA, view.Strategies[0].Address)
	assert.Equal(t, "Aave Lender", view.Strategies[0].Name)
	assert.Equal(t, int64(5000), view.Strategies[0].DebtRatio)
	assert.Equal(t, int64(2500), view.Strategies[1].DebtRatio)
	assert.Equal(t, StatusUnallocated, view.Strategies[2].Status)
	assert.Equal(t, int64(0), view.Strategies[2].DebtRatio)
	assert.Equal(t, int64(2500), view.Unallocated())
}

func TestGetVaultViewListOnly(t *testing.T) {
	view, err := GetVaultView(listItem(), nil)
	require.NoError(t, err)

	assert.Equal(t, 900.0, view.TVL.TVL)
	assert.Equal(t, 0.0, view.TVL.Price)
	assert.InDelta(t, 0.04, view.APR.NetAPR, 1e-9)
	assert.InDelta(t, 0.052, view.APR.ForwardAPR.NetAPR, 1e-9)

	// ratios derived against the summed debt of the list entries
	require.Len(t, view.Strategies, 2)
	assert.Equal(t, int64(6666), view.Strategies[0].DebtRatio)
	assert.Equal(t, int64(3333), view.Strategies[1].DebtRatio)
	assert.Equal(t, StatusActive, view.Strategies[1].Status)
	assert.Equal(t, int64(1), view.Unallocated())
}

func TestForwardAPRFallsBackToNet(t *testing.T) {
	item := listItem()
	item.Performance.Oracle = nil

	view, err := GetVaultView(item, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.04, view.APR.ForwardAPR.NetAPR, 1e-9)

	item.Performance = nil
	view, err = GetVaultView(item, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, view.APR.NetAPR)
	assert.Equal(t, 0.0, view.APR.ForwardAPR.NetAPR)
}

func TestStakingAndMigration(t *testing.T) {
	item := listItem()
	item.Staking = &kong.Staking{
		Address:   stratC,
		Available: true,
		Source:    "VeYFI",
		Rewards: []kong.StakingReward{
			{Address: tokenAddr, Symbol: "dYFI", APR: fp(0.02)},
			{Address: tokenAddr, Symbol: "OP", APR: fp(0.5), IsFinished: true},
		},
	}
	item.Migration = &kong.Migration{Available: true, Target: vaultAddr}

	view, err := GetVaultView(item, nil)
	require.NoError(t, err)

	assert.Equal(t, StakingVeYFI, view.Staking.Source)
	assert.True(t, view.Staking.Available)
	assert.InDelta(t, 0.02, view.APR.Extra.StakingRewardsAPR, 1e-9)
	assert.False(t, view.Migration.Available, "a vault cannot migrate into itself")

	item.Migration.Target = stratA
	view, err = GetVaultView(item, nil)
	require.NoError(t, err)
	assert.True(t, view.Migration.Available)
	assert.Equal(t, stratA, view.Migration.Target)
}

func TestDeriveRatio(t *testing.T) {
	tests := []struct {
		debt, total uint64
		want        int64
	}{
		{2500, 10000, 2500},
		{1, 3, 3333},
		{5, 0, 0},
		{0, 100, 0},
		{200, 100, MaxBPS},
	}
	for _, tt := range tests {
		got := DeriveRatio(uint256.NewInt(tt.debt), uint256.NewInt(tt.total))
		assert.Equal(t, tt.want, got, "%d/%d", tt.debt, tt.total)
	}
}

func TestExplicitRatiosAreClamped(t *testing.T) {
	snap := &kong.VaultSnapshot{
		Address: vaultAddr, ChainID: 1, Decimals: 18, TotalAssets: "100",
		Composition: []kong.SnapshotComposition{
			{Address: stratA, TotalDebt: "40", DebtRatio: ip(6000), Status: "not_active"},
			{Address: stratB, TotalDebt: "60", DebtRatio: ip(6000)},
		},
	}

	strategies := BuildStrategies(nil, snap, 18)
	require.Len(t, strategies, 2)
	assert.Equal(t, stratB, strategies[0].Address)
	assert.Equal(t, int64(6000), strategies[0].DebtRatio)
	assert.Equal(t, int64(4000), strategies[1].DebtRatio)
	assert.Equal(t, int64(0), Unallocated(strategies))
}

func TestRatiosDivideByTotalDebtWithoutTotalAssets(t *testing.T) {
	snap := &kong.VaultSnapshot{
		Address: vaultAddr, ChainID: 1, Decimals: 18, TotalDebt: "1000",
		Debts: []kong.SnapshotDebt{
			{Strategy: stratA, CurrentDebt: "400"},
			{Strategy: stratB, CurrentDebt: "600"},
		},
	}

	strategies := BuildStrategies(nil, snap, 18)
	require.Len(t, strategies, 2)
	assert.Equal(t, stratB, strategies[0].Address)
	assert.Equal(t, int64(6000), strategies[0].DebtRatio)
	assert.Equal(t, StatusActive, strategies[0].Status)
	assert.Equal(t, int64(4000), strategies[1].DebtRatio)
	assert.Equal(t, StatusActive, strategies[1].Status)
	assert.Equal(t, int64(0), Unallocated(strategies))

	snap.TotalAssets = "0"
	snap.TotalDebt = ""
	strategies = BuildStrategies(nil, snap, 18)
	require.Len(t, strategies, 2)
	assert.Equal(t, int64(6000), strategies[0].DebtRatio, "no usable total falls back to the summed debt")
	assert.Equal(t, int64(4000), strategies[1].DebtRatio)
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, StatusUnallocated, ClassifyStatus("active", uint256.NewInt(0), 5000))
	assert.Equal(t, StatusActive, ClassifyStatus("active", uint256.NewInt(1), 0))
	assert.Equal(t, StatusActive, ClassifyStatus("", uint256.NewInt(1), 10))
	assert.Equal(t, StatusNotActive, ClassifyStatus("retired", uint256.NewInt(1), 0))
}

func TestStrategyInvariantsHoldForRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		snap := &kong.VaultSnapshot{
			Address:     vaultAddr,
			ChainID:     1,
			Decimals:    18,
			TotalAssets: fmt.Sprintf("%d", rng.Int63n(1_000_000)),
		}
		n := rng.Intn(6)
		for i := 0; i < n; i++ {
			comp := kong.SnapshotComposition{
				Address:   fmt.Sprintf("0x%040x", i+1),
				TotalDebt: fmt.Sprintf("%d", rng.Int63n(500_000)),
			}
			if rng.Intn(2) == 0 {
				comp.DebtRatio = ip(rng.Int63n(12_000) - 1000)
			}
			snap.Composition = append(snap.Composition, comp)
		}

		view, err := GetVaultView(nil, snap)
		require.NoError(t, err)

		var sum int64
		for _, s := range view.Strategies {
			assert.GreaterOrEqual(t, s.DebtRatio, int64(0))
			sum += s.DebtRatio
			if s.TotalDebt.IsZero() {
				assert.Equal(t, StatusUnallocated, s.Status)
			}
		}
		assert.LessOrEqual(t, sum, MaxBPS)
		assert.Equal(t, MaxBPS-sum, view.Unallocated())
	}
}

func TestKindAndType(t *testing.T) {
	assert.Equal(t, KindLegacy, DeriveKind("0.4.6", false, 3))
	assert.Equal(t, KindMultiStrategy, DeriveKind("3.0.1", false, 2))
	assert.Equal(t, KindSingleStrategy, DeriveKind("3.0.1", false, 0))

	kind, ok := ParseKind("MULTI_STRATEGY")
	assert.True(t, ok)
	assert.Equal(t, KindMultiStrategy, kind)
	_, ok = ParseKind("bogus")
	assert.False(t, ok)

	assert.Equal(t, TypeAutomated, ParseType("Automated Yearn Vault"))
	assert.Equal(t, TypeAutomated, ParseType("2"))
	assert.Equal(t, TypeExperimental, ParseType("Experimental Yearn Vault"))
	assert.Equal(t, TypeStandard, ParseType(""))
}

func TestUpstreamKindWins(t *testing.T) {
	item := listItem()
	item.Kind = "Single Strategy"

	view, err := GetVaultView(item, nil)
	require.NoError(t, err)
	assert.Equal(t, KindSingleStrategy, view.Kind)
}

func TestDetectCategory(t *testing.T) {
	assert.Equal(t, CategoryStablecoin, DetectCategory("", "", "crvUSD"))
	assert.Equal(t, CategoryStablecoin, DetectCategory("", "", "USDC-USDT"))
	assert.Equal(t, "Curve", DetectCategory("Curve stETH Factory yVault", "", "stETH-ETH"))
	assert.Equal(t, "Balancer", DetectCategory("", "Balancer 80BAL-20WETH", "B-80BAL-20WETH"))
	assert.Equal(t, "Velodrome", DetectCategory("", "", "vAMM-WETH/OP"))
	assert.Equal(t, "Pendle", DetectCategory("", "", "PT-sUSDe-26DEC2024"))
	assert.Equal(t, CategoryVolatile, DetectCategory("WETH yVault", "Wrapped Ether", "WETH"))

	item := listItem()
	item.Category = "Prisma"
	view, err := GetVaultView(item, nil)
	require.NoError(t, err)
	assert.Equal(t, "Prisma", view.Category)
}

func TestNormalizeAndToRaw(t *testing.T) {
	raw, ok := ParseRaw("1234567")
	require.True(t, ok)
	assert.Equal(t, "1.234567", Normalize(raw, 6).String())

	back, err := ToRaw(decimal.RequireFromString("1.2345678"), 6)
	require.NoError(t, err)
	assert.Equal(t, "1234567", back.Dec())

	_, err = ToRaw(decimal.NewFromInt(-1), 6)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	hex, ok := ParseRaw("0x10")
	require.True(t, ok)
	assert.Equal(t, uint64(16), hex.Uint64())
}

func TestAmountJSON(t *testing.T) {
	data, err := json.Marshal(ParseAmount("1500000", 6))
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw":"1500000","decimals":6,"normalized":"1.5"}`, string(data))

	var decoded Amount
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, uint64(1500000), decoded.Raw.Uint64())
	assert.Equal(t, 6, decoded.Decimals)
}
