package vault

import (
	"sort"
	"strings"

	"github.com/holiman/uint256"

	"yearn-vaults/internal/kong"
	"yearn-vaults/internal/vault/pick"
)

// MaxBPS is the sum every vault's strategy ratios must stay within.
const MaxBPS int64 = 10000

type StrategyStatus string

const (
	StatusActive      StrategyStatus = "active"
	StatusNotActive   StrategyStatus = "not_active"
	StatusUnallocated StrategyStatus = "unallocated"
)

type Strategy struct {
	Address        string         `json:"address"`
	Name           string         `json:"name"`
	Status         StrategyStatus `json:"status"`
	DebtRatio      int64          `json:"debtRatio"`
	TotalDebt      Amount         `json:"totalDebt"`
	TotalGain      Amount         `json:"totalGain"`
	TotalLoss      Amount         `json:"totalLoss"`
	LastReport     int64          `json:"lastReport"`
	PerformanceFee float64        `json:"performanceFee"`
	NetAPR         float64        `json:"netAPR"`
}

type strategyInput struct {
	address    string
	name       string
	status     string
	debt       *uint256.Int
	ratio      *int64
	gain       string
	loss       string
	lastReport int64
	fee        float64
	netAPR     float64
}

// BuildStrategies assembles the strategy allocations of a vault. Snapshot
// composition and debts win over the compact list entries; list names fill
// blanks either way.
func BuildStrategies(item *kong.VaultListItem, snap *kong.VaultSnapshot, decimals int) []Strategy {
	listByAddr := map[string]kong.ListStrategy{}
	if item != nil {
		for _, s := range item.Strategies {
			listByAddr[strings.ToLower(s.Address)] = s
		}
	}

	var (
		inputs  []strategyInput
		divisor *uint256.Int
	)

	switch {
	case snap != nil && (len(snap.Composition) > 0 || len(snap.Debts) > 0 || len(snap.Strategies) > 0):
		inputs = snapshotInputs(snap, listByAddr)
		divisor = parseOrZero(pick.Or("",
			positiveRaw(snap.TotalAssets),
			pick.Lazy(func() (string, bool) {
				if item == nil {
					return "", false
				}
				return positiveRaw(item.TotalAssets)()
			}),
			positiveRaw(snap.TotalDebt),
		))
		if divisor.IsZero() {
			divisor = sumDebt(inputs)
		}
	case item != nil:
		inputs = listInputs(item)
		divisor = sumDebt(inputs)
	default:
		return []Strategy{}
	}

	return allocate(inputs, divisor, decimals)
}

func snapshotInputs(snap *kong.VaultSnapshot, listByAddr map[string]kong.ListStrategy) []strategyInput {
	debtsByAddr := make(map[string]kong.SnapshotDebt, len(snap.Debts))
	for _, d := range snap.Debts {
		debtsByAddr[strings.ToLower(d.Strategy)] = d
	}

	seen := map[string]bool{}
	var inputs []strategyInput

	add := func(addr string, comp *kong.SnapshotComposition) {
		key := strings.ToLower(addr)
		checksummed := ChecksumAddress(addr)
		if checksummed == "" || seen[key] {
			return
		}
		seen[key] = true

		debt := debtsByAddr[key]
		listed, hasListed := listByAddr[key]
		in := strategyInput{address: checksummed}

		var compDebt, compName, compStatus, compGain, compLoss string
		var compRatio *int64
		var compFee *float64
		var compAPR pick.Source[float64]
		if comp != nil {
			compDebt, compName, compStatus = comp.TotalDebt, comp.Name, comp.Status
			compGain, compLoss = comp.TotalGain, comp.TotalLoss
			compRatio, compFee = comp.DebtRatio, comp.PerformanceFee
			in.lastReport = comp.LastReport
			compAPR = compositionAPR(comp.Performance)
		}

		in.debt = parseOrZero(pick.Or("",
			rawSource(compDebt),
			rawSource(debt.CurrentDebt),
			rawSource(debt.TotalDebt),
			pick.Lazy(func() (string, bool) { return listed.TotalDebt, hasListed && isRaw(listed.TotalDebt) }),
		))

		if r, ok := pick.First(pick.Int64(compRatio), pick.Int64(debt.DebtRatio), pick.Int64(debt.TargetDebtRatio)); ok {
			in.ratio = &r
		} else if hasListed && listed.DebtRatio != nil {
			r := *listed.DebtRatio
			in.ratio = &r
		}

		in.name = pick.Or(addr, pick.String(compName), pick.String(listed.Name))
		in.status = pick.Or("", pick.String(compStatus), pick.String(listed.Status))
		in.gain = pick.Or("", rawSource(compGain), rawSource(debt.TotalGain))
		in.loss = pick.Or("", rawSource(compLoss), rawSource(debt.TotalLoss))
		if in.lastReport == 0 && hasListed {
			in.lastReport = listed.LastReport
		}
		in.fee = pick.Or(0, pick.Float(compFee)) / float64(MaxBPS)
		in.netAPR = pick.Or(0, compAPR, pick.Lazy(func() (float64, bool) {
			if !hasListed {
				return 0, false
			}
			return pick.Float(listed.NetAPR)()
		}))

		inputs = append(inputs, in)
	}

	for i := range snap.Composition {
		add(snap.Composition[i].Address, &snap.Composition[i])
	}
	for _, d := range snap.Debts {
		add(d.Strategy, nil)
	}
	for _, addr := range snap.Strategies {
		add(addr, nil)
	}

	return inputs
}

func listInputs(item *kong.VaultListItem) []strategyInput {
	seen := map[string]bool{}
	inputs := make([]strategyInput, 0, len(item.Strategies))

	for _, s := range item.Strategies {
		checksummed := ChecksumAddress(s.Address)
		key := strings.ToLower(s.Address)
		if checksummed == "" || seen[key] {
			continue
		}
		seen[key] = true

		in := strategyInput{
			address:    checksummed,
			name:       pick.Or(s.Address, pick.String(s.Name)),
			status:     s.Status,
			debt:       parseOrZero(s.TotalDebt),
			lastReport: s.LastReport,
			netAPR:     pick.Or(0, pick.Float(s.NetAPR)),
		}
		if s.DebtRatio != nil {
			r := *s.DebtRatio
			in.ratio = &r
		}
		inputs = append(inputs, in)
	}
	return inputs
}

func compositionAPR(perf *kong.CompositionPerformance) pick.Source[float64] {
	return pick.Lazy(func() (float64, bool) {
		if perf == nil {
			return 0, false
		}
		var historical, oracle *float64
		if perf.Historical != nil {
			historical = perf.Historical.Net
		}
		if perf.Oracle != nil {
			oracle = perf.Oracle.APR
		}
		return pick.First(pick.Float(historical), pick.Float(oracle))
	})
}

func allocate(inputs []strategyInput, divisor *uint256.Int, decimals int) []Strategy {
	ratios := make([]int64, len(inputs))
	for i, in := range inputs {
		switch {
		case in.debt.IsZero():
			ratios[i] = 0
		case in.ratio != nil:
			ratios[i] = clampBPS(*in.ratio)
		default:
			ratios[i] = DeriveRatio(in.debt, divisor)
		}
	}

	order := make([]int, len(inputs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return debtLess(inputs[order[b]], inputs[order[a]])
	})

	budget := MaxBPS
	for _, idx := range order {
		if ratios[idx] > budget {
			ratios[idx] = budget
		}
		budget -= ratios[idx]
	}

	strategies := make([]Strategy, 0, len(inputs))
	for _, idx := range order {
		in := inputs[idx]
		strategies = append(strategies, Strategy{
			Address:        in.address,
			Name:           in.name,
			Status:         ClassifyStatus(in.status, in.debt, ratios[idx]),
			DebtRatio:      ratios[idx],
			TotalDebt:      NewAmount(in.debt, decimals),
			TotalGain:      ParseAmount(in.gain, decimals),
			TotalLoss:      ParseAmount(in.loss, decimals),
			LastReport:     in.lastReport,
			PerformanceFee: in.fee,
			NetAPR:         in.netAPR,
		})
	}
	return strategies
}

// debtLess orders by debt ascending, then by address descending, so that the
// reversed comparison used above yields debt descending then address
// ascending.
func debtLess(a, b strategyInput) bool {
	if c := a.debt.Cmp(b.debt); c != 0 {
		return c < 0
	}
	return strings.ToLower(a.address) > strings.ToLower(b.address)
}

// DeriveRatio returns floor(debt * 10000 / total), or 0 when total is zero.
func DeriveRatio(debt, total *uint256.Int) int64 {
	if debt == nil || total == nil || total.IsZero() || debt.IsZero() {
		return 0
	}
	ratio, overflow := new(uint256.Int).MulDivOverflow(debt, uint256.NewInt(uint64(MaxBPS)), total)
	if overflow {
		return 0
	}
	if !ratio.IsUint64() || ratio.Uint64() > uint64(MaxBPS) {
		return MaxBPS
	}
	return int64(ratio.Uint64())
}

// ClassifyStatus derives a strategy status. Zero debt is always
// unallocated whatever upstream says.
func ClassifyStatus(upstream string, debt *uint256.Int, ratio int64) StrategyStatus {
	if debt == nil || debt.IsZero() {
		return StatusUnallocated
	}
	switch strings.ToLower(strings.TrimSpace(upstream)) {
	case "active", "isactive":
		return StatusActive
	}
	if ratio > 0 {
		return StatusActive
	}
	return StatusNotActive
}

// Unallocated returns 10000 minus the sum of strategy ratios.
func Unallocated(strategies []Strategy) int64 {
	var total int64
	for _, s := range strategies {
		total += s.DebtRatio
	}
	if total >= MaxBPS {
		return 0
	}
	return MaxBPS - total
}

func clampBPS(v int64) int64 {
	if v < 0 {
		return 0
	}
	if v > MaxBPS {
		return MaxBPS
	}
	return v
}

func rawSource(raw string) pick.Source[string] {
	return func() (string, bool) { return raw, isRaw(raw) }
}

// positiveRaw skips zero totals so an empty field never zeroes every ratio.
func positiveRaw(raw string) pick.Source[string] {
	return func() (string, bool) {
		v, ok := ParseRaw(raw)
		return raw, ok && !v.IsZero()
	}
}

func sumDebt(inputs []strategyInput) *uint256.Int {
	total := new(uint256.Int)
	for _, in := range inputs {
		if in.debt != nil {
			total.Add(total, in.debt)
		}
	}
	return total
}

func isRaw(raw string) bool {
	_, ok := ParseRaw(raw)
	return ok
}

func parseOrZero(raw string) *uint256.Int {
	if v, ok := ParseRaw(raw); ok {
		return v
	}
	return new(uint256.Int)
}
