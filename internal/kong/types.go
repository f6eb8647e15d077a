package kong

// Numeric fields that upstream omits for young vaults or unsupported chains
// are pointers so that "absent" can be told apart from a genuine zero.

type Token struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

type OracleAPR struct {
	APR *float64 `json:"apr"`
	APY *float64 `json:"apy"`
}

type EstimatedComponents struct {
	Boost      *float64 `json:"boost"`
	PoolAPY    *float64 `json:"poolAPY"`
	BoostedAPR *float64 `json:"boostedAPR"`
	BaseAPR    *float64 `json:"baseAPR"`
	RewardsAPR *float64 `json:"rewardsAPR"`
	RewardsAPY *float64 `json:"rewardsAPY"`
	CvxAPR     *float64 `json:"cvxAPR"`
	KeepCRV    *float64 `json:"keepCRV"`
}

type EstimatedAPR struct {
	APR        *float64             `json:"apr"`
	APY        *float64             `json:"apy"`
	Type       string               `json:"type"`
	Components *EstimatedComponents `json:"components"`
}

type HistoricalAPR struct {
	Net          *float64 `json:"net"`
	WeeklyNet    *float64 `json:"weeklyNet"`
	MonthlyNet   *float64 `json:"monthlyNet"`
	InceptionNet *float64 `json:"inceptionNet"`
}

type Performance struct {
	Oracle     *OracleAPR     `json:"oracle"`
	Estimated  *EstimatedAPR  `json:"estimated"`
	Historical *HistoricalAPR `json:"historical"`
}

type Fees struct {
	ManagementFee  *float64 `json:"managementFee"`  // basis points
	PerformanceFee *float64 `json:"performanceFee"` // basis points
}

type StakingReward struct {
	Address    string   `json:"address"`
	Name       string   `json:"name"`
	Symbol     string   `json:"symbol"`
	Decimals   int      `json:"decimals"`
	Price      *float64 `json:"price"`
	IsFinished bool     `json:"isFinished"`
	FinishedAt int64    `json:"finishedAt"`
	APR        *float64 `json:"apr"`
	PerWeek    *float64 `json:"perWeek"`
}

type Staking struct {
	Address   string          `json:"address"`
	Available bool            `json:"available"`
	Source    string          `json:"source"`
	Rewards   []StakingReward `json:"rewards"`
}

type Migration struct {
	Available bool   `json:"available"`
	Target    string `json:"target"`
	Contract  string `json:"contract"`
}

// ListStrategy is the compact strategy entry carried by the list endpoint.
type ListStrategy struct {
	Address    string   `json:"address"`
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	TotalDebt  string   `json:"totalDebt"`
	DebtRatio  *int64   `json:"debtRatio"`
	LastReport int64    `json:"lastReport"`
	NetAPR     *float64 `json:"netAPR"`
}

// VaultListItem is one entry of the REST vault list.
type VaultListItem struct {
	ChainID         uint64         `json:"chainId"`
	Address         string         `json:"address"`
	Name            string         `json:"name"`
	Symbol          string         `json:"symbol"`
	APIVersion      string         `json:"apiVersion"`
	Decimals        int            `json:"decimals"`
	Asset           Token          `json:"asset"`
	TVL             *float64       `json:"tvl"`
	PricePerShare   string         `json:"pricePerShare"`
	TotalAssets     string         `json:"totalAssets"`
	Performance     *Performance   `json:"performance"`
	Fees            *Fees          `json:"fees"`
	Category        string         `json:"category"`
	Type            string         `json:"type"`
	Kind            string         `json:"kind"`
	V3              bool           `json:"v3"`
	Yearn           bool           `json:"yearn"`
	IsRetired       bool           `json:"isRetired"`
	IsHidden        bool           `json:"isHidden"`
	IsBoosted       bool           `json:"isBoosted"`
	IsHighlighted   bool           `json:"isHighlighted"`
	StrategiesCount int            `json:"strategiesCount"`
	Strategies      []ListStrategy `json:"strategies"`
	RiskLevel       *int           `json:"riskLevel"`
	Staking         *Staking       `json:"staking"`
	Migration       *Migration     `json:"migration"`
	Origin          string         `json:"origin"`
}

type SnapshotTVL struct {
	Close *float64 `json:"close"`
}

type SnapshotAPY struct {
	Net                  *float64 `json:"net"`
	WeeklyNet            *float64 `json:"weeklyNet"`
	MonthlyNet           *float64 `json:"monthlyNet"`
	InceptionNet         *float64 `json:"inceptionNet"`
	PricePerShare        *float64 `json:"pricePerShare"`
	WeeklyPricePerShare  *float64 `json:"weeklyPricePerShare"`
	MonthlyPricePerShare *float64 `json:"monthlyPricePerShare"`
}

type SnapshotMeta struct {
	Kind          string     `json:"kind"`
	Type          string     `json:"type"`
	Category      string     `json:"category"`
	IsRetired     bool       `json:"isRetired"`
	IsHidden      bool       `json:"isHidden"`
	IsBoosted     bool       `json:"isBoosted"`
	IsHighlighted bool       `json:"isHighlighted"`
	Description   string     `json:"description"`
	DisplayName   string     `json:"displayName"`
	DisplaySymbol string     `json:"displaySymbol"`
	Protocols     []string   `json:"protocols"`
	RiskLevel     *int       `json:"riskLevel"`
	Token         *Token     `json:"token"`
	Migration     *Migration `json:"migration"`
}

// SnapshotDebt is the allocator view of a strategy (v3 debts).
type SnapshotDebt struct {
	Strategy        string `json:"strategy"`
	CurrentDebt     string `json:"currentDebt"`
	MaxDebt         string `json:"maxDebt"`
	TotalDebt       string `json:"totalDebt"`
	DebtRatio       *int64 `json:"debtRatio"`
	TargetDebtRatio *int64 `json:"targetDebtRatio"`
	TotalGain       string `json:"totalGain"`
	TotalLoss       string `json:"totalLoss"`
}

type CompositionPerformance struct {
	Oracle     *OracleAPR     `json:"oracle"`
	Historical *HistoricalAPR `json:"historical"`
}

// SnapshotComposition is the descriptive view of a strategy.
type SnapshotComposition struct {
	Address        string                  `json:"address"`
	Name           string                  `json:"name"`
	Status         string                  `json:"status"`
	Activation     int64                   `json:"activation"`
	LastReport     int64                   `json:"lastReport"`
	TotalDebt      string                  `json:"totalDebt"`
	TotalDebtUSD   *float64                `json:"totalDebtUsd"`
	TotalGain      string                  `json:"totalGain"`
	TotalLoss      string                  `json:"totalLoss"`
	DebtRatio      *int64                  `json:"debtRatio"`
	PerformanceFee *float64                `json:"performanceFee"`
	Performance    *CompositionPerformance `json:"performance"`
}

// VaultSnapshot is the detailed per-vault shape served by the snapshot
// endpoint and the GraphQL vault query.
type VaultSnapshot struct {
	Address       string                `json:"address"`
	ChainID       uint64                `json:"chainId"`
	APIVersion    string                `json:"apiVersion"`
	Decimals      int                   `json:"decimals"`
	Name          string                `json:"name"`
	Symbol        string                `json:"symbol"`
	TotalAssets   string                `json:"totalAssets"`
	TotalDebt     string                `json:"totalDebt"`
	PricePerShare string                `json:"pricePerShare"`
	Asset         *Token                `json:"asset"`
	TVL           *SnapshotTVL          `json:"tvl"`
	APY           *SnapshotAPY          `json:"apy"`
	Performance   *Performance          `json:"performance"`
	Fees          *Fees                 `json:"fees"`
	Meta          *SnapshotMeta         `json:"meta"`
	Strategies    []string              `json:"strategies"`
	Debts         []SnapshotDebt        `json:"debts"`
	Composition   []SnapshotComposition `json:"composition"`
	Staking       *Staking              `json:"staking"`
}

// ListFilter narrows the list endpoint.
type ListFilter struct {
	Origin   string
	ChainIDs []uint64
}
