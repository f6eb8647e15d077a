package solver

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"yearn-vaults/internal/chain"
	"yearn-vaults/internal/config"
	"yearn-vaults/internal/logger"
	"yearn-vaults/internal/observability"
	"yearn-vaults/internal/vault"
)

// SimulatedCall is one transaction for the wallet to sign, in order.
type SimulatedCall struct {
	ChainID     uint64 `json:"chainId"`
	To          string `json:"to"`
	Data        string `json:"data"`
	Value       string `json:"value"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

type Quote struct {
	ExpectedOut vault.Amount `json:"expectedOut"`
	MinOut      vault.Amount `json:"minOut"`
	Spender     string       `json:"spender"`
	Error       string       `json:"error,omitempty"`
}

type Periphery struct {
	Balance    vault.Amount `json:"balance"`
	Allowance  vault.Amount `json:"allowance"`
	IsApproved bool         `json:"isApproved"`
}

// ActionFlow is everything a widget needs to run one action.
type ActionFlow struct {
	Solver    Kind            `json:"solver"`
	Quote     Quote           `json:"quote"`
	Periphery Periphery       `json:"periphery"`
	Actions   []SimulatedCall `json:"actions"`
	Order     *CowOrder       `json:"order,omitempty"`
}

// Plan is what a solver prepares for a request.
type Plan struct {
	Spender     common.Address
	ExpectedOut *uint256.Int
	MinOut      *uint256.Int
	Calls       []SimulatedCall
	Order       *CowOrder
}

type Solver interface {
	Plan(ctx context.Context, req Request, env Env) (*Plan, error)
}

type FlowOptions struct {
	Config       *config.Config
	Reader       chain.Reader
	Enso         EnsoRouter
	Cow          CowQuoter
	Logger       *logger.Logger
	QuoteTimeout time.Duration
}

// Flow selects a solver and assembles the ActionFlow for a request.
type Flow struct {
	cfg     *config.Config
	reader  chain.Reader
	solvers map[Kind]Solver
	log     *logger.Logger
	timeout time.Duration
}

func NewFlow(opts FlowOptions) *Flow {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	timeout := opts.QuoteTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	// Solvers see read errors; only periphery values fall back to zero.
	reader := opts.Reader
	var safe chain.Reader
	if reader != nil {
		safe = chain.NewSafeReader(reader, log)
	}

	solvers := map[Kind]Solver{
		Vanilla:              vanillaSolver{reader: reader},
		PartnerContract:      partnerSolver{reader: reader},
		InternalMigration:    migrationSolver{reader: reader},
		OptimismBooster:      boosterSolver{kind: OptimismBooster, reader: reader},
		GaugeStakingBooster:  boosterSolver{kind: GaugeStakingBooster, reader: reader},
		JuicedStakingBooster: boosterSolver{kind: JuicedStakingBooster, reader: reader},
		V3StakingBooster:     boosterSolver{kind: V3StakingBooster, reader: reader},
	}
	if opts.Enso != nil {
		solvers[Enso] = ensoSolver{router: opts.Enso}
	}
	if opts.Cow != nil {
		solvers[Cowswap] = cowSolver{quoter: opts.Cow}
	}

	return &Flow{
		cfg:     opts.Config,
		reader:  safe,
		solvers: solvers,
		log:     log,
		timeout: timeout,
	}
}

// Build never fails on a bad quote: the error lands in Quote.Error and the
// flow carries no actions.
func (f *Flow) Build(ctx context.Context, req Request) (*ActionFlow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env := EnvFor(f.cfg, req.ChainID())
	if req.SlippageBps <= 0 || req.SlippageBps > int(vault.MaxBPS) {
		req.SlippageBps = env.SlippageBps
	}

	kind := Select(req, env)
	observability.Solver().ObserveSelection(string(kind), string(req.Action))

	outDecimals := outputDecimals(req, kind)
	flow := &ActionFlow{
		Solver:  kind,
		Actions: []SimulatedCall{},
		Quote: Quote{
			ExpectedOut: vault.NewAmount(nil, outDecimals),
			MinOut:      vault.NewAmount(nil, outDecimals),
		},
	}

	if kind == None {
		flow.Quote.Error = ErrNoRoute.Error()
		flow.Periphery = f.periphery(ctx, req, common.Address{})
		return flow, nil
	}

	solver, ok := f.solvers[kind]
	if !ok {
		flow.Quote.Error = ErrUnsupported.Error()
		flow.Periphery = f.periphery(ctx, req, common.Address{})
		return flow, nil
	}

	quoteCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	plan, err := solver.Plan(quoteCtx, req, env)
	observability.Solver().ObserveQuote(string(kind), err != nil)
	if err != nil {
		f.log.Warn("⚠️ %s quote for %s failed: %v", kind, req.Vault.Key(), err)
		flow.Quote.Error = err.Error()
		flow.Periphery = f.periphery(ctx, req, common.Address{})
		return flow, nil
	}

	expected := plan.ExpectedOut
	if expected == nil {
		expected = new(uint256.Int)
	}
	minOut := plan.MinOut
	if minOut == nil {
		if kind.IsZap() {
			minOut = applySlippage(expected, req.SlippageBps)
		} else {
			minOut = expected
		}
	}

	flow.Quote.ExpectedOut = vault.NewAmount(expected, outDecimals)
	flow.Quote.MinOut = vault.NewAmount(minOut, outDecimals)
	if !isZero(plan.Spender) {
		flow.Quote.Spender = plan.Spender.Hex()
	}
	flow.Order = plan.Order
	flow.Periphery = f.periphery(ctx, req, plan.Spender)

	if !isZero(plan.Spender) && !flow.Periphery.IsApproved {
		approve, err := packCall(req.ChainID(), req.InputToken, chain.ERC20ABI, "approve",
			"Approve "+plan.Spender.Hex(), plan.Spender, req.Amount.ToBig())
		if err != nil {
			flow.Quote.Error = err.Error()
			return flow, nil
		}
		flow.Actions = append(flow.Actions, approve)
	}
	flow.Actions = append(flow.Actions, plan.Calls...)

	return flow, nil
}

func (f *Flow) periphery(ctx context.Context, req Request, spender common.Address) Periphery {
	inDecimals := inputDecimals(req)
	p := Periphery{
		Balance:   vault.NewAmount(nil, inDecimals),
		Allowance: vault.NewAmount(nil, inDecimals),
	}
	if f.reader == nil || isZero(req.Owner) || isZero(req.InputToken) || req.InputToken == NativeToken {
		p.IsApproved = req.InputToken == NativeToken
		return p
	}

	balance, _ := f.reader.BalanceOf(ctx, req.ChainID(), req.InputToken, req.Owner)
	p.Balance = vault.NewAmount(balance, inDecimals)

	if isZero(spender) {
		p.IsApproved = true
		return p
	}

	allowance, _ := f.reader.Allowance(ctx, req.ChainID(), req.InputToken, req.Owner, spender)
	p.Allowance = vault.NewAmount(allowance, inDecimals)
	p.IsApproved = req.Amount != nil && allowance != nil && !allowance.Lt(req.Amount)
	return p
}

func inputDecimals(req Request) int {
	switch req.InputToken {
	case req.VaultAddress(), req.StakingAddress():
		return req.Vault.Decimals
	case req.Underlying():
		return req.Vault.Token.Decimals
	}
	if req.InputDecimals > 0 {
		return req.InputDecimals
	}
	return 18
}

func outputDecimals(req Request, kind Kind) int {
	if req.Action == ActionDeposit || kind == InternalMigration || kind.IsBooster() {
		return req.Vault.Decimals
	}
	if req.OutputToken == req.Underlying() {
		return req.Vault.Token.Decimals
	}
	if req.OutputDecimals > 0 {
		return req.OutputDecimals
	}
	return 18
}

// applySlippage returns amount * (10000 - bps) / 10000.
func applySlippage(amount *uint256.Int, bps int) *uint256.Int {
	if amount == nil {
		return new(uint256.Int)
	}
	if bps < 0 {
		bps = 0
	}
	if bps > int(vault.MaxBPS) {
		bps = int(vault.MaxBPS)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(amount,
		uint256.NewInt(uint64(int(vault.MaxBPS)-bps)), uint256.NewInt(uint64(vault.MaxBPS)))
	if overflow {
		return new(uint256.Int)
	}
	return out
}

func packCall(chainID uint64, to common.Address, contract abi.ABI, method, description string, args ...interface{}) (SimulatedCall, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return SimulatedCall{}, err
	}
	return SimulatedCall{
		ChainID:     chainID,
		To:          to.Hex(),
		Data:        hexutil.Encode(data),
		Value:       "0",
		Method:      method,
		Description: description,
	}, nil
}
