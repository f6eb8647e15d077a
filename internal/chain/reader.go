package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"yearn-vaults/internal/config"
	"yearn-vaults/internal/logger"
)

var ErrUnknownChain = errors.New("chain: no rpc configured for chain")

// Reader is the set of on-chain reads the service needs.
type Reader interface {
	BalanceOf(ctx context.Context, chainID uint64, token, owner common.Address) (*uint256.Int, error)
	Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (*uint256.Int, error)
	PricePerShare(ctx context.Context, chainID uint64, vault common.Address) (*uint256.Int, error)
	PreviewDeposit(ctx context.Context, chainID uint64, vault common.Address, assets *uint256.Int) (*uint256.Int, error)
	PreviewRedeem(ctx context.Context, chainID uint64, vault common.Address, shares *uint256.Int) (*uint256.Int, error)
	Earned(ctx context.Context, chainID uint64, staking, owner common.Address) (*uint256.Int, error)
	BlockNumber(ctx context.Context, chainID uint64) (uint64, error)
}

// Caller is the subset of the node RPC used by EthReader.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EthReader answers Reader calls with eth_call against one node per chain.
type EthReader struct {
	clients map[uint64]Caller
	closers []func()
	log     *logger.Logger
}

func NewEthReader(clients map[uint64]Caller, log *logger.Logger) *EthReader {
	if log == nil {
		log = logger.Nop()
	}
	return &EthReader{clients: clients, log: log}
}

// Dial connects to the RPC endpoint of every configured chain. Chains
// without an rpc_url are skipped.
func Dial(ctx context.Context, chains map[string]config.ChainConfig, log *logger.Logger) (*EthReader, error) {
	reader := NewEthReader(map[uint64]Caller{}, log)

	names := make([]string, 0, len(chains))
	for name := range chains {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := chains[name]
		endpoint := strings.TrimSpace(cfg.RPCURL)
		if endpoint == "" {
			continue
		}
		chainID := cfg.ID
		if chainID == 0 {
			id, err := strconv.ParseUint(name, 10, 64)
			if err != nil {
				reader.Close()
				return nil, fmt.Errorf("chain %q has no id", name)
			}
			chainID = id
		}

		client, err := ethclient.DialContext(ctx, endpoint)
		if err != nil {
			reader.Close()
			return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
		}
		reader.clients[chainID] = client
		reader.closers = append(reader.closers, client.Close)
		reader.log.Info("🔗 Connected to chain %d", chainID)
	}

	return reader, nil
}

func (r *EthReader) Close() {
	for _, closeFn := range r.closers {
		closeFn()
	}
	r.closers = nil
}

// Chains returns the ids of the connected chains in ascending order.
func (r *EthReader) Chains() []uint64 {
	ids := make([]uint64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *EthReader) BalanceOf(ctx context.Context, chainID uint64, token, owner common.Address) (*uint256.Int, error) {
	return r.callUint(ctx, chainID, token, ERC20ABI, "balanceOf", owner)
}

func (r *EthReader) Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (*uint256.Int, error) {
	return r.callUint(ctx, chainID, token, ERC20ABI, "allowance", owner, spender)
}

// PricePerShare works for both vault generations; both expose the same
// pricePerShare() view.
func (r *EthReader) PricePerShare(ctx context.Context, chainID uint64, vault common.Address) (*uint256.Int, error) {
	return r.callUint(ctx, chainID, vault, ERC4626ABI, "pricePerShare")
}

func (r *EthReader) PreviewDeposit(ctx context.Context, chainID uint64, vault common.Address, assets *uint256.Int) (*uint256.Int, error) {
	return r.callUint(ctx, chainID, vault, ERC4626ABI, "previewDeposit", toBig(assets))
}

func (r *EthReader) PreviewRedeem(ctx context.Context, chainID uint64, vault common.Address, shares *uint256.Int) (*uint256.Int, error) {
	return r.callUint(ctx, chainID, vault, ERC4626ABI, "previewRedeem", toBig(shares))
}

func (r *EthReader) Earned(ctx context.Context, chainID uint64, staking, owner common.Address) (*uint256.Int, error) {
	return r.callUint(ctx, chainID, staking, StakingRewardsABI, "earned", owner)
}

func (r *EthReader) BlockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	client, err := r.client(chainID)
	if err != nil {
		return 0, err
	}
	return client.BlockNumber(ctx)
}

func (r *EthReader) client(chainID uint64) (Caller, error) {
	client, ok := r.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	return client, nil
}

func (r *EthReader) callUint(ctx context.Context, chainID uint64, to common.Address, contract abi.ABI, method string, args ...interface{}) (*uint256.Int, error) {
	client, err := r.client(chainID)
	if err != nil {
		return nil, err
	}

	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}

	values, err := contract.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, values[0])
	}
	value, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, fmt.Errorf("%s result overflows uint256", method)
	}
	return value, nil
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
