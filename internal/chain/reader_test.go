package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	token   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	owner   = common.HexToAddress("0x7777777777777777777777777777777777777777")
	spender = common.HexToAddress("0x8888888888888888888888888888888888888888")
	vault   = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// fakeNode answers eth_call from a table keyed by method selector.
type fakeNode struct {
	mu      sync.Mutex
	block   uint64
	answers map[string][]byte
	calls   []ethereum.CallMsg
	err     error
}

func (f *fakeNode) answer(contract abi.ABI, method string, value int64) {
	if f.answers == nil {
		f.answers = map[string][]byte{}
	}
	m := contract.Methods[method]
	out, err := m.Outputs.Pack(big.NewInt(value))
	if err != nil {
		panic(err)
	}
	f.answers[string(m.ID)] = out
}

func (f *fakeNode) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if f.err != nil {
		return nil, f.err
	}
	if out, ok := f.answers[string(msg.Data[:4])]; ok {
		return out, nil
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeNode) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.block, f.err
}

func (f *fakeNode) setBlock(n uint64) {
	f.mu.Lock()
	f.block = n
	f.mu.Unlock()
}

func TestEthReaderBalanceOf(t *testing.T) {
	node := &fakeNode{}
	node.answer(ERC20ABI, "balanceOf", 42)
	reader := NewEthReader(map[uint64]Caller{1: node}, nil)

	balance, err := reader.BalanceOf(context.Background(), 1, token, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), balance.Uint64())

	require.Len(t, node.calls, 1)
	assert.Equal(t, token, *node.calls[0].To)
	args, err := ERC20ABI.Methods["balanceOf"].Inputs.Unpack(node.calls[0].Data[4:])
	require.NoError(t, err)
	assert.Equal(t, owner, args[0])
}

func TestEthReaderAllowanceAndPreview(t *testing.T) {
	node := &fakeNode{}
	node.answer(ERC20ABI, "allowance", 7)
	node.answer(ERC4626ABI, "previewDeposit", 990)
	reader := NewEthReader(map[uint64]Caller{10: node}, nil)

	allowance, err := reader.Allowance(context.Background(), 10, token, owner, spender)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), allowance.Uint64())

	shares, err := reader.PreviewDeposit(context.Background(), 10, vault, uint256.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(990), shares.Uint64())

	_, err = reader.PricePerShare(context.Background(), 10, vault)
	assert.Error(t, err)
}

func TestEthReaderUnknownChain(t *testing.T) {
	reader := NewEthReader(map[uint64]Caller{}, nil)

	_, err := reader.BalanceOf(context.Background(), 137, token, owner)
	assert.ErrorIs(t, err, ErrUnknownChain)
	_, err = reader.BlockNumber(context.Background(), 137)
	assert.ErrorIs(t, err, ErrUnknownChain)
}

func TestSafeReaderZeroesFailures(t *testing.T) {
	node := &fakeNode{err: errors.New("connection refused")}
	safe := NewSafeReader(NewEthReader(map[uint64]Caller{1: node}, nil), nil)

	balance, err := safe.BalanceOf(context.Background(), 1, token, owner)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	earned, err := safe.Earned(context.Background(), 1, vault, owner)
	require.NoError(t, err)
	assert.True(t, earned.IsZero())

	block, err := safe.BlockNumber(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), block)
}

func TestWatcherEmitsOnNewBlocks(t *testing.T) {
	node := &fakeNode{block: 100}
	reader := NewEthReader(map[uint64]Caller{1: node}, nil)
	watcher := NewWatcher(reader, []uint64{1, 5}, time.Hour, nil)
	events := watcher.Subscribe(4)

	watcher.Poll(context.Background())
	require.Len(t, events, 1)
	assert.Equal(t, BlockEvent{ChainID: 1, Number: 100}, <-events)

	watcher.Poll(context.Background())
	assert.Len(t, events, 0, "same head must not be re-announced")

	node.setBlock(101)
	watcher.Poll(context.Background())
	assert.Equal(t, BlockEvent{ChainID: 1, Number: 101}, <-events)
	assert.Equal(t, uint64(101), watcher.Latest(1))
	assert.Equal(t, uint64(0), watcher.Latest(5))
}

func TestWatcherRunClosesSubscriptions(t *testing.T) {
	node := &fakeNode{block: 1}
	watcher := NewWatcher(NewEthReader(map[uint64]Caller{1: node}, nil), []uint64{1}, time.Millisecond, nil)
	events := watcher.Subscribe(16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watcher.Run(ctx)
		close(done)
	}()

	assert.Equal(t, uint64(1), (<-events).Number)
	cancel()
	<-done

	for range events {
	}
	_, open := <-events
	assert.False(t, open)
}
