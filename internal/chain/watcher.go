package chain

import (
	"context"
	"sync"
	"time"

	"yearn-vaults/internal/logger"
)

type BlockEvent struct {
	ChainID uint64 `json:"chainId"`
	Number  uint64 `json:"number"`
}

// Watcher polls the head block of each chain and notifies subscribers when
// it moves.
type Watcher struct {
	reader   Reader
	chains   []uint64
	interval time.Duration
	log      *logger.Logger

	mu     sync.RWMutex
	latest map[uint64]uint64
	subs   []chan BlockEvent
}

func NewWatcher(reader Reader, chains []uint64, interval time.Duration, log *logger.Logger) *Watcher {
	if interval <= 0 {
		interval = 12 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{
		reader:   reader,
		chains:   chains,
		interval: interval,
		log:      log,
		latest:   make(map[uint64]uint64),
	}
}

// Subscribe returns a channel of block events. Slow subscribers miss events
// instead of blocking the watcher.
func (w *Watcher) Subscribe(buffer int) <-chan BlockEvent {
	ch := make(chan BlockEvent, buffer)
	w.mu.Lock()
	w.subs = append(w.subs, ch)
	w.mu.Unlock()
	return ch
}

// Latest returns the last seen block of a chain, 0 when unknown.
func (w *Watcher) Latest(chainID uint64) uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest[chainID]
}

// Poll reads every chain head once.
func (w *Watcher) Poll(ctx context.Context) {
	for _, chainID := range w.chains {
		number, err := w.reader.BlockNumber(ctx, chainID)
		if err != nil {
			w.log.Warn("⚠️ Failed to read block number on chain %d: %v", chainID, err)
			continue
		}

		w.mu.Lock()
		moved := number > w.latest[chainID]
		if moved {
			w.latest[chainID] = number
		}
		subs := append([]chan BlockEvent(nil), w.subs...)
		w.mu.Unlock()

		if !moved {
			continue
		}
		event := BlockEvent{ChainID: chainID, Number: number}
		for _, sub := range subs {
			select {
			case sub <- event:
			default:
			}
		}
	}
}

// Run polls until ctx is done, then closes every subscription.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			for _, sub := range w.subs {
				close(sub)
			}
			w.subs = nil
			w.mu.Unlock()
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}
