// internal/game/balance_book.go
package game

import "sync"

// BalanceBook caches balances reported by clients or the balance service so the
// next game a player joins opens with them. Shared by every lobby.
type BalanceBook struct {
	mu       sync.RWMutex
	balances map[string]int
}

func NewBalanceBook() *BalanceBook {
	return &BalanceBook{balances: make(map[string]int)}
}

func (b *BalanceBook) Set(nickname string, balance int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[nickname] = balance
}

func (b *BalanceBook) Get(nickname string) (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.balances[nickname]
	return v, ok
}

// Opening returns the balance a player starts a game with: the cached one when
// it is positive, otherwise def.
func (b *BalanceBook) Opening(nickname string, def int) int {
	if v, ok := b.Get(nickname); ok && v > 0 {
		return v
	}
	return def
}
