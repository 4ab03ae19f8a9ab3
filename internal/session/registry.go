// internal/session/registry.go
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Binding ties a live connection to the player and lobby it speaks for.
type Binding struct {
	ConnID   uuid.UUID
	Nickname string
	Lobby    string
}

type playerKey struct {
	lobby    string
	nickname string
}

// Registry is the two-way index between connections and (nickname, lobby) pairs.
type Registry struct {
	mu       sync.Mutex
	byConn   map[uuid.UUID]Binding
	byPlayer map[playerKey]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{
		byConn:   make(map[uuid.UUID]Binding),
		byPlayer: make(map[playerKey]uuid.UUID),
	}
}

// Bind records that connID speaks for nickname in lobby, replacing any earlier
// binding of either side. It returns the connection that previously held the
// player, if a different one did.
func (r *Registry) Bind(connID uuid.UUID, nickname, lobby string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byConn[connID]; ok {
		delete(r.byPlayer, playerKey{old.Lobby, old.Nickname})
	}
	key := playerKey{lobby, nickname}
	prev, hadPrev := r.byPlayer[key]
	if hadPrev && prev != connID {
		delete(r.byConn, prev)
	}
	r.byConn[connID] = Binding{ConnID: connID, Nickname: nickname, Lobby: lobby}
	r.byPlayer[key] = connID
	return prev, hadPrev && prev != connID
}

// Lookup returns the binding of a connection.
func (r *Registry) Lookup(connID uuid.UUID) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byConn[connID]
	return b, ok
}

// Unbind forgets a connection and returns what it was bound to.
func (r *Registry) Unbind(connID uuid.UUID) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byConn[connID]
	if !ok {
		return Binding{}, false
	}
	delete(r.byConn, connID)
	if cur, ok := r.byPlayer[playerKey{b.Lobby, b.Nickname}]; ok && cur == connID {
		delete(r.byPlayer, playerKey{b.Lobby, b.Nickname})
	}
	return b, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConn)
}
