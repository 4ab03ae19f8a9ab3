// internal/lobby/redis.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jason-s-yu/hiddencargo/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrNotMember is returned when a readiness change names a player outside the lobby.
var ErrNotMember = errors.New("player is not in the lobby")

// RedisDirectory keeps lobbies in Redis so several server instances share them.
// Per lobby it stores a sorted set of members scored by join time, a set of ready
// members and a small hash of lobby options.
type RedisDirectory struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisDirectory(rdb *redis.Client) *RedisDirectory {
	return &RedisDirectory{rdb: rdb, prefix: "cargo:lobby:", now: time.Now}
}

func (d *RedisDirectory) membersKey(name string) string { return d.prefix + name + ":members" }
func (d *RedisDirectory) readyKey(name string) string   { return d.prefix + name + ":ready" }
func (d *RedisDirectory) metaKey(name string) string    { return d.prefix + name + ":meta" }

func (d *RedisDirectory) GetLobby(ctx context.Context, name string) (models.LobbyInfo, error) {
	pipe := d.rdb.Pipeline()
	members := pipe.ZRange(ctx, d.membersKey(name), 0, -1)
	ready := pipe.SCard(ctx, d.readyKey(name))
	rounds := pipe.HGet(ctx, d.metaKey(name), "rounds")
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return models.LobbyInfo{}, unavailable(err)
	}

	players := members.Val()
	if len(players) == 0 {
		return models.LobbyInfo{}, fmt.Errorf("lobby %s: %w", name, models.ErrLobbyNotFound)
	}
	info := models.LobbyInfo{
		Name:           name,
		ConnectedCount: len(players),
		ReadyCount:     int(ready.Val()),
		Players:        players,
	}
	if n, err := strconv.Atoi(rounds.Val()); err == nil {
		info.RoundCount = n
	}
	return info, nil
}

// AddPlayer creates the lobby on first join. Joining again keeps the earlier
// position in the join order.
func (d *RedisDirectory) AddPlayer(ctx context.Context, name, nickname string) error {
	z := redis.Z{Score: float64(d.now().UnixNano()), Member: nickname}
	if err := d.rdb.ZAddNX(ctx, d.membersKey(name), z).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// RemovePlayer drops a member and its readiness. The last member out deletes the lobby.
func (d *RedisDirectory) RemovePlayer(ctx context.Context, name, nickname string) error {
	pipe := d.rdb.TxPipeline()
	pipe.ZRem(ctx, d.membersKey(name), nickname)
	pipe.SRem(ctx, d.readyKey(name), nickname)
	left := pipe.ZCard(ctx, d.membersKey(name))
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	if left.Val() == 0 {
		if err := d.rdb.Del(ctx, d.membersKey(name), d.readyKey(name), d.metaKey(name)).Err(); err != nil {
			return unavailable(err)
		}
	}
	return nil
}

func (d *RedisDirectory) MarkReady(ctx context.Context, name, nickname string) error {
	if err := d.requireMember(ctx, name, nickname); err != nil {
		return err
	}
	if err := d.rdb.SAdd(ctx, d.readyKey(name), nickname).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (d *RedisDirectory) MarkNotReady(ctx context.Context, name, nickname string) error {
	if err := d.requireMember(ctx, name, nickname); err != nil {
		return err
	}
	if err := d.rdb.SRem(ctx, d.readyKey(name), nickname).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// SetRounds stores the round count of a lobby unless one is already set.
func (d *RedisDirectory) SetRounds(ctx context.Context, name string, rounds int) error {
	if rounds <= 0 {
		return nil
	}
	if err := d.rdb.HSetNX(ctx, d.metaKey(name), "rounds", rounds).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (d *RedisDirectory) requireMember(ctx context.Context, name, nickname string) error {
	err := d.rdb.ZScore(ctx, d.membersKey(name), nickname).Err()
	if errors.Is(err, redis.Nil) {
		n, cerr := d.rdb.ZCard(ctx, d.membersKey(name)).Result()
		if cerr != nil {
			return unavailable(cerr)
		}
		if n == 0 {
			return fmt.Errorf("lobby %s: %w", name, models.ErrLobbyNotFound)
		}
		return fmt.Errorf("%s in lobby %s: %w", nickname, name, ErrNotMember)
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("lobby store: %w: %w", models.ErrExternalServiceUnavailable, err)
}
