package repository

import (
    "context"
    "encoding/json"
    "errors"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/dmarquez/venue-pos/internal/model"
)

const (
    heartbeatKeyPrefix = "agent:hb:"
    heartbeatIndexKey  = "agent:hb:index"
    heartbeatTTL       = 24 * time.Hour
)

// AgentHeartbeatRepo stores agent last-seen telemetry in Redis. Heartbeats
// are advisory only, so every method degrades to a no-op (or empty result)
// when Redis is unavailable — losing them never breaks payments.
type AgentHeartbeatRepo struct {
    rdb *redis.Client
}

// NewAgentHeartbeatRepo returns a heartbeat repo over the given client, which
// may be nil when Redis is not configured.
func NewAgentHeartbeatRepo(rdb *redis.Client) *AgentHeartbeatRepo {
    return &AgentHeartbeatRepo{rdb: rdb}
}

// Upsert records the latest heartbeat for a register's agent.
func (r *AgentHeartbeatRepo) Upsert(ctx context.Context, hb model.AgentHeartbeat) error {
    if r.rdb == nil {
        return nil
    }
    payload, err := json.Marshal(hb)
    if err != nil {
        return err
    }
    pipe := r.rdb.Pipeline()
    pipe.Set(ctx, heartbeatKeyPrefix+hb.RegisterID, payload, heartbeatTTL)
    pipe.SAdd(ctx, heartbeatIndexKey, hb.RegisterID)
    _, err = pipe.Exec(ctx)
    return err
}

// Get returns the last heartbeat for a register, or nil when none is known.
func (r *AgentHeartbeatRepo) Get(ctx context.Context, registerID string) (*model.AgentHeartbeat, error) {
    if r.rdb == nil {
        return nil, nil
    }
    raw, err := r.rdb.Get(ctx, heartbeatKeyPrefix+registerID).Bytes()
    if errors.Is(err, redis.Nil) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    var hb model.AgentHeartbeat
    if err := json.Unmarshal(raw, &hb); err != nil {
        return nil, err
    }
    return &hb, nil
}

// ListAll returns every known heartbeat. Registers whose key has expired are
// pruned from the index on the way through.
func (r *AgentHeartbeatRepo) ListAll(ctx context.Context) ([]model.AgentHeartbeat, error) {
    if r.rdb == nil {
        return nil, nil
    }
    ids, err := r.rdb.SMembers(ctx, heartbeatIndexKey).Result()
    if err != nil {
        return nil, err
    }
    var out []model.AgentHeartbeat
    for _, id := range ids {
        hb, err := r.Get(ctx, id)
        if err != nil {
            return nil, err
        }
        if hb == nil {
            _ = r.rdb.SRem(ctx, heartbeatIndexKey, id).Err()
            continue
        }
        out = append(out, *hb)
    }
    return out, nil
}
