package chatd

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"PClient/tools/errs"
)

// PresenceMirror publishes the room's online set into redis so
// operational tooling can see who is connected to which instance. The
// in-memory hub stays authoritative; a mirror failure never affects
// the room.
//
// Key layout: im:presence:<user> -> instance id, TTL bounds staleness
// after an unclean shutdown.
type PresenceMirror struct {
	rdb        *redis.Client
	instanceID string
	ttl        time.Duration
	ctx        context.Context
}

type PresenceConfig struct {
	Addr       string
	Password   string
	DB         int
	InstanceID string
	TTL        time.Duration // default 5m
}

func NewPresenceMirror(c PresenceConfig) (*PresenceMirror, error) {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	rdb := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errs.WrapMsg(err, "redis ping", "addr", c.Addr)
	}
	return &PresenceMirror{rdb: rdb, instanceID: c.InstanceID, ttl: c.TTL, ctx: ctx}, nil
}

func presenceKey(user string) string { return "im:presence:" + user }

// Online marks the user online and renews the TTL.
func (p *PresenceMirror) Online(user string) error {
	return p.rdb.Set(p.ctx, presenceKey(user), p.instanceID, p.ttl).Err()
}

// Offline deletes the user's presence key.
func (p *PresenceMirror) Offline(user string) error {
	return p.rdb.Del(p.ctx, presenceKey(user)).Err()
}

// Lookup reports whether the user is online anywhere and on which
// instance.
func (p *PresenceMirror) Lookup(user string) (instanceID string, online bool, err error) {
	val, err := p.rdb.Get(p.ctx, presenceKey(user)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Close releases the redis connection.
func (p *PresenceMirror) Close() error {
	return p.rdb.Close()
}
