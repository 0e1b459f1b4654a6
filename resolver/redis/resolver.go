package redis

import (
	"context"
	"errors"

	goredis "github.com/go-redis/redis/v8"

	"github.com/YiuTerran/go-gamegate/admission"
	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/protocol"
	"github.com/YiuTerran/go-gamegate/resolver"
	"github.com/YiuTerran/go-gamegate/session"
)

// 玩家：hash <prefix>player:<username>，字段id和password(bcrypt)
// 房间：set <prefix>rooms，本地没有的房间按需创建
// 只读，不会写redis

const (
	fieldID       = "id"
	fieldPassword = "password"
)

type Resolver struct {
	client *goredis.Client
	prefix string
	rooms  *resolver.Rooms
}

var _ admission.IdentityResolver = (*Resolver)(nil)

func NewResolver(client *goredis.Client, prefix string, rooms *resolver.Rooms) *Resolver {
	return &Resolver{client: client, prefix: prefix, rooms: rooms}
}

func (r *Resolver) PlayerKey(username string) string {
	return r.prefix + "player:" + username
}

func (r *Resolver) RoomsKey() string {
	return r.prefix + "rooms"
}

func (r *Resolver) ResolvePlayer(ctx context.Context, creds protocol.Credentials) (session.Player, error) {
	values, err := r.client.HMGet(ctx, r.PlayerKey(creds.Username), fieldID, fieldPassword).Result()
	if err != nil {
		return nil, err
	}
	hash, _ := values[1].(string)
	if hash == "" || !resolver.CheckPassword(hash, creds.Password) {
		return nil, nil
	}
	id, _ := values[0].(string)
	if id == "" {
		id = creds.Username
	}
	return &resolver.Player{Id: id, Username: creds.Username}, nil
}

func (r *Resolver) ResolveRoom(ctx context.Context, ref string) (session.GameRoom, error) {
	ok, err := r.client.SIsMember(ctx, r.RoomsKey(), ref).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	room, ok := r.rooms.GetOrCreate(ref)
	if !ok {
		log.Warn("room %s exists in redis but can not be created locally", ref)
		return nil, nil
	}
	return room, nil
}
