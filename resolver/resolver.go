package resolver

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/YiuTerran/go-gamegate/admission"
	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/protocol"
	"github.com/YiuTerran/go-gamegate/session"
)

// Account 配置里的玩家，Password是bcrypt哈希
type Account struct {
	ID       string `mapstructure:"id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Player struct {
	Id       string
	Username string
}

func (p *Player) ID() string {
	return p.Id
}

// HashPassword 生成配置里用的密码哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword 哈希不匹配或者格式不对都返回false
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Rooms 本进程内的房间，factory不为空时可以按需创建
type Rooms struct {
	mu      sync.Mutex
	rooms   map[string]session.GameRoom
	factory func(name string) session.GameRoom
}

func NewRooms(factory func(name string) session.GameRoom) *Rooms {
	return &Rooms{rooms: make(map[string]session.GameRoom), factory: factory}
}

func (r *Rooms) Add(room session.GameRoom) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.Name()] = room
}

func (r *Rooms) Get(name string) (session.GameRoom, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[name]
	return room, ok
}

func (r *Rooms) GetOrCreate(name string) (session.GameRoom, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[name]; ok {
		return room, true
	}
	if r.factory == nil {
		return nil, false
	}
	room := r.factory(name)
	r.rooms[name] = room
	log.Info("room %s created", name)
	return room, true
}

// Static 玩家和房间都来自配置
type Static struct {
	accounts map[string]Account
	rooms    *Rooms
}

var _ admission.IdentityResolver = (*Static)(nil)

func NewStatic(accounts []Account, rooms *Rooms) *Static {
	s := &Static{accounts: make(map[string]Account, len(accounts)), rooms: rooms}
	for _, a := range accounts {
		if a.ID == "" {
			a.ID = a.Username
		}
		s.accounts[a.Username] = a
	}
	return s
}

func (s *Static) ResolvePlayer(_ context.Context, creds protocol.Credentials) (session.Player, error) {
	a, ok := s.accounts[creds.Username]
	if !ok || !CheckPassword(a.Password, creds.Password) {
		return nil, nil
	}
	return &Player{Id: a.ID, Username: a.Username}, nil
}

func (s *Static) ResolveRoom(_ context.Context, ref string) (session.GameRoom, error) {
	room, ok := s.rooms.Get(ref)
	if !ok {
		return nil, nil
	}
	return room, nil
}
