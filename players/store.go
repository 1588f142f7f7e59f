package players

import (
	"context"
	"errors"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerExists   = errors.New("player already exists")
)

type Player struct {
	ID           uint32
	Name         string
	PasswordHash string
}

// PlayerInfo is the part of a player that is safe to send to clients.
type PlayerInfo struct {
	ID   uint32
	Name string
}

func (p *Player) Info() PlayerInfo {
	return PlayerInfo{ID: p.ID, Name: p.Name}
}

type PlayerStore interface {
	CreatePlayer(ctx context.Context, username, hash string) error
	FindPlayerByName(ctx context.Context, username string) (*Player, error)
	FindPlayerByID(ctx context.Context, id uint32) (*Player, error)
}
