// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxRoomNameLen = 128

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
)

// ConnID is the opaque identity the server assigns to every transport connection.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Connection describes one transport endpoint. Created on connect, dropped on disconnect.
type Connection struct {
	ID          ConnID `json:"id"`
	Addr        string `json:"addr"`
	ClientToken string `json:"-"`
}

func NewConnection(addr, clientToken string) *Connection {
	return &Connection{ID: NewConnID(), Addr: addr, ClientToken: clientToken}
}

func ValidateRoomName(name string) (RoomName, error) {
	if len(name) == 0 {
		return "", ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return "", ErrRoomNameTooLong
	}
	return RoomName(name), nil
}
