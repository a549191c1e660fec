package core

import (
	"github.com/dkeye/LivePodcast/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Name() domain.RoomName
	MemberCount() int

	AddMember(ms MemberSession)
	RemoveMember(id domain.ConnID)
	// Broadcast delivers data to every member except from.
	Broadcast(from domain.ConnID, data Frame) PublishResult
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
	Live        bool            `json:"live"`
}

type RoomManager interface {
	GetOrCreate(name domain.RoomName) RoomService
	Get(name domain.RoomName) (RoomService, bool)
	List() []RoomInfo
	// RemoveIfEmpty drops the room once its last member is gone.
	RemoveIfEmpty(name domain.RoomName) bool
}
