package orch

import (
	"github.com/dkeye/LivePodcast/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join puts id into roomName, leaving its previous room first: a connection is
// a member of at most one room. Returns the room's member count.
func (o *Orchestrator) Join(id domain.ConnID, roomName domain.RoomName) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	session, ok := o.Registry.GetSession(id)
	if !ok {
		return 0, false
	}
	if from, _, ok := o.Registry.RoomOf(id); ok {
		if from == roomName {
			room := o.Rooms.GetOrCreate(roomName)
			return room.MemberCount(), true
		}
		o.removeMemberLocked(id, from)
		log.Info().Str("module", "orch").Str("conn", string(id)).Str("from_room", string(from)).Msg("moved out of room")
	}

	room := o.Rooms.GetOrCreate(roomName)
	room.AddMember(session)
	o.Registry.UpdateRoom(id, roomName)
	total := room.MemberCount()
	log.Info().
		Str("module", "orch").
		Str("conn", string(id)).
		Str("addr", session.Meta().Addr).
		Str("room", string(roomName)).
		Int("total_clients", total).
		Msg("client joined room")
	return total, true
}

// Leave removes id from roomName; an empty roomName means whatever room id is in.
// A broadcaster leaving its own room, or the room it broadcasts to, stops its broadcast.
func (o *Orchestrator) Leave(id domain.ConnID, roomName domain.RoomName) bool {
	left := false
	if current, _, ok := o.Registry.RoomOf(id); ok && (roomName == "" || roomName == current) {
		o.logLeave(id, current)
		o.cleanupMembership(id)
		left = true
	}
	if target, ok := o.Broadcasts.RoomOf(id); ok && (left || roomName == "" || roomName == target) {
		o.Broadcasts.Stop(id)
	}
	return left
}

// LeaveAll leaves every room and stops a running broadcast.
func (o *Orchestrator) LeaveAll(id domain.ConnID) {
	if current, _, ok := o.Registry.RoomOf(id); ok {
		o.logLeave(id, current)
	}
	if o.Broadcasts.IsBroadcasting(id) {
		o.Broadcasts.Stop(id)
	}
	o.cleanupMembership(id)
}

// RoomClients reports how many clients are in roomName.
func (o *Orchestrator) RoomClients(roomName domain.RoomName) int {
	if room, ok := o.Rooms.Get(roomName); ok {
		return room.MemberCount()
	}
	return 0
}

// KickBySID drops id's membership and closes its connection.
func (o *Orchestrator) KickBySID(id domain.ConnID) {
	o.cleanupMembership(id)
	o.Registry.Cancel(id)
}

func (o *Orchestrator) cleanupMembership(id domain.ConnID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	roomName, _, ok := o.Registry.RoomOf(id)
	if !ok {
		return
	}
	o.removeMemberLocked(id, roomName)
}

func (o *Orchestrator) removeMemberLocked(id domain.ConnID, roomName domain.RoomName) {
	if room, ok := o.Rooms.Get(roomName); ok {
		room.RemoveMember(id)
	}
	o.Registry.RemoveRoom(id)
	if o.Rooms.RemoveIfEmpty(roomName) {
		log.Debug().Str("module", "orch").Str("room", string(roomName)).Msg("room emptied")
	}
}
