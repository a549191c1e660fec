package orch

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LivePodcast/internal/app"
	"github.com/dkeye/LivePodcast/internal/core"
	"github.com/dkeye/LivePodcast/internal/domain"
)

// Orchestrator turns connection events into registry, room and broadcast
// state changes. Events of one connection arrive from that connection's read
// loop, so they are already ordered; membership changes across connections
// are serialized by mu.
type Orchestrator struct {
	Registry   *app.Registry
	Rooms      core.RoomManager
	Policy     app.Policy
	Broadcasts *app.Broadcasts

	mu sync.Mutex
}

// Connect registers a freshly accepted connection.
func (o *Orchestrator) Connect(sess core.MemberSession, cancel context.CancelFunc) {
	o.Registry.Bind(sess, cancel)
}

// OnDisconnect drops the connection from its room, then finalizes its
// broadcast, if any. Safe to call more than once.
func (o *Orchestrator) OnDisconnect(id domain.ConnID) {
	if roomName, _, ok := o.Registry.RoomOf(id); ok {
		o.logLeave(id, roomName)
	}
	// membership goes first: finalizing may take up to the finalize timeout
	o.cleanupMembership(id)
	o.Broadcasts.Stop(id)
	o.Registry.Unbind(id)
}

// ListRooms lists every room with members, flagged with its live state.
func (o *Orchestrator) ListRooms() []core.RoomInfo {
	rooms := o.Rooms.List()
	seen := make(map[domain.RoomName]bool, len(rooms))
	for i := range rooms {
		rooms[i].Live = o.Broadcasts.IsLive(rooms[i].Name)
		seen[rooms[i].Name] = true
	}
	// a host may broadcast without having joined its room
	for _, name := range o.Broadcasts.LiveRooms() {
		if !seen[name] {
			rooms = append(rooms, core.RoomInfo{Name: name, Live: true})
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms
}

func (o *Orchestrator) IsLive(room domain.RoomName) bool {
	return o.Broadcasts.IsLive(room)
}

func (o *Orchestrator) logLeave(id domain.ConnID, room domain.RoomName) {
	total := 0
	if r, ok := o.Rooms.Get(room); ok {
		total = r.MemberCount() - 1
	}
	ev := log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).Int("total_clients", total)
	if sess, ok := o.Registry.GetSession(id); ok {
		ev = ev.Str("addr", sess.Meta().Addr)
	}
	ev.Msg("client left rooms")
}
