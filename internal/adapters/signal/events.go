package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LivePodcast/internal/domain"
)

// Event names are the wire contract with existing host/listener pages.
const (
	EventJoin             = "join"
	EventLeave            = "leave"
	EventBroadcastStarted = "broadcast_started"
	EventBroadcastStopped = "broadcast_stopped"
	EventJoinRoom         = "joinroom"
	EventLeaveAllRooms    = "leaveallrooms"
	EventPing             = "ping"
)

// envelope is a client control message: {"type":"join","room":"podcast1"}.
type envelope struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type eventHandler func(ctl *SignalWSController, id domain.ConnID, c *WsSignalConn, env envelope)

var eventHandlers = map[string]eventHandler{
	EventJoin:             (*SignalWSController).handleJoin,
	EventLeave:            (*SignalWSController).handleLeave,
	EventBroadcastStarted: (*SignalWSController).handleBroadcastStarted,
	EventBroadcastStopped: (*SignalWSController).handleBroadcastStopped,
	EventJoinRoom:         (*SignalWSController).handleJoinRoom,
	EventLeaveAllRooms:    (*SignalWSController).handleLeaveAllRooms,
	EventPing:             (*SignalWSController).handlePing,
}

func (ctl *SignalWSController) roomOrError(c *WsSignalConn, env envelope) (domain.RoomName, bool) {
	room, err := domain.ValidateRoomName(env.Room)
	if err != nil {
		ctl.sendError(c, err.Error())
		return "", false
	}
	return room, true
}

func (ctl *SignalWSController) handleJoin(id domain.ConnID, c *WsSignalConn, env envelope) {
	room, ok := ctl.roomOrError(c, env)
	if !ok {
		return
	}
	count, ok := ctl.Orch.Join(id, room)
	if !ok {
		return
	}
	ctl.sendJSON(c, struct {
		Type  string          `json:"type"`
		Room  domain.RoomName `json:"room"`
		Count int             `json:"count"`
	}{"joined", room, count})
}

func (ctl *SignalWSController) handleLeave(id domain.ConnID, c *WsSignalConn, env envelope) {
	room := domain.RoomName(env.Room)
	ctl.Orch.Leave(id, room)
	ctl.sendJSON(c, struct {
		Type string          `json:"type"`
		Room domain.RoomName `json:"room,omitempty"`
	}{"left", room})
}

func (ctl *SignalWSController) handleBroadcastStarted(id domain.ConnID, c *WsSignalConn, env envelope) {
	room, ok := ctl.roomOrError(c, env)
	if !ok {
		return
	}
	ctl.Orch.StartBroadcast(id, room)
}

func (ctl *SignalWSController) handleBroadcastStopped(id domain.ConnID, _ *WsSignalConn, _ envelope) {
	ctl.Orch.StopBroadcast(id)
}

func (ctl *SignalWSController) handleJoinRoom(id domain.ConnID, _ *WsSignalConn, env envelope) {
	log.Info().
		Str("module", "signal").
		Str("conn", string(id)).
		Str("room", env.Room).
		Int("total_clients", ctl.Orch.RoomClients(domain.RoomName(env.Room))).
		Msg("client joined room")
}

func (ctl *SignalWSController) handleLeaveAllRooms(id domain.ConnID, _ *WsSignalConn, _ envelope) {
	ctl.Orch.LeaveAll(id)
}
