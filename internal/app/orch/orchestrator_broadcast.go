package orch

import (
	"github.com/dkeye/LivePodcast/internal/domain"
)

func (o *Orchestrator) StartBroadcast(id domain.ConnID, room domain.RoomName) {
	o.Broadcasts.Start(id, room)
}

func (o *Orchestrator) StopBroadcast(id domain.ConnID) {
	o.Broadcasts.Stop(id)
}
