package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LivePodcast/internal/app"
	"github.com/dkeye/LivePodcast/internal/core"
	"github.com/dkeye/LivePodcast/internal/domain"
	"github.com/dkeye/LivePodcast/internal/recording"
)

// OnFrame relays an audio frame from id to every other member of id's room and,
// when id is broadcasting, feeds it to id's recording. Neither step blocks:
// slow listeners and a lagging encoder lose frames instead.
func (o *Orchestrator) OnFrame(id domain.ConnID, data core.Frame) {
	ctx := context.Background()
	framesRelayed.Add(ctx, 1)

	if roomName, _, ok := o.Registry.RoomOf(id); ok {
		if room, ok := o.Rooms.Get(roomName); ok {
			res := room.Broadcast(id, data)
			framesDelivered.Add(ctx, int64(res.SendTo))
			if len(res.Dropped) > 0 {
				framesDropped.Add(ctx, int64(len(res.Dropped)))
				o.onBackPressure(room, res.Dropped)
			}
		}
	}

	if carriesSamples(data) && o.Broadcasts.Feed(id, data) {
		framesRecorded.Add(ctx, 1)
	}
}

// carriesSamples reports whether data looks like whole float32 samples.
func carriesSamples(data core.Frame) bool {
	size := recording.PodcastFormat.FrameSize()
	return len(data) > 0 && len(data)%size == 0
}

func (o *Orchestrator) onBackPressure(room core.RoomService, dropped []core.MemberSession) {
	if o.Policy == nil {
		return
	}
	for _, slow := range dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("conn", string(slow.Meta().ID)).Str("room", string(room.Name())).Msg("kicking slow listener")
			membersKicked.Add(context.Background(), 1)
			o.KickBySID(slow.Meta().ID)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}
