package app

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/LivePodcast/internal/core"
	"github.com/dkeye/LivePodcast/internal/domain"
	"github.com/dkeye/LivePodcast/internal/recording"
)

// Pipeline is the per-connection recording pipeline driven by Broadcasts.
type Pipeline interface {
	// Start replaces any recording running for id without waiting for it to flush.
	Start(id domain.ConnID, room domain.RoomName) (*recording.Stream, error)
	Feed(id domain.ConnID, f core.Frame) bool
	Stop(id domain.ConnID)
}

// Broadcasts is the broadcast lifecycle manager. It is the only writer of the
// live broadcast table and the live room set, and starts/stops recordings in
// lockstep with them.
type Broadcasts struct {
	mu    sync.RWMutex
	live  map[domain.ConnID]domain.RoomName
	rooms map[domain.RoomName]int // broadcasters per room

	pipeline Pipeline
}

func NewBroadcasts(p Pipeline) *Broadcasts {
	return &Broadcasts{
		live:     make(map[domain.ConnID]domain.RoomName),
		rooms:    make(map[domain.RoomName]int),
		pipeline: p,
	}
}

// Start marks id as broadcasting to room and opens a new recording.
// A broadcast already running for id is superseded; its recording is
// finalized in the background so the caller's read loop keeps relaying.
func (b *Broadcasts) Start(id domain.ConnID, room domain.RoomName) {
	b.mu.Lock()
	prev, had := b.live[id]
	if had {
		b.release(prev)
	}
	b.live[id] = room
	b.rooms[room]++
	b.mu.Unlock()

	logger := log.With().Str("module", "app.broadcasts").Str("conn", string(id)).Str("room", string(room)).Logger()
	if had {
		logger.Info().Str("prev_room", string(prev)).Msg("superseding running broadcast")
	} else {
		liveBroadcasts.Add(context.Background(), 1)
	}
	logger.Info().Msg("started broadcasting")

	if _, err := b.pipeline.Start(id, room); err != nil {
		// live relay keeps working without a recording
		logger.Error().Err(err).Msg("recording not started")
	}
}

// Stop ends id's broadcast. The recording keyed by id is finalized even when
// no broadcast is registered, and repeated calls are no-ops.
func (b *Broadcasts) Stop(id domain.ConnID) {
	b.mu.Lock()
	room, ok := b.live[id]
	if ok {
		delete(b.live, id)
		b.release(room)
	}
	b.mu.Unlock()

	if ok {
		liveBroadcasts.Add(context.Background(), -1)
		log.Info().Str("module", "app.broadcasts").Str("conn", string(id)).Str("room", string(room)).Msg("stopped broadcasting")
	}
	b.pipeline.Stop(id)
}

// release must be called with mu held.
func (b *Broadcasts) release(room domain.RoomName) {
	if n := b.rooms[room]; n > 1 {
		b.rooms[room] = n - 1
		return
	}
	delete(b.rooms, room)
}

// Feed passes a broadcaster's frame to its recording. Never blocks.
func (b *Broadcasts) Feed(id domain.ConnID, f core.Frame) bool {
	if !b.IsBroadcasting(id) {
		return false
	}
	return b.pipeline.Feed(id, f)
}

func (b *Broadcasts) IsLive(room domain.RoomName) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.rooms[room]
	return ok
}

func (b *Broadcasts) IsBroadcasting(id domain.ConnID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.live[id]
	return ok
}

func (b *Broadcasts) RoomOf(id domain.ConnID) (domain.RoomName, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	room, ok := b.live[id]
	return room, ok
}

func (b *Broadcasts) LiveRooms() []domain.RoomName {
	b.mu.RLock()
	out := make([]domain.RoomName, 0, len(b.rooms))
	for room := range b.rooms {
		out = append(out, room)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
