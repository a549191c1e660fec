package core

import (
	"sync"

	"github.com/dkeye/LivePodcast/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	name    domain.RoomName
	mu      sync.RWMutex
	members map[domain.ConnID]MemberSession
}

func NewRoomService(name domain.RoomName) RoomService {
	return &roomImpl{
		name:    name,
		members: make(map[domain.ConnID]MemberSession),
	}
}

func (r *roomImpl) Name() domain.RoomName { return r.name }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) AddMember(ms MemberSession) {
	id := ms.Meta().ID
	r.mu.Lock()
	r.members[id] = ms
	total := len(r.members)
	r.mu.Unlock()
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Str("conn", string(id)).Int("total", total).Msg("member added")
}

func (r *roomImpl) RemoveMember(id domain.ConnID) {
	r.mu.Lock()
	delete(r.members, id)
	total := len(r.members)
	r.mu.Unlock()
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Str("conn", string(id)).Int("total", total).Msg("member removed")
}

func (r *roomImpl) Broadcast(from domain.ConnID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for id, m := range r.members {
		if id == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Trace().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
