package app

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/dkeye/LivePodcast/internal/core"
	"github.com/dkeye/LivePodcast/internal/domain"
	"github.com/dkeye/LivePodcast/internal/recording"
)

type call struct {
	op   string
	id   domain.ConnID
	room domain.RoomName
}

// fakePipeline records the calls Broadcasts makes and tracks open streams.
type fakePipeline struct {
	mu       sync.Mutex
	calls    []call
	open     map[domain.ConnID]domain.RoomName
	fed      map[domain.ConnID]int
	failNext bool
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		open: make(map[domain.ConnID]domain.RoomName),
		fed:  make(map[domain.ConnID]int),
	}
}

func (p *fakePipeline) Start(id domain.ConnID, room domain.RoomName) (*recording.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{"start", id, room})
	if p.failNext {
		p.failNext = false
		return nil, errors.New("disk full")
	}
	p.open[id] = room
	return nil, nil
}

func (p *fakePipeline) Feed(id domain.ConnID, _ core.Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.open[id]; !ok {
		return false
	}
	p.fed[id]++
	return true
}

func (p *fakePipeline) Stop(id domain.ConnID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{op: "stop", id: id})
	delete(p.open, id)
}

func (p *fakePipeline) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.open)
}

func (p *fakePipeline) fedFrames(id domain.ConnID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fed[id]
}

func (p *fakePipeline) ops() []call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]call(nil), p.calls...)
}
