package core

import "github.com/dkeye/LivePodcast/internal/domain"

// memberSession implements MemberSession by pairing meta + transport.
type memberSession struct {
	meta *domain.Connection
	conn SignalConnection
}

func NewMemberSession(meta *domain.Connection, conn SignalConnection) MemberSession {
	return &memberSession{meta: meta, conn: conn}
}

func (m *memberSession) Meta() *domain.Connection { return m.meta }
func (m *memberSession) Signal() SignalConnection { return m.conn }
