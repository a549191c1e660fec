package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/LivePodcast/internal/core"
	"github.com/dkeye/LivePodcast/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) TrySendJSON(any) error    { return nil }
func (nopConn) Close()                   {}

func newSession() core.MemberSession {
	return core.NewMemberSession(domain.NewConnection("127.0.0.1", ""), nopConn{})
}

func TestRegistry_BindAndRoom(t *testing.T) {
	r := NewRegistry()
	sess := newSession()
	id := sess.Meta().ID

	r.Bind(sess, nil)
	got, ok := r.GetSession(id)
	require.True(t, ok)
	assert.Equal(t, sess, got)

	_, _, ok = r.RoomOf(id)
	assert.False(t, ok)

	require.True(t, r.UpdateRoom(id, "podcast1"))
	room, _, ok := r.RoomOf(id)
	require.True(t, ok)
	assert.Equal(t, domain.RoomName("podcast1"), room)

	r.RemoveRoom(id)
	_, _, ok = r.RoomOf(id)
	assert.False(t, ok)

	r.Unbind(id)
	assert.Zero(t, r.Len())
	assert.False(t, r.UpdateRoom(id, "podcast1"))
}

func TestRegistry_Cancel(t *testing.T) {
	r := NewRegistry()
	a, b := newSession(), newSession()
	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	r.Bind(a, cancelA)
	r.Bind(b, cancelB)

	assert.True(t, r.Cancel(a.Meta().ID))
	assert.Error(t, ctxA.Err())
	assert.NoError(t, ctxB.Err())
	assert.False(t, r.Cancel(domain.NewConnID()))

	r.CancelAll()
	assert.Error(t, ctxB.Err())
}

func TestRoomManager_RemoveIfEmpty(t *testing.T) {
	m := NewRoomManager()
	room := m.GetOrCreate("podcast1")
	assert.Same(t, room, m.GetOrCreate("podcast1"))

	sess := newSession()
	room.AddMember(sess)
	assert.False(t, m.RemoveIfEmpty("podcast1"))
	assert.Equal(t, []core.RoomInfo{{Name: "podcast1", MemberCount: 1}}, m.List())

	room.RemoveMember(sess.Meta().ID)
	assert.True(t, m.RemoveIfEmpty("podcast1"))
	_, ok := m.Get("podcast1")
	assert.False(t, ok)
	assert.False(t, m.RemoveIfEmpty("podcast1"))
}

func TestPolicyFromName(t *testing.T) {
	p, err := PolicyFromName("")
	require.NoError(t, err)
	assert.Equal(t, DropFrame, p.OnBackPressure(nil, nil))

	p, err = PolicyFromName("kick")
	require.NoError(t, err)
	assert.Equal(t, KickMember, p.OnBackPressure(nil, nil))

	_, err = PolicyFromName("explode")
	assert.Error(t, err)
}
