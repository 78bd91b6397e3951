package chathub_test

import (
	"testing"
	"time"

	"safecircle/backend/internal/chathub"
	"safecircle/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ConnectAndDisconnect(t *testing.T) {
	r := chathub.NewRegistry()

	assert.Empty(t, r.Connect("u1", "c1", models.RoleUser))
	p, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c1", p.ConnID)
	assert.Equal(t, 1, r.OnlineCount())

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	userID, ok := r.Disconnect("c1", at)
	require.True(t, ok)
	assert.Equal(t, "u1", userID)

	_, ok = r.Lookup("u1")
	assert.False(t, ok)
	seen, ok := r.LastSeen("u1")
	require.True(t, ok)
	assert.Equal(t, at, seen)
	assert.Zero(t, r.OnlineCount())
}

func TestRegistry_ReconnectClearsLastSeen(t *testing.T) {
	r := chathub.NewRegistry()
	r.Connect("u1", "c1", models.RoleUser)
	r.Disconnect("c1", time.Now())

	r.Connect("u1", "c2", models.RoleUser)

	_, ok := r.LastSeen("u1")
	assert.False(t, ok, "an online user has no last-seen mark")
}

func TestRegistry_NewerConnectionReplacesOlder(t *testing.T) {
	r := chathub.NewRegistry()
	r.Connect("u1", "c1", models.RoleUser)

	replaced := r.Connect("u1", "c2", models.RoleUser)
	assert.Equal(t, "c1", replaced)

	// the stale socket closing must not take the user offline
	_, ok := r.Disconnect("c1", time.Now())
	assert.False(t, ok)
	p, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c2", p.ConnID)
}

func TestRegistry_DisconnectUnknownConnection(t *testing.T) {
	r := chathub.NewRegistry()
	_, ok := r.Disconnect("ghost", time.Now())
	assert.False(t, ok)
}

func TestRegistry_Counsellors(t *testing.T) {
	r := chathub.NewRegistry()
	r.Connect("c-2", "conn-2", models.RoleCounsellor)
	r.Connect("u-1", "conn-u", models.RoleUser)
	r.Connect("c-1", "conn-1", models.RoleCounsellor)

	got := r.Counsellors()
	require.Len(t, got, 2)
	assert.Equal(t, "c-1", got[0].UserID)
	assert.Equal(t, "c-2", got[1].UserID)

	r.Reset()
	assert.Empty(t, r.Counsellors())
	assert.Zero(t, r.OnlineCount())
}

func TestRegistry_UserForConn(t *testing.T) {
	r := chathub.NewRegistry()
	r.Connect("u1", "c1", models.RoleUser)

	userID, ok := r.UserForConn("c1")
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)

	_, ok = r.UserForConn("c2")
	assert.False(t, ok)
}
