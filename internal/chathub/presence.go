package chathub

import (
	"sort"
	"sync"
	"time"

	"safecircle/backend/internal/models"
)

// Presence is the live connection of an online user.
type Presence struct {
	UserID string
	ConnID string
	Role   models.Role
}

// Registry tracks which users are online and when offline users were last seen.
// A user has at most one live connection; a newer one replaces the older.
// An online user never has a last-seen mark.
type Registry struct {
	mu       sync.RWMutex
	online   map[string]Presence  // userID -> presence
	conns    map[string]string    // connID -> userID
	lastSeen map[string]time.Time // userID -> last disconnect
}

func NewRegistry() *Registry {
	return &Registry{
		online:   make(map[string]Presence),
		conns:    make(map[string]string),
		lastSeen: make(map[string]time.Time),
	}
}

// Connect marks userID online on connID and returns the connection it replaced, if any.
func (r *Registry) Connect(userID, connID string, role models.Role) (replaced string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.online[userID]; ok && prev.ConnID != connID {
		delete(r.conns, prev.ConnID)
		replaced = prev.ConnID
	}
	if prevUser, ok := r.conns[connID]; ok && prevUser != userID {
		delete(r.online, prevUser)
	}

	r.online[userID] = Presence{UserID: userID, ConnID: connID, Role: role}
	r.conns[connID] = userID
	delete(r.lastSeen, userID)
	return replaced
}

// Disconnect marks the user owning connID offline as of at. Connections that
// were replaced or never identified a user are ignored.
func (r *Registry) Disconnect(connID string, at time.Time) (userID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.conns[connID]
	if !ok {
		return "", false
	}
	delete(r.conns, connID)
	delete(r.online, userID)
	r.lastSeen[userID] = at
	return userID, true
}

// Lookup returns the live connection of userID.
func (r *Registry) Lookup(userID string) (Presence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.online[userID]
	return p, ok
}

// UserForConn returns the user identified on connID.
func (r *Registry) UserForConn(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.conns[connID]
	return userID, ok
}

// LastSeen returns the last disconnect time recorded for an offline user.
func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	at, ok := r.lastSeen[userID]
	return at, ok
}

// Counsellors returns the online counsellors ordered by user id.
func (r *Registry) Counsellors() []Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Presence, 0)
	for _, p := range r.online {
		if p.Role == models.RoleCounsellor {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// OnlineCount returns the number of online users.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.online)
}

// Reset forgets all presence state.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = make(map[string]Presence)
	r.conns = make(map[string]string)
	r.lastSeen = make(map[string]time.Time)
}
