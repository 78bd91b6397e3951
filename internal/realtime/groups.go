package realtime

import "sort"

// Group is one keyed set of participants with an owner-defined payload.
type Group[S any] struct {
	Members map[string]struct{}
	State   S
}

// Groups maps a room key to its participant set and payload. It is the plumbing
// shared by the hub's broadcast groups and the live-location session store.
// Groups is not safe for concurrent use; the owner serialises access.
type Groups[S any] struct {
	groups   map[string]*Group[S]
	byMember map[string]map[string]struct{}
}

func NewGroups[S any]() *Groups[S] {
	return &Groups[S]{
		groups:   make(map[string]*Group[S]),
		byMember: make(map[string]map[string]struct{}),
	}
}

// Get returns the group stored under key.
func (g *Groups[S]) Get(key string) (*Group[S], bool) {
	grp, ok := g.groups[key]
	return grp, ok
}

// Ensure returns the group under key, creating it with init() when absent.
func (g *Groups[S]) Ensure(key string, init func() S) (*Group[S], bool) {
	if grp, ok := g.groups[key]; ok {
		return grp, false
	}
	grp := &Group[S]{Members: make(map[string]struct{})}
	if init != nil {
		grp.State = init()
	}
	g.groups[key] = grp
	return grp, true
}

// Add puts member into an existing group. It reports false if the group is absent.
func (g *Groups[S]) Add(key, member string) bool {
	grp, ok := g.groups[key]
	if !ok {
		return false
	}
	grp.Members[member] = struct{}{}
	keys, ok := g.byMember[member]
	if !ok {
		keys = make(map[string]struct{})
		g.byMember[member] = keys
	}
	keys[key] = struct{}{}
	return true
}

// Remove takes member out of the group and returns how many members remain.
// ok is false when the group does not exist.
func (g *Groups[S]) Remove(key, member string) (remaining int, ok bool) {
	grp, ok := g.groups[key]
	if !ok {
		return 0, false
	}
	delete(grp.Members, member)
	g.forget(member, key)
	return len(grp.Members), true
}

// Delete drops the group and all of its memberships.
func (g *Groups[S]) Delete(key string) (*Group[S], bool) {
	grp, ok := g.groups[key]
	if !ok {
		return nil, false
	}
	for member := range grp.Members {
		g.forget(member, key)
	}
	delete(g.groups, key)
	return grp, true
}

// KeysOf lists the groups member belongs to, sorted.
func (g *Groups[S]) KeysOf(member string) []string {
	keys := make([]string, 0, len(g.byMember[member]))
	for k := range g.byMember[member] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Members lists the members of key, sorted.
func (g *Groups[S]) Members(key string) []string {
	grp, ok := g.groups[key]
	if !ok {
		return nil
	}
	members := make([]string, 0, len(grp.Members))
	for m := range grp.Members {
		members = append(members, m)
	}
	sort.Strings(members)
	return members
}

// Keys lists every group key, sorted.
func (g *Groups[S]) Keys() []string {
	keys := make([]string, 0, len(g.groups))
	for k := range g.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of groups.
func (g *Groups[S]) Len() int {
	return len(g.groups)
}

func (g *Groups[S]) forget(member, key string) {
	keys, ok := g.byMember[member]
	if !ok {
		return
	}
	delete(keys, key)
	if len(keys) == 0 {
		delete(g.byMember, member)
	}
}
