package realtime

// GroupMembers lists the connection ids joined to group.
func (h *Hub) GroupMembers(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.groups.Members(group)
}
