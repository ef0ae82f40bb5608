package domain

// Group is the persisted roster, read-only from the realtime core.
// It is the source of truth for who may send to a group; live room
// membership is tracked separately and joined explicitly per connection.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Owner   string   `json:"owner"`
	Members []string `json:"members"`
}

// HasMember reports whether userID is on the persisted roster.
func (g Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
