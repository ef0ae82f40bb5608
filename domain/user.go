package domain

// User holds the displayable fields the delivery path needs.
// Account management lives outside the realtime core.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// AsSender projects the user onto the identity attached to outgoing messages.
func (u User) AsSender() Sender {
	return Sender{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}
