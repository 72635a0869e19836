package types

// Member is a live group member as reported by the membership gateway.
type Member struct {
	ID            string
	Username      string
	Discriminator string
	GlobalName    string
	Avatar        string
	Bot           bool
	RoleIDs       []string
}

// HasRole reports whether the member currently holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Profile converts the member into an identity snapshot.  Email is never
// available through the membership gateway.
func (m Member) Profile() Profile {
	p := Profile{
		ID:            m.ID,
		Username:      m.Username,
		Discriminator: m.Discriminator,
		GlobalName:    m.GlobalName,
		Avatar:        m.Avatar,
	}
	if p.Discriminator == "" {
		p.Discriminator = "0"
	}
	if p.GlobalName == "" {
		p.GlobalName = m.Username
	}
	return p
}
