package models

// UserProfile is the in-memory shape of an identity-provider user. Profiles
// are fetched live from the identity API and are never persisted.
type UserProfile struct {
	ID              string `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	ProfileImageURL string `json:"profile_image_url"`
}

// FullName joins the first and last name for display contexts.
func (p *UserProfile) FullName() string {
	if p == nil {
		return ""
	}
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
