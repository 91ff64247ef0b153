package models

// User is a staff profile. Profiles are seeded on first run and never
// deleted by the application.
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	PasswordHash   string `json:"passwordHash"`
	HasSetPassword bool   `json:"hasSetPassword"`
}

// Profile is the public view of a User.
type Profile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	HasSetPassword bool   `json:"hasSetPassword"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Description: u.Description, HasSetPassword: u.HasSetPassword}
}
