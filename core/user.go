package core

import "time"

// User is a memory-engine user record.
// The engine owns it; the gateway only lists and creates users.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// FindByName returns the first user whose Name equals name exactly.
// Comparison is byte equality: "Acme/Widgets" and "acme/widgets" differ.
func FindByName(users []User, name string) (User, bool) {
	for _, u := range users {
		if u.Name == name {
			return u, true
		}
	}
	return User{}, false
}
