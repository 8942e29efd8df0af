// Package models holds the data shapes exchanged between the client layers:
// outbound request descriptors, decoded responses and the user profile.
package models

// User is the profile record the server returns with a session.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}
