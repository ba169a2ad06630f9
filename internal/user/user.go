// Package user defines the user model used throughout the application,
// particularly for authentication and ownership scoping of collections.
package user

// User represents a system user. PasswordHash holds the bcrypt hash of the
// user's password and must never be serialized into API responses.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id"`

	// Username is the unique login handle.
	Username string `json:"username"`

	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`

	PasswordHash string `json:"-"`
}
