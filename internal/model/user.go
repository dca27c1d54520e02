// Package model defines the data structures used throughout the application.
package model

// User represents an account in the credential store.
//
// Two kinds of account share this one shape:
//   - password accounts, created by /register. ID and Username are both the
//     chosen username, Email is empty and Password is set.
//   - federated accounts, created on the first Google login. ID is the
//     provider's subject claim and Password is nil.
//
// WHY Password *string?
// A nil pointer means "this account has no password at all" which is not the
// same thing as an empty password. OAuth-only accounts must never be able to
// log in through the password form, so the distinction matters.
//
// The ID is the key of the users document and is not repeated inside the
// stored record, hence json:"-".
type User struct {
	ID       string  `json:"-"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password *string `json:"password,omitempty"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u != nil && u.Password != nil
}
