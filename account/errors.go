package account

import "errors"

var (
	// ErrInvalidCredentials indicates the username/password pair did not
	// match. A single error covers unknown usernames and wrong passwords
	// so login failures do not reveal which one it was.
	ErrInvalidCredentials = errors.New("the username or password is incorrect")
	// ErrWeakPassword indicates the password does not meet the minimum
	// length requirement.
	ErrWeakPassword = errors.New("password does not meet minimum requirements")
	// ErrInvalidUsername indicates a blank or over-long username.
	ErrInvalidUsername = errors.New("invalid username")
)
