package users

import "errors"

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidUser  = errors.New("username and password are required")
	ErrInvalidRole  = errors.New("role must be admin or staff")
)
