package model

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email is already registered")
	ErrDuplicateUsername = errors.New("username is already taken")
	ErrDuplicateID       = errors.New("user id is already in use")
	ErrInvalidPage       = errors.New("page must be greater than zero")
)
