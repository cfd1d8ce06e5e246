package interfaces

import "errors"

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrNotPostAuthor   = errors.New("requester is not the post author")
	ErrVersionConflict = errors.New("post was modified concurrently")
	ErrDuplicateEmail  = errors.New("email already registered")
)
