package service

import (
	"errors"
	"fmt"
)

// ErrInvalidListing means the submitted listing data failed validation.
var ErrInvalidListing = errors.New("invalid listing data")

// ErrUnsupportedMedia means the uploaded file type is not accepted.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// NotFoundError reports that an entity lookup did not resolve.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// UnauthorizedError reports that the acting user is not the listing's owner.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

// ConflictError reports an illegal status transition given the listing's
// current flags. Callers must re-fetch state before retrying.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func notFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

func conflict(msg string) error {
	return &ConflictError{Message: msg}
}

func unauthorized(msg string) error {
	return &UnauthorizedError{Message: msg}
}
