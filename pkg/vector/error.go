package vector

import "errors"

var (
	// ErrCollectionNotFound is returned when an exported collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCursor is returned when a cursor was not produced by the same store.
	ErrInvalidCursor = errors.New("invalid export cursor")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
