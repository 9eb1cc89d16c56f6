package vectorstore

import "errors"

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrNotConnected      = errors.New("qdrant server unreachable")
)
