package adapters

import (
	"context"
	"errors"
)

// ErrNoObject is returned when a location does not resolve to a stored object.
var ErrNoObject = errors.New("storage: no object")

// ObjectStore keeps opaque blobs (record backups, attachments). Put returns a
// location string that Get and Delete accept later.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
}
